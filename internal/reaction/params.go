// Package reaction locates the reaction window around a simulated hazard in
// each trial: the response anchor, the end of the response and the earlier
// point at which the hazard became detectable.
package reaction

import (
	"time"

	"github.com/banshee-data/reaction.report/internal/config"
	"github.com/banshee-data/reaction.report/internal/telemetry"
)

// Params are the thresholds used by the locators.
type Params struct {
	SpeedChangeLag int

	OnsetSpeed        float64
	SteeringThreshold float64
	SteeringMinTime   float64

	StopSpeed         float64
	AccelLag          int
	EndAccelThreshold float64

	TTCThreshold float64
	SpeedGate    float64
	UpperMargin  int

	RTBrakeThreshold    float64
	RTSteeringThreshold float64
	RTBrakeOp           telemetry.ComparisonOp
	RTSteeringOp        telemetry.ComparisonOp
}

// DefaultParams returns the reference thresholds.
func DefaultParams() Params {
	return NewParams(config.EmptyDetectionConfig())
}

// NewParams reads thresholds from cfg, applying its defaults.
func NewParams(cfg *config.DetectionConfig) Params {
	return Params{
		SpeedChangeLag:      cfg.GetSpeedChangeLag(),
		OnsetSpeed:          cfg.GetOnsetSpeed(),
		SteeringThreshold:   cfg.GetSteeringThreshold(),
		SteeringMinTime:     cfg.GetSteeringMinTime(),
		StopSpeed:           cfg.GetStopSpeed(),
		AccelLag:            cfg.GetAccelLag(),
		EndAccelThreshold:   cfg.GetEndAccelThreshold(),
		TTCThreshold:        cfg.GetTTCThreshold(),
		SpeedGate:           cfg.GetSpeedGate(),
		UpperMargin:         cfg.GetUpperMargin(),
		RTBrakeThreshold:    cfg.GetRTBrakeThreshold(),
		RTSteeringThreshold: cfg.GetRTSteeringThreshold(),
		RTBrakeOp:           cfg.GetRTBrakeOp(),
		RTSteeringOp:        cfg.GetRTSteeringOp(),
	}
}

// Options control how a batch of trials is executed.
type Options struct {
	Workers      int
	TrialTimeout time.Duration
}

// NewOptions reads batch options from cfg.
func NewOptions(cfg *config.DetectionConfig) Options {
	return Options{
		Workers:      cfg.GetWorkers(),
		TrialTimeout: cfg.GetTrialTimeout(),
	}
}
