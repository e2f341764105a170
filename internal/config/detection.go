package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/reaction.report/internal/telemetry"
)

// DefaultConfigPath is the path to the checked-in detection defaults file.
// Its values match the Get* fallbacks below.
const DefaultConfigPath = "config/detection.defaults.json"

// DefaultHeader is the marker row that opens every trial in a simulator log.
var DefaultHeader = []string{"time", "throttle", "brake", "steering", "speed", "ttc"}

// DetectionConfig holds the reaction window thresholds. Every field is
// optional; unset fields fall back to the reference thresholds so an empty
// config reproduces the published windows.
type DetectionConfig struct {
	// Segmentation
	Header []string `json:"header,omitempty" yaml:"header,omitempty"`

	// Derived features
	SpeedChangeLag *int `json:"speed_change_lag,omitempty" yaml:"speed_change_lag,omitempty"`

	// Reaction onset
	OnsetSpeed        *float64 `json:"onset_speed,omitempty" yaml:"onset_speed,omitempty"`
	SteeringThreshold *float64 `json:"steering_threshold,omitempty" yaml:"steering_threshold,omitempty"`
	SteeringMinTime   *float64 `json:"steering_min_time,omitempty" yaml:"steering_min_time,omitempty"`

	// Event end
	StopSpeed         *float64 `json:"stop_speed,omitempty" yaml:"stop_speed,omitempty"`
	AccelLag          *int     `json:"accel_lag,omitempty" yaml:"accel_lag,omitempty"`
	EndAccelThreshold *float64 `json:"end_accel_threshold,omitempty" yaml:"end_accel_threshold,omitempty"`

	// Event onset
	TTCThreshold *float64 `json:"ttc_threshold,omitempty" yaml:"ttc_threshold,omitempty"`
	SpeedGate    *float64 `json:"speed_gate,omitempty" yaml:"speed_gate,omitempty"`
	UpperMargin  *int     `json:"upper_margin,omitempty" yaml:"upper_margin,omitempty"`

	// Reaction time
	RTBrakeThreshold    *float64 `json:"rt_brake_threshold,omitempty" yaml:"rt_brake_threshold,omitempty"`
	RTSteeringThreshold *float64 `json:"rt_steering_threshold,omitempty" yaml:"rt_steering_threshold,omitempty"`
	RTBrakeOp           *string  `json:"rt_brake_op,omitempty" yaml:"rt_brake_op,omitempty"`    // lt, le, eq, ne, gt or ge
	RTSteeringOp        *string  `json:"rt_steering_op,omitempty" yaml:"rt_steering_op,omitempty"`

	// Batch execution
	Workers      *int    `json:"workers,omitempty" yaml:"workers,omitempty"`
	TrialTimeout *string `json:"trial_timeout,omitempty" yaml:"trial_timeout,omitempty"` // duration string like "2s"
}

// EmptyDetectionConfig returns a DetectionConfig with all fields unset.
func EmptyDetectionConfig() *DetectionConfig {
	return &DetectionConfig{}
}

// LoadDetectionConfig loads a DetectionConfig from a .json, .yaml or .yml file
// of at most 1MB. Fields omitted from the file keep their defaults.
func LoadDetectionConfig(path string) (*DetectionConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDetectionConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", ext, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *DetectionConfig) Validate() error {
	if c.Header != nil {
		if len(c.Header) == 0 {
			return fmt.Errorf("header must not be empty")
		}
		seen := make(map[telemetry.Column]bool, len(c.Header))
		for i, h := range c.Header {
			if strings.TrimSpace(h) == "" {
				return fmt.Errorf("header column %d is blank", i)
			}
			col, err := telemetry.ParseColumn(h)
			if err != nil || col > telemetry.ColTTC {
				return fmt.Errorf("header column %d %q is not a logged channel", i, h)
			}
			if seen[col] {
				return fmt.Errorf("header column %d %q is repeated", i, h)
			}
			seen[col] = true
		}
	}
	if c.SpeedChangeLag != nil && *c.SpeedChangeLag < 1 {
		return fmt.Errorf("speed_change_lag must be at least 1, got %d", *c.SpeedChangeLag)
	}
	if c.AccelLag != nil && *c.AccelLag < 1 {
		return fmt.Errorf("accel_lag must be at least 1, got %d", *c.AccelLag)
	}
	if c.UpperMargin != nil && *c.UpperMargin < 0 {
		return fmt.Errorf("upper_margin must be non-negative, got %d", *c.UpperMargin)
	}
	if c.TTCThreshold != nil && *c.TTCThreshold <= 0 {
		return fmt.Errorf("ttc_threshold must be positive, got %f", *c.TTCThreshold)
	}
	ops := []struct {
		name string
		op   *string
	}{
		{"rt_brake_op", c.RTBrakeOp},
		{"rt_steering_op", c.RTSteeringOp},
	}
	for _, o := range ops {
		if o.op == nil {
			continue
		}
		if _, err := telemetry.ParseComparisonOp(*o.op); err != nil {
			return fmt.Errorf("invalid %s: %w", o.name, err)
		}
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.TrialTimeout != nil && *c.TrialTimeout != "" {
		if _, err := time.ParseDuration(*c.TrialTimeout); err != nil {
			return fmt.Errorf("invalid trial_timeout '%s': %w", *c.TrialTimeout, err)
		}
	}
	return nil
}

// GetHeader returns the trial marker header or DefaultHeader.
func (c *DetectionConfig) GetHeader() []string {
	if len(c.Header) == 0 {
		return append([]string(nil), DefaultHeader...)
	}
	return append([]string(nil), c.Header...)
}

// GetSpeedChangeLag returns the speed_change look-back in rows.
func (c *DetectionConfig) GetSpeedChangeLag() int {
	if c.SpeedChangeLag == nil {
		return 30
	}
	return *c.SpeedChangeLag
}

// GetOnsetSpeed returns the speed below which a falling speed marks onset.
func (c *DetectionConfig) GetOnsetSpeed() float64 {
	if c.OnsetSpeed == nil {
		return 15.99
	}
	return *c.OnsetSpeed
}

// GetSteeringThreshold returns the absolute steering input treated as active.
func (c *DetectionConfig) GetSteeringThreshold() float64 {
	if c.SteeringThreshold == nil {
		return 7.0
	}
	return *c.SteeringThreshold
}

// GetSteeringMinTime returns the time after which steering can mark onset.
func (c *DetectionConfig) GetSteeringMinTime() float64 {
	if c.SteeringMinTime == nil {
		return 2.0
	}
	return *c.SteeringMinTime
}

// GetStopSpeed returns the speed at or below which the vehicle is stopped.
func (c *DetectionConfig) GetStopSpeed() float64 {
	if c.StopSpeed == nil {
		return 0.9
	}
	return *c.StopSpeed
}

// GetAccelLag returns the acceleration look-back in rows.
func (c *DetectionConfig) GetAccelLag() int {
	if c.AccelLag == nil {
		return 50
	}
	return *c.AccelLag
}

// GetEndAccelThreshold returns the acceleration that ends the event when the
// vehicle never stops. One variant of the analysis used 0.
func (c *DetectionConfig) GetEndAccelThreshold() float64 {
	if c.EndAccelThreshold == nil {
		return 1.0
	}
	return *c.EndAccelThreshold
}

// GetTTCThreshold returns the time-to-collision treated as hazardous.
func (c *DetectionConfig) GetTTCThreshold() float64 {
	if c.TTCThreshold == nil {
		return 1.95
	}
	return *c.TTCThreshold
}

// GetSpeedGate returns the speed gate applied by the gated onset strategies.
func (c *DetectionConfig) GetSpeedGate() float64 {
	if c.SpeedGate == nil {
		return 17.0
	}
	return *c.SpeedGate
}

// GetUpperMargin returns the rows subtracted from a resolved upper bound.
func (c *DetectionConfig) GetUpperMargin() int {
	if c.UpperMargin == nil {
		return 5
	}
	return *c.UpperMargin
}

// GetRTBrakeThreshold returns the brake input that marks a driver response.
func (c *DetectionConfig) GetRTBrakeThreshold() float64 {
	if c.RTBrakeThreshold == nil {
		return 0.4
	}
	return *c.RTBrakeThreshold
}

// GetRTSteeringThreshold returns the absolute steering that marks a driver response.
func (c *DetectionConfig) GetRTSteeringThreshold() float64 {
	if c.RTSteeringThreshold == nil {
		return 10.0
	}
	return *c.RTSteeringThreshold
}

// GetRTBrakeOp returns the comparison applied to brake against
// RTBrakeThreshold, OpGE by default.
func (c *DetectionConfig) GetRTBrakeOp() telemetry.ComparisonOp {
	return parseOpOr(c.RTBrakeOp, telemetry.OpGE)
}

// GetRTSteeringOp returns the comparison applied to |steering| against
// RTSteeringThreshold, OpGE by default.
func (c *DetectionConfig) GetRTSteeringOp() telemetry.ComparisonOp {
	return parseOpOr(c.RTSteeringOp, telemetry.OpGE)
}

func parseOpOr(name *string, fallback telemetry.ComparisonOp) telemetry.ComparisonOp {
	if name == nil {
		return fallback
	}
	op, err := telemetry.ParseComparisonOp(*name)
	if err != nil {
		return fallback
	}
	return op
}

// GetWorkers returns the number of trials analysed concurrently.
func (c *DetectionConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetTrialTimeout returns the per-trial deadline, or 0 for none.
func (c *DetectionConfig) GetTrialTimeout() time.Duration {
	if c.TrialTimeout == nil || *c.TrialTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.TrialTimeout)
	if err != nil {
		return 0
	}
	return d
}
