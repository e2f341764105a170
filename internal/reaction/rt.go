package reaction

import (
	"github.com/banshee-data/reaction.report/internal/telemetry"
)

// ReactionTime is the delay between the hazard becoming critical and the
// driver's first substantial input inside a reaction window.
type ReactionTime struct {
	Seconds     float64
	HazardIndex int
	ActionIndex int
	OK          bool
}

// MeasureReactionTime scans rows from..to (clamped to the trial). The hazard
// row is the first with 0 < ttc <= TTCThreshold; the action row is the first
// whose brake or |steering| passes its comparison. Rows stamped at time zero
// are never hazard or action rows.
func MeasureReactionTime(t *telemetry.Trial, from, to int, p Params) ReactionTime {
	window := t.Span(from, to)

	hazard, ok := telemetry.Find(window, telemetry.Down, func(r telemetry.Row) bool {
		return r.Time != 0 && telemetry.OpGT.Compare(r.TTC, 0) && telemetry.OpLE.Compare(r.TTC, p.TTCThreshold)
	})
	if !ok {
		return ReactionTime{}
	}

	action, ok := telemetry.FindRow(window, telemetry.Down, telemetry.ColBrake, p.RTBrakeThreshold, p.RTBrakeOp)
	if steer, sok := telemetry.FindRow(window, telemetry.Down, telemetry.ColAbsSteering, p.RTSteeringThreshold, p.RTSteeringOp); sok && (!ok || steer < action) {
		action, ok = steer, true
	}
	if !ok {
		return ReactionTime{}
	}

	h, _ := t.At(hazard)
	a, _ := t.At(action)
	secs := a.Time - h.Time
	if telemetry.IsMissing(secs) {
		return ReactionTime{}
	}
	return ReactionTime{Seconds: secs, HazardIndex: hazard, ActionIndex: action, OK: true}
}
