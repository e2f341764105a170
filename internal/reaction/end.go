package reaction

import (
	"strconv"

	"github.com/banshee-data/reaction.report/internal/telemetry"
)

// EndRule records how lower_bound was placed.
type EndRule int

const (
	// EndStop is the row before speed first falls to the stop speed.
	EndStop EndRule = iota
	// EndAccelerating is the anchor itself, already accelerating away.
	EndAccelerating
	// EndOfTrial is the trial's last row.
	EndOfTrial
)

func (r EndRule) String() string {
	switch r {
	case EndStop:
		return "stop"
	case EndAccelerating:
		return "accelerating"
	}
	return "end-of-trial"
}

// LocateEnd finds lower_bound scanning forward from anchor.
//
// If the vehicle never stops, only the anchor row's acceleration is
// examined: it either is the end of the event or the event runs to the end
// of the trial. The scan never continues past that first row.
func LocateEnd(t *telemetry.Trial, anchor int, p Params) (int, EndRule) {
	from := t.Span(anchor, t.End())
	if idx, ok := telemetry.Find(from, telemetry.Down, func(r telemetry.Row) bool {
		return telemetry.OpLE.Compare(r.Speed, p.StopSpeed)
	}); ok {
		return idx - 1, EndStop
	}

	if len(from) > 0 && Acceleration(t, from[0].Index, p.AccelLag) >= p.EndAccelThreshold {
		return from[0].Index, EndAccelerating
	}
	return t.End(), EndOfTrial
}

// Acceleration returns (speed[i]-speed[i-lag]) / (time[i]-time[i-lag])
// rounded to 6 decimal places, or 0 when row i-lag is outside the trial.
// Missing operands or a zero time step yield NaN or Inf, never an error.
func Acceleration(t *telemetry.Trial, index, lag int) float64 {
	cur, ok := t.At(index)
	if !ok {
		return 0
	}
	prev, ok := t.At(index - lag)
	if !ok {
		return 0
	}
	return round6((cur.Speed - prev.Speed) / (cur.Time - prev.Time))
}

// round6 rounds half-to-even on the exact binary value, like formatting
// with six decimals.
func round6(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 6, 64), 64)
	if err != nil {
		return v
	}
	return r
}
