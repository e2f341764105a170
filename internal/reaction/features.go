package reaction

import (
	"github.com/banshee-data/reaction.report/internal/telemetry"
)

// ComputeSpeedChange fills SpeedChange with speed[i] - speed[i-lag], or 0
// when the look-back row is outside the trial or either speed is missing.
func ComputeSpeedChange(t *telemetry.Trial, lag int) {
	for i := range t.Rows {
		row := &t.Rows[i]
		row.SpeedChange = 0
		prev, ok := t.At(row.Index - lag)
		if !ok {
			continue
		}
		if d := row.Speed - prev.Speed; !telemetry.IsMissing(d) {
			row.SpeedChange = d
		}
	}
}
