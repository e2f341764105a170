package reaction

import (
	"math"

	"github.com/banshee-data/reaction.report/internal/telemetry"
)

// OnsetRule records which rule placed the anchor.
type OnsetRule int

const (
	// OnsetNone means neither rule fired.
	OnsetNone OnsetRule = iota
	// OnsetDeceleration is the first row below the onset speed that is
	// still slowing down.
	OnsetDeceleration
	// OnsetSteering is the first large steering input after the start-up period.
	OnsetSteering
)

func (r OnsetRule) String() string {
	switch r {
	case OnsetDeceleration:
		return "deceleration"
	case OnsetSteering:
		return "steering"
	}
	return "none"
}

// LocateOnset finds the first_index anchor. The deceleration rule needs the
// following row to exist; the steering rule is only tried when it finds nothing.
func LocateOnset(t *telemetry.Trial, p Params) (int, OnsetRule) {
	for i := 0; i+1 < len(t.Rows); i++ {
		cur, next := t.Rows[i].Speed, t.Rows[i+1].Speed
		if cur < p.OnsetSpeed && next < cur {
			return t.Rows[i].Index, OnsetDeceleration
		}
	}

	idx, ok := telemetry.Find(t.Rows, telemetry.Down, func(r telemetry.Row) bool {
		return math.Abs(r.Steering) >= p.SteeringThreshold && r.Time > p.SteeringMinTime
	})
	if ok {
		return idx, OnsetSteering
	}
	return 0, OnsetNone
}
