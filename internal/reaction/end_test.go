package reaction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/reaction.report/internal/telemetry"
	"github.com/banshee-data/reaction.report/internal/testutil"
)

// brakingTrial cruises for 10 rows, slows from 15 by 0.3 per row and stops
// at row 50.
func brakingTrial() telemetry.Trial {
	return testutil.NewTrial(0, 60, func(i int, r *telemetry.Row) {
		switch {
		case i >= 51:
			r.Speed = 0.5
		case i == 50:
			r.Speed = 0.85
		case i >= 10:
			r.Speed = 15 - 0.3*float64(i-10)
		}
	})
}

func TestLocateEnd_Stop(t *testing.T) {
	tr := brakingTrial()
	p := DefaultParams()

	anchor, rule := LocateOnset(&tr, p)
	require.Equal(t, OnsetDeceleration, rule)
	require.Equal(t, 10, anchor)

	lower, endRule := LocateEnd(&tr, anchor, p)
	assert.Equal(t, 49, lower)
	assert.Equal(t, EndStop, endRule)
}

func TestLocateEnd_StopPrecedesTriggerByOne(t *testing.T) {
	for trigger := 12; trigger < 40; trigger += 7 {
		tr := testutil.NewTrial(300, 60, func(i int, r *telemetry.Row) {
			if i >= trigger {
				r.Speed = 0.9
			}
		})
		lower, rule := LocateEnd(&tr, 305, DefaultParams())
		assert.Equal(t, EndStop, rule)
		assert.Equal(t, 300+trigger-1, lower)
	}
}

func TestLocateEnd_AcceleratingAtAnchor(t *testing.T) {
	tr := testutil.NewTrial(0, 100, func(i int, r *telemetry.Row) {
		switch {
		case i < 50:
			r.Speed = 5
		default:
			r.Speed = 15 - 0.1*float64(i-50)
		}
	})
	p := DefaultParams()

	anchor, _ := LocateOnset(&tr, p)
	require.Equal(t, 50, anchor)

	lower, rule := LocateEnd(&tr, anchor, p)
	assert.Equal(t, 50, lower)
	assert.Equal(t, EndAccelerating, rule)
}

func TestLocateEnd_FirstRowNotAcceleratingEndsAtTrialEnd(t *testing.T) {
	// Speed never stops and the anchor is decelerating, so only the anchor
	// is examined even though later rows accelerate hard.
	tr := testutil.NewTrial(0, 200, func(i int, r *telemetry.Row) {
		switch {
		case i >= 60 && i < 70:
			r.Speed = 15 - float64(i-60)
		case i >= 70:
			r.Speed = 30
		}
	})
	p := DefaultParams()

	anchor, _ := LocateOnset(&tr, p)
	require.Equal(t, 60, anchor)

	lower, rule := LocateEnd(&tr, anchor, p)
	assert.Equal(t, 199, lower)
	assert.Equal(t, EndOfTrial, rule)
}

func TestLocateEnd_NoLookBackRowMeansZeroAcceleration(t *testing.T) {
	tr := testutil.SpeedTrial(15, 14, 13, 12)
	p := DefaultParams()

	lower, rule := LocateEnd(&tr, 0, p)
	assert.Equal(t, 3, lower, "0 < 1.0 threshold")
	assert.Equal(t, EndOfTrial, rule)

	p.EndAccelThreshold = 0
	lower, rule = LocateEnd(&tr, 0, p)
	assert.Equal(t, 0, lower, "0 >= 0 threshold")
	assert.Equal(t, EndAccelerating, rule)
}

func TestAcceleration(t *testing.T) {
	tr := telemetry.NewTrial(1, 10, []telemetry.Row{
		{Time: 1, Speed: 10},
		{Time: 2, Speed: 10.9999996},
		{Time: 2, Speed: 12},
		{Time: 3, Speed: telemetry.Missing()},
	})

	assert.Equal(t, 0.0, Acceleration(&tr, 10, 1), "no look-back row")
	assert.Equal(t, 1.0, Acceleration(&tr, 11, 1), "rounded to 6 decimals")
	assert.True(t, math.IsInf(Acceleration(&tr, 12, 1), 1), "zero time step")
	assert.True(t, math.IsNaN(Acceleration(&tr, 13, 1)), "missing speed")
	assert.Equal(t, 0.0, Acceleration(&tr, 99, 1), "index outside trial")

	p := DefaultParams()
	p.AccelLag = 1
	lower, rule := LocateEnd(&tr, 11, p)
	assert.Equal(t, 11, lower)
	assert.Equal(t, EndAccelerating, rule)
}

func TestRound6(t *testing.T) {
	assert.Equal(t, 2.0, round6(2.0000004))
	assert.Equal(t, -1.234568, round6(-1.23456789))
	assert.Equal(t, 0.5, round6(0.5))
	assert.True(t, math.IsNaN(round6(math.NaN())))
	assert.True(t, math.IsInf(round6(math.Inf(-1)), -1))
}
