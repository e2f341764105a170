package reaction

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/reaction.report/internal/monitoring"
	"github.com/banshee-data/reaction.report/internal/telemetry"
	"github.com/banshee-data/reaction.report/internal/testutil"
)

func muteLogs(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

// crashTrial brakes from row 10 to a stop at row 50. A lead vehicle
// appears at row 6 (ttc 0 -> 1.5) and the driver brakes hard at row 12.
func crashTrial(start int) telemetry.Trial {
	tr := brakingTrial()
	for i := range tr.Rows {
		r := &tr.Rows[i]
		r.TTC = 0
		if i >= 6 && i <= 40 {
			r.TTC = 1.5
		}
		if i >= 12 {
			r.Brake = 0.8
		}
	}
	return telemetry.NewTrial(tr.Number, start, tr.Rows)
}

func TestAnalyzeTrial(t *testing.T) {
	tr := crashTrial(0)

	b, err := AnalyzeTrial(context.Background(), &tr, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, 10, b.FirstIndex)
	assert.Equal(t, OnsetDeceleration, b.OnsetRule)
	assert.Equal(t, 49, b.LowerBound)
	assert.Equal(t, EndStop, b.EndRule)
	// Row 5 is above the speed gate, so the ungated TTC stage resolves.
	assert.Equal(t, UpperResult{Index: 6, Found: true, Strategy: StrategyTTC}, b.Upper)
	assert.Equal(t, 1, b.ReportedUpper)

	assert.True(t, b.ReactionTime.OK)
	assert.Equal(t, 6, b.ReactionTime.HazardIndex)
	assert.Equal(t, 12, b.ReactionTime.ActionIndex)
	assert.InDelta(t, 0.6, b.ReactionTime.Seconds, 1e-9)

	// The feature pass ran.
	assert.Equal(t, tr.Rows[40].Speed-tr.Rows[10].Speed, tr.Rows[40].SpeedChange)
}

func TestAnalyzeTrial_OffsetTrialKeepsFileIndices(t *testing.T) {
	tr := crashTrial(1000)

	b, err := AnalyzeTrial(context.Background(), &tr, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 1010, b.FirstIndex)
	assert.Equal(t, 1049, b.LowerBound)
	assert.Equal(t, 1006, b.Upper.Index)
	assert.Equal(t, 1001, b.ReportedUpper)
}

func TestAnalyzeTrial_AnchorOutOfRange(t *testing.T) {
	tr := testutil.NewTrial(1, 40, nil)

	_, err := AnalyzeTrial(context.Background(), &tr, DefaultParams())
	assert.True(t, errors.Is(err, ErrAnchorOutOfRange), "got %v", err)

	var empty telemetry.Trial
	_, err = AnalyzeTrial(context.Background(), &empty, DefaultParams())
	assert.ErrorIs(t, err, ErrAnchorOutOfRange)
}

func TestAnalyzeTrial_UnresolvedAnchorAtIndexZero(t *testing.T) {
	tr := testutil.NewTrial(0, 40, nil)

	b, err := AnalyzeTrial(context.Background(), &tr, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 0, b.FirstIndex)
	assert.Equal(t, OnsetNone, b.OnsetRule)
	assert.Equal(t, 39, b.LowerBound)
	assert.False(t, b.Upper.Found)
	assert.Equal(t, 0, b.ReportedUpper)
	assert.False(t, b.ReactionTime.OK)
}

func TestAnalyzerRun(t *testing.T) {
	muteLogs(t)

	build := func() []telemetry.Trial {
		trials := []telemetry.Trial{crashTrial(1), testutil.NewTrial(70, 40, nil), crashTrial(111)}
		for i := range trials {
			trials[i].Number = i + 1
		}
		return trials
	}

	seq := NewAnalyzer(DefaultParams(), Options{}).Run(context.Background(), build())
	par := NewAnalyzer(DefaultParams(), Options{Workers: 3}).Run(context.Background(), build())

	require.Len(t, seq, 3)
	for i, o := range seq {
		assert.Equal(t, i+1, o.Trial)
	}
	assert.False(t, seq[0].Skipped())
	assert.True(t, seq[1].Skipped())
	assert.ErrorIs(t, seq[1].Err, ErrAnchorOutOfRange)
	assert.False(t, seq[2].Skipped())
	assert.Equal(t, 121, seq[2].Boundaries.FirstIndex)

	for i := range seq {
		if diff := cmp.Diff(seq[i].Boundaries, par[i].Boundaries); diff != "" {
			t.Errorf("trial %d differs between sequential and parallel runs (-seq +par):\n%s", i+1, diff)
		}
		assert.Equal(t, seq[i].Skipped(), par[i].Skipped())
	}
}

func TestAnalyzerRun_Canceled(t *testing.T) {
	muteLogs(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := NewAnalyzer(DefaultParams(), Options{Workers: 2}).Run(ctx, []telemetry.Trial{crashTrial(1)})
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, context.Canceled)
}

func TestAnalyzerRun_LogsSkips(t *testing.T) {
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })
	var logged int
	monitoring.SetLogger(func(string, ...interface{}) { logged++ })

	NewAnalyzer(DefaultParams(), Options{}).Run(context.Background(), []telemetry.Trial{testutil.NewTrial(5, 10, nil)})
	assert.Equal(t, 1, logged)
}
