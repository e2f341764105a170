package report

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/reaction.report/internal/monitoring"
	"github.com/banshee-data/reaction.report/internal/reaction"
)

// Summary aggregates a batch of outcomes.
type Summary struct {
	Trials          int
	Processed       int
	Skipped         int
	UnresolvedUpper int

	// Reaction time statistics over trials where it resolved, in seconds.
	ReactionTimes int
	MeanRT        float64
	StdDevRT      float64
	MedianRT      float64
}

// Summarize counts outcomes and computes reaction time statistics.
func Summarize(outcomes []reaction.Outcome) Summary {
	s := Summary{Trials: len(outcomes)}
	var rts []float64
	for _, o := range outcomes {
		if o.Skipped() {
			s.Skipped++
			continue
		}
		s.Processed++
		if !o.Boundaries.Upper.Found {
			s.UnresolvedUpper++
		}
		if o.Boundaries.ReactionTime.OK {
			rts = append(rts, o.Boundaries.ReactionTime.Seconds)
		}
	}

	s.ReactionTimes = len(rts)
	if len(rts) == 0 {
		return s
	}
	sort.Float64s(rts)
	s.MeanRT = stat.Mean(rts, nil)
	if len(rts) > 1 {
		s.StdDevRT = stat.StdDev(rts, nil)
	}
	s.MedianRT = stat.Quantile(0.5, stat.Empirical, rts, nil)
	return s
}

// Log writes the summary through the diagnostic logger.
func (s Summary) Log() {
	monitoring.Logf("Trials: %d processed, %d skipped, %d with unresolved upper bound",
		s.Processed, s.Skipped, s.UnresolvedUpper)
	if s.ReactionTimes == 0 {
		return
	}
	monitoring.Logf("Reaction time over %d trials: mean %.3fs, std dev %.3fs, median %.3fs",
		s.ReactionTimes, s.MeanRT, s.StdDevRT, s.MedianRT)
}
