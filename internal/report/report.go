// Package report prints derived reaction windows and a batch summary.
package report

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/banshee-data/reaction.report/internal/reaction"
)

// Reporter writes one line per processed trial: the reported upper bound
// and the lower bound, optionally followed by the reaction time in seconds.
// Skipped trials produce no line.
type Reporter struct {
	w             io.Writer
	reactionTimes bool
}

// NewReporter returns a Reporter writing to w.
func NewReporter(w io.Writer, reactionTimes bool) *Reporter {
	return &Reporter{w: w, reactionTimes: reactionTimes}
}

// Write prints outcomes in order with columns aligned.
func (r *Reporter) Write(outcomes []reaction.Outcome) error {
	tw := tabwriter.NewWriter(r.w, 0, 0, 1, ' ', 0)
	for _, o := range outcomes {
		if o.Skipped() {
			continue
		}
		b := o.Boundaries
		var err error
		if r.reactionTimes {
			_, err = fmt.Fprintf(tw, "%d\t%d\t%s\n", b.ReportedUpper, b.LowerBound, FormatReactionTime(b.ReactionTime))
		} else {
			_, err = fmt.Fprintf(tw, "%d\t%d\n", b.ReportedUpper, b.LowerBound)
		}
		if err != nil {
			return fmt.Errorf("failed to write trial %d: %w", o.Trial, err)
		}
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	return nil
}

// FormatReactionTime renders seconds with millisecond precision, or "-"
// when the reaction time was not resolved.
func FormatReactionTime(rt reaction.ReactionTime) string {
	if !rt.OK {
		return "-"
	}
	return strconv.FormatFloat(rt.Seconds, 'f', 3, 64)
}
