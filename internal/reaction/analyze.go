package reaction

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/reaction.report/internal/monitoring"
	"github.com/banshee-data/reaction.report/internal/telemetry"
)

// ErrAnchorOutOfRange is returned for a trial whose anchor is not one of its rows.
var ErrAnchorOutOfRange = errors.New("first_index out of range")

// Boundaries is the reaction window of one trial.
type Boundaries struct {
	FirstIndex int
	OnsetRule  OnsetRule

	Upper UpperResult
	// ReportedUpper is Upper.Index minus the margin, or 0 when unresolved.
	ReportedUpper int

	LowerBound int
	EndRule    EndRule

	ReactionTime ReactionTime
}

// AnalyzeTrial computes the derived features and the reaction window of t.
// It mutates t's SpeedChange column only.
func AnalyzeTrial(ctx context.Context, t *telemetry.Trial, p Params) (Boundaries, error) {
	ComputeSpeedChange(t, p.SpeedChangeLag)

	var b Boundaries
	b.FirstIndex, b.OnsetRule = LocateOnset(t, p)
	if b.OnsetRule == OnsetNone && !t.Has(b.FirstIndex) {
		return Boundaries{}, fmt.Errorf("%w: first_index %d not in rows %d..%d",
			ErrAnchorOutOfRange, b.FirstIndex, t.Start(), t.End())
	}

	b.LowerBound, b.EndRule = LocateEnd(t, b.FirstIndex, p)

	upper, err := LocateUpper(ctx, t, b.FirstIndex, p)
	if err != nil {
		return Boundaries{}, err
	}
	b.Upper = upper
	b.ReportedUpper = upper.Reported(p.UpperMargin)

	if upper.Found {
		b.ReactionTime = MeasureReactionTime(t, b.ReportedUpper, b.LowerBound, p)
	}
	return b, nil
}

// Outcome is the result of one trial in a batch. Err is set when the trial
// was skipped.
type Outcome struct {
	Trial      int
	Boundaries Boundaries
	Err        error
}

// Skipped reports whether the trial produced no window.
func (o Outcome) Skipped() bool { return o.Err != nil }

// Analyzer runs AnalyzeTrial over many trials.
type Analyzer struct {
	Params  Params
	Options Options
}

// NewAnalyzer returns an Analyzer; zero Workers means sequential.
func NewAnalyzer(p Params, opts Options) *Analyzer {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Analyzer{Params: p, Options: opts}
}

// Run analyses every trial and returns outcomes in trial order. A failing
// trial never stops the others; only ctx cancellation ends the batch early,
// in which case the remaining trials are reported as skipped.
func (a *Analyzer) Run(ctx context.Context, trials []telemetry.Trial) []Outcome {
	outcomes := make([]Outcome, len(trials))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.Options.Workers)
	for i := range trials {
		t := &trials[i]
		outcomes[i].Trial = t.Number
		g.Go(func() error {
			b, err := a.runOne(gctx, t)
			outcomes[i].Boundaries = b
			outcomes[i].Err = err
			return nil
		})
	}
	// Workers always return nil; per-trial failures live in outcomes.
	g.Wait()

	for _, o := range outcomes {
		if o.Err != nil {
			monitoring.Logf("Error: trial %d skipped: %v", o.Trial, o.Err)
		}
	}
	return outcomes
}

func (a *Analyzer) runOne(ctx context.Context, t *telemetry.Trial) (b Boundaries, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("trial %d: panic: %v", t.Number, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return Boundaries{}, err
	}
	if a.Options.TrialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Options.TrialTimeout)
		defer cancel()
	}

	monitoring.Debugf("Trial %d: original index range %d to %d", t.Number, t.Start(), t.End())
	b, err = AnalyzeTrial(ctx, t, a.Params)
	if err == nil {
		monitoring.Debugf("Trial %d: first_index=%d (%s) upper=%d (%s) lower=%d (%s)",
			t.Number, b.FirstIndex, b.OnsetRule, b.Upper.Index, b.Upper.Strategy, b.LowerBound, b.EndRule)
	}
	return b, err
}
