package reaction

import (
	"context"
	"math"

	"github.com/banshee-data/reaction.report/internal/telemetry"
)

// Strategy identifies the stage of the upper bound cascade that resolved it.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyTTCGated
	StrategyTTC
	StrategyPedalGated
	StrategyPedal
	StrategyWholeTrialTTC
)

var strategyNames = [...]string{
	StrategyNone:          "unresolved",
	StrategyTTCGated:      "ttc-gated",
	StrategyTTC:           "ttc",
	StrategyPedalGated:    "pedal-gated",
	StrategyPedal:         "pedal",
	StrategyWholeTrialTTC: "ttc-whole-trial",
}

func (s Strategy) String() string {
	if s >= 0 && int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return "unknown"
}

// scanState is the state of a backward crossing scan.
type scanState int

const (
	// stateIdle waits for the signal to become active.
	stateIdle scanState = iota
	// stateArmed has seen the active signal and waits for its release.
	stateArmed
)

// crossing describes one backward scan: arm marks the active signal and
// release the row where, walking back in time, it has not started yet.
type crossing struct {
	arm     func(telemetry.Row) bool
	release func(telemetry.Row) bool
	gate    func(telemetry.Row) bool
}

// step feeds one row to the machine and reports whether it is a release
// candidate. An arming row is never a candidate.
func (c crossing) step(s scanState, r telemetry.Row) (scanState, bool) {
	if c.arm(r) {
		return stateArmed, false
	}
	if s == stateArmed && c.gate(r) && c.release(r) {
		return stateArmed, true
	}
	return s, false
}

// scan walks rows from last to first. accept turns a candidate at position
// i into an upper bound; rejected candidates leave the machine armed.
func (c crossing) scan(rows []telemetry.Row, accept func(rows []telemetry.Row, i int) (int, bool)) (int, bool) {
	state := stateIdle
	for i := len(rows) - 1; i >= 0; i-- {
		var candidate bool
		state, candidate = c.step(state, rows[i])
		if !candidate {
			continue
		}
		if idx, ok := accept(rows, i); ok {
			return idx, true
		}
	}
	return 0, false
}

func noGate(telemetry.Row) bool { return true }

func (p Params) speedGate(r telemetry.Row) bool {
	return r.Speed < p.SpeedGate
}

func (p Params) ttcCrossing(gated bool) crossing {
	c := crossing{
		arm: func(r telemetry.Row) bool {
			return r.TTC > 0 && r.TTC <= p.TTCThreshold
		},
		release: func(r telemetry.Row) bool {
			return r.TTC == 0 || r.TTC > p.TTCThreshold
		},
		gate: noGate,
	}
	if gated {
		c.gate = p.speedGate
	}
	return c
}

func (p Params) pedalCrossing(gated bool) crossing {
	c := crossing{
		arm: func(r telemetry.Row) bool {
			return r.Brake > 0 || math.Abs(r.Steering) >= p.SteeringThreshold
		},
		release: func(r telemetry.Row) bool {
			return r.Brake == 0 || math.Abs(r.Steering) < p.SteeringThreshold
		},
		gate: noGate,
	}
	if gated {
		c.gate = p.speedGate
	}
	return c
}

// acceptRising resolves a TTC candidate to the following row when that row
// is in view and has a strictly greater TTC.
func acceptRising(rows []telemetry.Row, i int) (int, bool) {
	if i+1 >= len(rows) || !(rows[i+1].TTC > rows[i].TTC) {
		return 0, false
	}
	return rows[i+1].Index, true
}

func acceptRow(rows []telemetry.Row, i int) (int, bool) {
	return rows[i].Index, true
}

// UpperResult is the outcome of LocateUpper.
type UpperResult struct {
	Index    int
	Found    bool
	Strategy Strategy
}

// LocateUpper walks back from anchor to find where the hazard first became
// apparent. Stages run in order and the first success wins:
//
//  1. TTC crossing with the speed gate
//  2. TTC crossing
//  3. brake/steering release with the speed gate
//  4. brake/steering release
//  5. TTC crossing over the whole trial, bound strictly before the anchor
//
// Stages 1-4 only see rows from the trial start through the anchor. The
// context is checked between stages.
func LocateUpper(ctx context.Context, t *telemetry.Trial, anchor int, p Params) (UpperResult, error) {
	prefix := t.Span(t.Start(), anchor)
	stages := []struct {
		strategy Strategy
		cross    crossing
		accept   func([]telemetry.Row, int) (int, bool)
	}{
		{StrategyTTCGated, p.ttcCrossing(true), acceptRising},
		{StrategyTTC, p.ttcCrossing(false), acceptRising},
		{StrategyPedalGated, p.pedalCrossing(true), acceptRow},
		{StrategyPedal, p.pedalCrossing(false), acceptRow},
	}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return UpperResult{}, err
		}
		if idx, ok := st.cross.scan(prefix, st.accept); ok {
			return UpperResult{Index: idx, Found: true, Strategy: st.strategy}, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return UpperResult{}, err
	}
	beforeAnchor := func(rows []telemetry.Row, i int) (int, bool) {
		idx, ok := acceptRising(rows, i)
		return idx, ok && idx < anchor
	}
	if idx, ok := p.ttcCrossing(true).scan(t.Rows, beforeAnchor); ok {
		return UpperResult{Index: idx, Found: true, Strategy: StrategyWholeTrialTTC}, nil
	}
	return UpperResult{Strategy: StrategyNone}, nil
}

// Reported returns the upper bound as printed: the located row minus the
// margin, or 0 when unresolved.
func (u UpperResult) Reported(margin int) int {
	if !u.Found {
		return 0
	}
	return u.Index - margin
}
