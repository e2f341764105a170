// Package testutil provides shared test helpers and telemetry fixtures.
package testutil

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/banshee-data/reaction.report/internal/telemetry"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// CruiseRow is a row at speed 20 with no inputs and no hazard. Time is
// 0.1s per row starting at 0.1.
func CruiseRow(i int) telemetry.Row {
	return telemetry.Row{
		Time:  float64(i+1) / 10,
		Speed: 20,
		TTC:   5,
	}
}

// NewTrial builds trial number 1 of n cruising rows starting at index start,
// then lets fill adjust row i (0-based within the trial).
func NewTrial(start, n int, fill func(i int, r *telemetry.Row)) telemetry.Trial {
	rows := make([]telemetry.Row, n)
	for i := range rows {
		rows[i] = CruiseRow(i)
		if fill != nil {
			fill(i, &rows[i])
		}
	}
	return telemetry.NewTrial(1, start, rows)
}

// SpeedTrial builds a trial starting at index 0 with the given speeds.
func SpeedTrial(speeds ...float64) telemetry.Trial {
	return NewTrial(0, len(speeds), func(i int, r *telemetry.Row) {
		r.Speed = speeds[i]
	})
}

// CSV renders trials as a header-less simulator log: each trial is preceded
// by a marker row built from header.
func CSV(header []string, trials ...telemetry.Trial) string {
	var b strings.Builder
	for _, t := range trials {
		b.WriteString(strings.Join(header, ","))
		b.WriteByte('\n')
		for _, r := range t.Rows {
			fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%s\n",
				cell(r.Time), cell(r.Throttle), cell(r.Brake),
				cell(r.Steering), cell(r.Speed), cell(r.TTC))
		}
	}
	return b.String()
}

func cell(v float64) string {
	if telemetry.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
