// Package telemetry defines the per-row driving simulator data model shared by
// the segmenter and the reaction window locators.
package telemetry

import (
	"fmt"
	"math"
	"strings"
)

// Column identifies a telemetry channel on a Row.
type Column int

const (
	ColTime Column = iota
	ColThrottle
	ColBrake
	ColSteering
	ColSpeed
	ColTTC
	// ColSpeedChange is derived by the feature pass, never read from input.
	ColSpeedChange
	// ColAbsSteering is the absolute steering input, derived on access.
	ColAbsSteering
)

var columnNames = [...]string{
	ColTime:        "time",
	ColThrottle:    "throttle",
	ColBrake:       "brake",
	ColSteering:    "steering",
	ColSpeed:       "speed",
	ColTTC:         "ttc",
	ColSpeedChange: "speed_change",
	ColAbsSteering: "abs_steering",
}

func (c Column) String() string {
	if c >= 0 && int(c) < len(columnNames) {
		return columnNames[c]
	}
	return fmt.Sprintf("Column(%d)", int(c))
}

// ParseColumn maps a column name (case and surrounding whitespace ignored)
// to its Column.
func ParseColumn(name string) (Column, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, cn := range columnNames {
		if cn == n {
			return Column(i), nil
		}
	}
	return 0, fmt.Errorf("unknown column %q", name)
}

// Missing returns the marker used for absent or non-numeric cells.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Row is one sample of a trial. Index is the row's position in the source
// file, so neighbour lookups (Index+1, Index-50) stay valid after slicing.
type Row struct {
	Index       int
	Time        float64
	Throttle    float64
	Brake       float64
	Steering    float64
	Speed       float64
	TTC         float64
	SpeedChange float64
}

// MissingRow returns a row at index with every channel missing.
func MissingRow(index int) Row {
	nan := Missing()
	return Row{
		Index:    index,
		Time:     nan,
		Throttle: nan,
		Brake:    nan,
		Steering: nan,
		Speed:    nan,
		TTC:      nan,
	}
}

// Get returns the value of column c.
func (r Row) Get(c Column) float64 {
	switch c {
	case ColTime:
		return r.Time
	case ColThrottle:
		return r.Throttle
	case ColBrake:
		return r.Brake
	case ColSteering:
		return r.Steering
	case ColSpeed:
		return r.Speed
	case ColTTC:
		return r.TTC
	case ColSpeedChange:
		return r.SpeedChange
	case ColAbsSteering:
		return math.Abs(r.Steering)
	}
	return Missing()
}

// Set assigns column c. Derived columns other than speed_change are ignored.
func (r *Row) Set(c Column, v float64) {
	switch c {
	case ColTime:
		r.Time = v
	case ColThrottle:
		r.Throttle = v
	case ColBrake:
		r.Brake = v
	case ColSteering:
		r.Steering = v
	case ColSpeed:
		r.Speed = v
	case ColTTC:
		r.TTC = v
	case ColSpeedChange:
		r.SpeedChange = v
	}
}

// Trial is one participant run: a contiguous block of rows whose indices
// increase by one from Rows[0].Index.
type Trial struct {
	// Number is the 1-based position of the trial in its source file.
	Number  int
	Columns []string
	Rows    []Row
}

// NewTrial builds a trial whose first row sits at index start. The Index
// field of each row is overwritten to keep the range contiguous.
func NewTrial(number, start int, rows []Row) Trial {
	for i := range rows {
		rows[i].Index = start + i
	}
	return Trial{Number: number, Rows: rows}
}

// Len returns the number of rows.
func (t *Trial) Len() int { return len(t.Rows) }

// Start returns the index of the first row, or -1 for an empty trial.
func (t *Trial) Start() int {
	if len(t.Rows) == 0 {
		return -1
	}
	return t.Rows[0].Index
}

// End returns the index of the last row, or -1 for an empty trial.
func (t *Trial) End() int {
	if len(t.Rows) == 0 {
		return -1
	}
	return t.Rows[len(t.Rows)-1].Index
}

// Has reports whether index falls inside the trial.
func (t *Trial) Has(index int) bool {
	return len(t.Rows) > 0 && index >= t.Start() && index <= t.End()
}

// At returns the row at index. The pointer aliases the trial's storage.
func (t *Trial) At(index int) (*Row, bool) {
	if !t.Has(index) {
		return nil, false
	}
	return &t.Rows[index-t.Start()], true
}

// Span returns the rows with from <= Index <= to, clamped to the trial.
func (t *Trial) Span(from, to int) []Row {
	if len(t.Rows) == 0 {
		return nil
	}
	if from < t.Start() {
		from = t.Start()
	}
	if to > t.End() {
		to = t.End()
	}
	if from > to {
		return nil
	}
	return t.Rows[from-t.Start() : to-t.Start()+1]
}
