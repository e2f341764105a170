package telemetry

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedComparison is returned when an operator name is not one of
// lt, le, eq, ne, gt, ge.
var ErrUnsupportedComparison = errors.New("unsupported comparison")

// ComparisonOp is a threshold comparison applied to a column value.
type ComparisonOp int

const (
	OpLT ComparisonOp = iota
	OpLE
	OpEQ
	OpNE
	OpGT
	OpGE
)

var opNames = [...]string{"lt", "le", "eq", "ne", "gt", "ge"}

func (op ComparisonOp) String() string {
	if op >= 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("ComparisonOp(%d)", int(op))
}

// ParseComparisonOp parses one of the short operator names.
func ParseComparisonOp(s string) (ComparisonOp, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	for i, name := range opNames {
		if name == n {
			return ComparisonOp(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedComparison, s)
}

// Compare applies op to v and threshold. A missing operand never satisfies
// any operator, ne included.
func (op ComparisonOp) Compare(v, threshold float64) bool {
	if IsMissing(v) || IsMissing(threshold) {
		return false
	}
	switch op {
	case OpLT:
		return v < threshold
	case OpLE:
		return v <= threshold
	case OpEQ:
		return v == threshold
	case OpNE:
		return v != threshold
	case OpGT:
		return v > threshold
	case OpGE:
		return v >= threshold
	}
	return false
}

// Direction selects the scan order over a row slice.
type Direction int

const (
	// Down scans in file order.
	Down Direction = iota
	// Up scans in reverse file order.
	Up
)

// Find returns the Index of the first row, scanning in dir, for which match
// returns true.
func Find(rows []Row, dir Direction, match func(Row) bool) (int, bool) {
	if dir == Up {
		for i := len(rows) - 1; i >= 0; i-- {
			if match(rows[i]) {
				return rows[i].Index, true
			}
		}
		return 0, false
	}
	for _, r := range rows {
		if match(r) {
			return r.Index, true
		}
	}
	return 0, false
}

// FindRow returns the Index of the first row, scanning in dir, whose column
// compares true against threshold. Rows stamped at time zero are skipped.
func FindRow(rows []Row, dir Direction, col Column, threshold float64, op ComparisonOp) (int, bool) {
	return Find(rows, dir, func(r Row) bool {
		return r.Time != 0 && op.Compare(r.Get(col), threshold)
	})
}
