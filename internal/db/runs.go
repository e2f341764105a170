package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/reaction.report/internal/reaction"
	"github.com/banshee-data/reaction.report/internal/timeutil"
	"github.com/banshee-data/reaction.report/internal/version"
)

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("analysis run not found")

// Trial window statuses.
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
)

// Run is one invocation of the analyzer over a source file.
type Run struct {
	ID         string
	SourcePath string
	Version    string
	TrialCount int
	CreatedAt  time.Time
}

// NewRun stamps a new run with a fresh id and the build version.
func NewRun(clock timeutil.Clock, sourcePath string, trialCount int) Run {
	return Run{
		ID:         uuid.NewString(),
		SourcePath: sourcePath,
		Version:    version.String(),
		TrialCount: trialCount,
		CreatedAt:  clock.Now().UTC(),
	}
}

// TrialWindow is the stored form of one trial's outcome. Pointer fields are
// NULL when the value was not derived.
type TrialWindow struct {
	RunID         string
	TrialNumber   int
	Status        string
	FirstIndex    *int
	UpperBound    *int
	ReportedUpper *int
	LowerBound    *int
	ReactionTime  *float64
	UpperStrategy *string
	SkipReason    *string
}

func intPtr(v int) *int { return &v }

// WindowFromOutcome converts a batch outcome into its stored form.
func WindowFromOutcome(runID string, o reaction.Outcome) TrialWindow {
	w := TrialWindow{RunID: runID, TrialNumber: o.Trial}
	if o.Skipped() {
		reason := o.Err.Error()
		w.Status = StatusSkipped
		w.SkipReason = &reason
		return w
	}

	b := o.Boundaries
	strategy := b.Upper.Strategy.String()
	w.Status = StatusOK
	w.FirstIndex = intPtr(b.FirstIndex)
	w.ReportedUpper = intPtr(b.ReportedUpper)
	w.LowerBound = intPtr(b.LowerBound)
	w.UpperStrategy = &strategy
	if b.Upper.Found {
		w.UpperBound = intPtr(b.Upper.Index)
	}
	if b.ReactionTime.OK {
		rt := b.ReactionTime.Seconds
		w.ReactionTime = &rt
	}
	return w
}

// RecordRun stores run and its windows in a single transaction.
func (db *DB) RecordRun(ctx context.Context, run Run, windows []TrialWindow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO analysis_runs (run_id, source_path, version, trial_count, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.SourcePath, run.Version, run.TrialCount, run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trial_windows (
			run_id, trial_number, status, first_index, upper_bound, reported_upper,
			lower_bound, reaction_time_s, upper_strategy, skip_reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare window insert: %w", err)
	}
	defer stmt.Close()

	for _, w := range windows {
		_, err := stmt.ExecContext(ctx,
			run.ID, w.TrialNumber, w.Status, w.FirstIndex, w.UpperBound, w.ReportedUpper,
			w.LowerBound, w.ReactionTime, w.UpperStrategy, w.SkipReason,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trial %d: %w", w.TrialNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns the run with the given id.
func (db *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	var created int64
	err := db.QueryRowContext(ctx,
		`SELECT run_id, source_path, version, trial_count, created_at
		FROM analysis_runs WHERE run_id = ?`, id,
	).Scan(&run.ID, &run.SourcePath, &run.Version, &run.TrialCount, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	return &run, nil
}

// ListRuns returns every run, newest first.
func (db *DB) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, source_path, version, trial_count, created_at
		FROM analysis_runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var created int64
		if err := rows.Scan(&run.ID, &run.SourcePath, &run.Version, &run.TrialCount, &created); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.CreatedAt = time.Unix(0, created).UTC()
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListTrialWindows returns the windows of a run in trial order.
func (db *DB) ListTrialWindows(ctx context.Context, runID string) ([]TrialWindow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, trial_number, status, first_index, upper_bound, reported_upper,
			lower_bound, reaction_time_s, upper_strategy, skip_reason
		FROM trial_windows WHERE run_id = ? ORDER BY trial_number`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query windows for run %s: %w", runID, err)
	}
	defer rows.Close()

	var windows []TrialWindow
	for rows.Next() {
		var w TrialWindow
		var first, upper, reported, lower sql.NullInt64
		var rt sql.NullFloat64
		var strategy, reason sql.NullString
		if err := rows.Scan(&w.RunID, &w.TrialNumber, &w.Status, &first, &upper, &reported,
			&lower, &rt, &strategy, &reason); err != nil {
			return nil, fmt.Errorf("failed to scan trial window: %w", err)
		}
		w.FirstIndex = nullInt(first)
		w.UpperBound = nullInt(upper)
		w.ReportedUpper = nullInt(reported)
		w.LowerBound = nullInt(lower)
		if rt.Valid {
			w.ReactionTime = &rt.Float64
		}
		if strategy.Valid {
			w.UpperStrategy = &strategy.String
		}
		if reason.Valid {
			w.SkipReason = &reason.String
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return intPtr(int(v.Int64))
}
