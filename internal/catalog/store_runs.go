package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StartRun records the beginning of a phase invocation and returns its
// generated run id.
func (s *Store) StartRun(ctx context.Context, phase, mode string) (*PhaseRun, error) {
	run := &PhaseRun{
		RunID:     uuid.NewString(),
		Phase:     phase,
		Mode:      mode,
		StartedAt: time.Now().UTC(),
	}
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO phase_runs (run_id, phase, mode, started_at) VALUES (?, ?, ?, ?)",
		run.RunID, run.Phase, run.Mode, formatTime(run.StartedAt))
	if err != nil {
		return nil, fmt.Errorf("start %s run: %w", phase, err)
	}
	if id, idErr := result.LastInsertId(); idErr == nil {
		run.ID = id
	}
	return run, nil
}

// CompleteRun persists a run's final counters and completion time.
func (s *Store) CompleteRun(ctx context.Context, run *PhaseRun) error {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `
		UPDATE phase_runs SET
			completed_at = ?,
			files_seen = ?,
			files_hashed = ?,
			files_skipped = ?,
			files_flagged = ?,
			files_moved = ?,
			files_errored = ?,
			bytes_reclaimed = ?
		WHERE run_id = ?`,
		formatTime(now),
		run.FilesSeen,
		run.FilesHashed,
		run.FilesSkipped,
		run.FilesFlagged,
		run.FilesMoved,
		run.FilesErrored,
		run.BytesReclaimed,
		run.RunID); err != nil {
		return fmt.Errorf("complete %s run %s: %w", run.Phase, run.RunID, err)
	}
	run.CompletedAt = &now
	return nil
}

// LastRun returns the most recently started run for a phase, or nil.
func (s *Store) LastRun(ctx context.Context, phase string) (*PhaseRun, error) {
	row := s.db.QueryRowContext(ctx,
		runSelect+" WHERE phase = ? ORDER BY started_at DESC, id DESC LIMIT 1", phase)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last %s run: %w", phase, err)
	}
	return run, nil
}

// LastCompletedRun returns the most recent completed run for a phase, or nil.
func (s *Store) LastCompletedRun(ctx context.Context, phase string) (*PhaseRun, error) {
	row := s.db.QueryRowContext(ctx,
		runSelect+" WHERE phase = ? AND completed_at IS NOT NULL ORDER BY completed_at DESC, id DESC LIMIT 1", phase)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last completed %s run: %w", phase, err)
	}
	return run, nil
}

// RecentRuns returns up to limit runs across all phases, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*PhaseRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		runSelect+" ORDER BY started_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*PhaseRun
	for rows.Next() {
		run, scanErr := scanRun(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan run: %w", scanErr)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const runSelect = "SELECT id, run_id, phase, mode, started_at, completed_at, files_seen, files_hashed, files_skipped, files_flagged, files_moved, files_errored, bytes_reclaimed FROM phase_runs"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*PhaseRun, error) {
	var (
		run          PhaseRun
		startedRaw   string
		completedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.RunID,
		&run.Phase,
		&run.Mode,
		&startedRaw,
		&completedRaw,
		&run.FilesSeen,
		&run.FilesHashed,
		&run.FilesSkipped,
		&run.FilesFlagged,
		&run.FilesMoved,
		&run.FilesErrored,
		&run.BytesReclaimed,
	); err != nil {
		return nil, err
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			run.CompletedAt = &completed
		}
	}
	return &run, nil
}
