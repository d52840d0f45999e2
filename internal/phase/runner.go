// Package phase coordinates phase execution: catalog locking, ordering
// preconditions, audit rows, and the error taxonomy that drives exit codes.
package phase

import (
	"context"
	"fmt"
	"log/slog"

	"culler/internal/catalog"
	"culler/internal/logging"
)

// Func is the body of one phase. It records its counters on run.
type Func func(ctx context.Context, run *catalog.PhaseRun) error

// Runner executes phases against one catalog, recording an audit row per
// invocation. Callers hold the catalog lock for the whole invocation, which
// may span several phases.
type Runner struct {
	store  *catalog.Store
	logger *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(store *catalog.Store, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{store: store, logger: logger}
}

// Run checks the phase's ordering precondition, records a phase_runs row,
// executes fn, and persists the final counters. A phase that finishes with
// per-file errors returns an ErrPartial-tagged error after its counters are
// saved, so callers can distinguish "partial" from "failed".
func (r *Runner) Run(ctx context.Context, phaseName, mode string, fn Func) (*catalog.PhaseRun, error) {
	if err := r.checkPrecondition(ctx, phaseName); err != nil {
		return nil, err
	}

	run, err := r.store.StartRun(ctx, phaseName, mode)
	if err != nil {
		return nil, Wrap(ErrCatalogCorrupt, phaseName, "start", "", err)
	}
	r.logger.Info("phase started",
		logging.String(logging.FieldPhase, phaseName),
		logging.String(logging.FieldRunID, run.RunID),
		logging.String("mode", mode))

	if err := fn(ctx, run); err != nil {
		// The run row stays open; an incomplete run never satisfies a later
		// phase's precondition.
		r.logger.Error("phase failed",
			logging.String(logging.FieldPhase, phaseName),
			logging.String(logging.FieldRunID, run.RunID),
			logging.Error(err))
		return run, err
	}

	if err := r.store.CompleteRun(ctx, run); err != nil {
		return run, Wrap(ErrCatalogCorrupt, phaseName, "complete", "", err)
	}
	r.logger.Info("phase completed",
		logging.String(logging.FieldPhase, phaseName),
		logging.String(logging.FieldRunID, run.RunID),
		logging.Int64("seen", run.FilesSeen),
		logging.Int64("hashed", run.FilesHashed),
		logging.Int64("flagged", run.FilesFlagged),
		logging.Int64("moved", run.FilesMoved),
		logging.Int64("errored", run.FilesErrored))

	if run.FilesErrored > 0 {
		return run, Wrap(ErrPartial, phaseName, "", fmt.Sprintf("%d files errored", run.FilesErrored), nil)
	}
	return run, nil
}

// checkPrecondition enforces phase ordering: flag requires a completed scan,
// execute requires a completed flag pass and no unverified duplicates.
func (r *Runner) checkPrecondition(ctx context.Context, phaseName string) error {
	switch phaseName {
	case catalog.PhaseScan:
		return nil
	case catalog.PhaseFlag:
		scan, err := r.store.LastCompletedRun(ctx, catalog.PhaseScan)
		if err != nil {
			return Wrap(ErrCatalogCorrupt, phaseName, "precondition", "", err)
		}
		if scan == nil {
			return Wrap(ErrPrecondition, phaseName, "precondition", "no completed scan; run --scan first", nil)
		}
		return nil
	case catalog.PhaseExecute:
		flag, err := r.store.LastCompletedRun(ctx, catalog.PhaseFlag)
		if err != nil {
			return Wrap(ErrCatalogCorrupt, phaseName, "precondition", "", err)
		}
		if flag == nil {
			return Wrap(ErrPrecondition, phaseName, "precondition", "no completed flag pass; run --flag-deletions first", nil)
		}
		counts, err := r.store.CountByStatus(ctx)
		if err != nil {
			return Wrap(ErrCatalogCorrupt, phaseName, "precondition", "", err)
		}
		if pending := counts[catalog.StatusDuplicatePending]; pending > 0 {
			return Wrap(ErrPrecondition, phaseName, "precondition",
				fmt.Sprintf("%d duplicates still pending verification", pending), nil)
		}
		return nil
	default:
		return Wrap(ErrPrecondition, phaseName, "precondition", "unknown phase", nil)
	}
}
