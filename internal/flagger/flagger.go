// Package flagger byte-verifies pending duplicates against their group's
// original. A hash match alone never authorizes removal; every pending
// member is compared in full before it becomes eligible for quarantine.
package flagger

import (
	"context"
	"fmt"
	"log/slog"

	"culler/internal/catalog"
	"culler/internal/config"
	"culler/internal/fileutil"
	"culler/internal/logging"
	"culler/internal/phase"
)

// Flagger verifies pending duplicate entries.
type Flagger struct {
	store      *catalog.Store
	chunkBytes int
	logger     *slog.Logger
}

// New constructs a Flagger.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger) *Flagger {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Flagger{
		store:      store,
		chunkBytes: cfg.ChunkBytes(),
		logger:     logging.NewComponentLogger(logger, "flagger"),
	}
}

// Run compares every pending duplicate to its original. Matches become
// verified; mismatches invalidate the group and return its unverified members
// for re-resolution. Per-file failures are recorded and counted, never fatal.
func (f *Flagger) Run(ctx context.Context, run *catalog.PhaseRun) error {
	pending, err := f.store.EntriesByStatus(ctx, catalog.StatusDuplicatePending)
	if err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "verify", "", err)
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A prior mismatch in the same run may have already reset this entry.
		current, err := f.store.GetByID(ctx, entry.ID)
		if err != nil {
			return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "verify", entry.Path, err)
		}
		if current == nil || current.Status != catalog.StatusDuplicatePending {
			continue
		}
		if err := f.verify(ctx, current, run); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flagger) verify(ctx context.Context, entry *catalog.Entry, run *catalog.PhaseRun) error {
	if entry.GroupID == nil {
		return f.recordFailure(ctx, entry, run, "pending entry has no group")
	}
	group, err := f.store.GroupByID(ctx, *entry.GroupID)
	if err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "verify", entry.Path, err)
	}
	if group == nil || group.OriginalID == nil {
		return f.recordFailure(ctx, entry, run, "group has no selected original")
	}
	original, err := f.store.GetByID(ctx, *group.OriginalID)
	if err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "verify", entry.Path, err)
	}
	if original == nil || original.Status != catalog.StatusOriginal {
		return f.recordFailure(ctx, entry, run, "group original is no longer available")
	}

	equal, err := fileutil.EqualContents(entry.Path, original.Path, f.chunkBytes)
	if err != nil {
		run.FilesErrored++
		f.logger.Warn("verification read failed",
			logging.String(logging.FieldPath, entry.Path), logging.Error(err))
		if setErr := f.store.SetError(ctx, entry.ID, catalog.EventReadError, err.Error()); setErr != nil {
			return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "persist", entry.Path, setErr)
		}
		return nil
	}

	if !equal {
		return f.handleMismatch(ctx, entry, original, group, run)
	}

	if err := f.store.SetStatus(ctx, entry.ID, catalog.StatusDuplicateVerified, catalog.EventVerifiedDuplicate); err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "persist", entry.Path, err)
	}
	run.FilesFlagged++
	f.logger.Debug("duplicate verified",
		logging.String(logging.FieldPath, entry.Path),
		logging.String("original", original.Path))
	return nil
}

// handleMismatch deals with a pending duplicate whose bytes diverged from its
// original after hashing. The entry is errored, the group's resolution is
// voided, and its remaining pending members go back to scanned so the next
// flag pass can re-form the group from fresh hashes.
func (f *Flagger) handleMismatch(ctx context.Context, entry, original *catalog.Entry, group *catalog.Group, run *catalog.PhaseRun) error {
	run.FilesErrored++
	f.logger.Warn("verification mismatch; file changed since scan",
		logging.String(logging.FieldPath, entry.Path),
		logging.String("original", original.Path))

	msg := fmt.Sprintf("content no longer matches original %s", original.Path)
	if err := f.store.SetError(ctx, entry.ID, catalog.EventVerifyMismatch, msg); err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "persist", entry.Path, err)
	}
	if err := f.store.InvalidateGroup(ctx, group.ID); err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "persist", entry.Path, err)
	}

	members, err := f.store.GroupMembers(ctx, group.ID)
	if err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "persist", entry.Path, err)
	}
	for _, member := range members {
		if member.ID == entry.ID || member.Status != catalog.StatusDuplicatePending {
			continue
		}
		if err := f.store.ClearGroup(ctx, member.ID, catalog.EventVerifyMismatch); err != nil {
			return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "persist", member.Path, err)
		}
	}
	return nil
}

func (f *Flagger) recordFailure(ctx context.Context, entry *catalog.Entry, run *catalog.PhaseRun, msg string) error {
	run.FilesErrored++
	if err := f.store.SetError(ctx, entry.ID, catalog.EventVerifyMismatch, msg); err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "persist", entry.Path, err)
	}
	return nil
}
