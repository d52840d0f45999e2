// Package executor quarantines verified duplicates. Files are moved into a
// mirror of their source tree under the quarantine root, never deleted.
// Every file is re-verified against its original immediately before the
// move; a file that changed since flagging is left in place and errored.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/sys/unix"

	"culler/internal/catalog"
	"culler/internal/config"
	"culler/internal/fileutil"
	"culler/internal/logging"
	"culler/internal/phase"
)

// collisionProbeLimit bounds the numeric-suffix search for an occupied
// quarantine name.
const collisionProbeLimit = 1000

// Executor moves verified duplicates into quarantine.
type Executor struct {
	cfg    *config.Config
	store  *catalog.Store
	logger *slog.Logger
}

// New constructs an Executor.
func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Executor{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "executor"),
	}
}

// Run quarantines every verified duplicate. Per-file failures are recorded on
// the entry and counted; the batch continues. Only catalog failures abort.
func (e *Executor) Run(ctx context.Context, run *catalog.PhaseRun) error {
	verified, err := e.store.EntriesByStatus(ctx, catalog.StatusDuplicateVerified)
	if err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseExecute, "list", "", err)
	}

	for _, entry := range verified {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := e.quarantine(ctx, entry, run); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) quarantine(ctx context.Context, entry *catalog.Entry, run *catalog.PhaseRun) error {
	original, err := e.lookupOriginal(ctx, entry)
	if err != nil {
		return err
	}
	if original == nil {
		return e.recordError(ctx, entry, run, catalog.EventVerifyMismatch, "group original is no longer available")
	}

	// Last line of defense: the bytes must still match the original at the
	// moment of removal, regardless of what the flag phase saw.
	equal, err := fileutil.EqualContents(entry.Path, original.Path, e.cfg.ChunkBytes())
	if err != nil {
		return e.recordError(ctx, entry, run, catalog.EventReadError, err.Error())
	}
	if !equal {
		e.logger.Warn("pre-move verification failed; leaving file in place",
			logging.String(logging.FieldPath, entry.Path),
			logging.String("original", original.Path))
		if entry.GroupID != nil {
			if invErr := e.store.InvalidateGroup(ctx, *entry.GroupID); invErr != nil {
				return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseExecute, "persist", entry.Path, invErr)
			}
		}
		return e.recordError(ctx, entry, run, catalog.EventVerifyMismatch,
			fmt.Sprintf("content no longer matches original %s", original.Path))
	}

	target, err := e.quarantineTarget(entry)
	if err != nil {
		return e.recordError(ctx, entry, run, catalog.EventMoveError, err.Error())
	}

	move := fileutil.MoveFile
	if !sameDevice(entry.Path, filepath.Dir(target)) {
		e.logger.Debug("cross-device quarantine move; using verified copy",
			logging.String(logging.FieldPath, entry.Path),
			logging.String("target", target))
		move = fileutil.CopyFileAndRemove
	}
	if err := move(entry.Path, target); err != nil {
		e.logger.Warn("quarantine move failed",
			logging.String(logging.FieldPath, entry.Path), logging.Error(err))
		return e.recordError(ctx, entry, run, catalog.EventMoveError, err.Error())
	}

	if err := e.store.MarkQuarantined(ctx, entry.ID, target); err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseExecute, "persist", entry.Path, err)
	}
	run.FilesMoved++
	run.BytesReclaimed += entry.SizeBytes
	e.logger.Info("duplicate quarantined",
		logging.String(logging.FieldPath, entry.Path),
		logging.String("target", target),
		logging.Int64("size", entry.SizeBytes))
	return nil
}

func (e *Executor) lookupOriginal(ctx context.Context, entry *catalog.Entry) (*catalog.Entry, error) {
	if entry.GroupID == nil {
		return nil, nil
	}
	group, err := e.store.GroupByID(ctx, *entry.GroupID)
	if err != nil {
		return nil, phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseExecute, "lookup", entry.Path, err)
	}
	if group == nil || group.OriginalID == nil {
		return nil, nil
	}
	original, err := e.store.GetByID(ctx, *group.OriginalID)
	if err != nil {
		return nil, phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseExecute, "lookup", entry.Path, err)
	}
	if original == nil || original.Status != catalog.StatusOriginal {
		return nil, nil
	}
	return original, nil
}

// quarantineTarget mirrors the file's position under its scan root into the
// quarantine area: <quarantine_dir>/<root base>/<relative path>. Occupied
// names gain a numeric suffix before the extension.
func (e *Executor) quarantineTarget(entry *catalog.Entry) (string, error) {
	rel := entry.RelativePath
	if rel == "" {
		rel = filepath.Base(entry.Path)
	}
	target := filepath.Join(e.cfg.Paths.QuarantineDir, filepath.Base(entry.Root), rel)

	unique, err := fileutil.EnsureUniquePath(target, collisionProbeLimit)
	if err != nil {
		return "", phase.Wrap(phase.ErrQuarantineWrite, catalog.PhaseExecute, "target", entry.Path, err)
	}
	return unique, nil
}

func (e *Executor) recordError(ctx context.Context, entry *catalog.Entry, run *catalog.PhaseRun, event, msg string) error {
	run.FilesErrored++
	if err := e.store.SetError(ctx, entry.ID, event, msg); err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseExecute, "persist", entry.Path, err)
	}
	return nil
}

// sameDevice reports whether path and dir sit on one filesystem. Unknown
// (missing dir, stat failure) counts as different so the caller assumes the
// slower verified-copy path.
func sameDevice(path, dir string) bool {
	var src, dst unix.Stat_t
	if err := unix.Stat(path, &src); err != nil {
		return false
	}
	for probe := dir; ; probe = filepath.Dir(probe) {
		if err := unix.Stat(probe, &dst); err == nil {
			return src.Dev == dst.Dev
		}
		if probe == filepath.Dir(probe) {
			return false
		}
	}
}
