package scanner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"culler/internal/catalog"
	"culler/internal/config"
	"culler/internal/fingerprint"
	"culler/internal/logging"
	"culler/internal/phase"
	"culler/internal/walker"
)

// Scanner drives the scan phase for a set of roots.
type Scanner struct {
	cfg       *config.Config
	store     *catalog.Store
	hasher    *fingerprint.Hasher
	mode      fingerprint.Mode
	recursive bool
	logger    *slog.Logger
}

// New constructs a Scanner.
func New(cfg *config.Config, store *catalog.Store, mode fingerprint.Mode, recursive bool, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{
		cfg:       cfg,
		store:     store,
		hasher:    fingerprint.NewHasher(cfg.ChunkBytes(), cfg.PrefixBytes()),
		mode:      mode,
		recursive: recursive,
		logger:    logging.NewComponentLogger(logger, "scanner"),
	}
}

type hashResult struct {
	file walker.File
	fp   *fingerprint.Fingerprint
	err  error
}

// Run scans the given roots, recording counters on run. Per-file failures are
// persisted as errored entries and counted; only catalog or traversal-level
// failures abort the phase.
func (s *Scanner) Run(ctx context.Context, roots []string, run *catalog.PhaseRun) error {
	var seen, hashed, skipped, errored atomic.Int64

	jobs := make(chan walker.File)
	results := make(chan hashResult)

	workers := s.cfg.Scan.Workers
	var workerWG sync.WaitGroup
	for i := 0; i < workers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for file := range jobs {
				fp, err := s.hasher.File(file.Path, s.mode)
				if err != nil {
					// One retry absorbs transient NAS read failures.
					fp, err = s.hasher.File(file.Path, s.mode)
				}
				select {
				case results <- hashResult{file: file, fp: fp, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	writerDone := make(chan error, 1)
	go func() {
		writerDone <- s.consumeResults(ctx, results, &hashed, &errored)
	}()

	walkErr := s.walkRoots(ctx, roots, jobs, &seen, &skipped, &errored)
	close(jobs)
	workerWG.Wait()
	close(results)
	if err := <-writerDone; err != nil {
		return err
	}
	if walkErr != nil {
		return walkErr
	}

	if s.mode == fingerprint.ModePerformance {
		if err := s.hashCollisions(ctx, &errored); err != nil {
			return err
		}
	}

	run.FilesSeen = seen.Load()
	run.FilesHashed = hashed.Load()
	run.FilesSkipped = skipped.Load()
	run.FilesErrored = errored.Load()
	return nil
}

func (s *Scanner) walkRoots(ctx context.Context, roots []string, jobs chan<- walker.File, seen, skipped, errored *atomic.Int64) error {
	w := walker.New(s.cfg, s.recursive, s.logger)
	for _, root := range roots {
		resolved, err := walker.NormalizeRoot(root)
		if err != nil {
			return phase.Wrap(phase.ErrPrecondition, catalog.PhaseScan, "walk", "", err)
		}

		onError := func(path string, walkErr error) {
			errored.Add(1)
			if recordErr := s.store.RecordWalkError(ctx, path, resolved, walkErr.Error()); recordErr != nil {
				s.logger.Error("failed to record walk error",
					logging.String(logging.FieldPath, path), logging.Error(recordErr))
			}
		}

		err = w.Walk(ctx, resolved, func(file walker.File) error {
			seen.Add(1)
			existing, getErr := s.store.GetByPath(ctx, file.Path)
			if getErr != nil {
				return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseScan, "lookup", file.Path, getErr)
			}
			if s.unchanged(existing, file) {
				skipped.Add(1)
				return s.store.TouchLastSeen(ctx, existing.ID)
			}
			select {
			case jobs <- file:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}, onError)
		if err != nil {
			return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseScan, "walk", resolved, err)
		}
	}
	return nil
}

// unchanged reports whether an entry can be carried over without re-hashing:
// same size and mtime, a fingerprint adequate for the current mode, and a
// status the pipeline can still act on.
func (s *Scanner) unchanged(existing *catalog.Entry, file walker.File) bool {
	if existing == nil {
		return false
	}
	if existing.Status == catalog.StatusError || existing.Status == catalog.StatusRemoved {
		return false
	}
	if existing.SizeBytes != file.Info.Size() {
		return false
	}
	if !existing.FSModifiedAt.Equal(file.Info.ModTime().UTC()) {
		return false
	}
	if existing.ContentHash != "" {
		return true
	}
	return s.mode == fingerprint.ModePerformance && existing.PrefixHash != ""
}

// consumeResults persists hash results. After a catalog failure it keeps
// draining the channel so blocked workers can exit, then reports the first
// error.
func (s *Scanner) consumeResults(ctx context.Context, results <-chan hashResult, hashed, errored *atomic.Int64) error {
	var firstErr error
	for result := range results {
		if firstErr != nil {
			continue
		}
		if err := s.persistResult(ctx, result, hashed, errored); err != nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Scanner) persistResult(ctx context.Context, result hashResult, hashed, errored *atomic.Int64) error {
	if result.err != nil {
		errored.Add(1)
		s.logger.Warn("fingerprint failed",
			logging.String(logging.FieldPath, result.file.Path), logging.Error(result.err))
		return s.recordReadError(ctx, result.file, result.err)
	}

	existing, err := s.store.GetByPath(ctx, result.file.Path)
	if err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseScan, "lookup", result.file.Path, err)
	}
	event := catalog.EventScanned
	if existing != nil {
		event = catalog.EventRescanned
	}

	entry := &catalog.Entry{
		Path:         result.file.Path,
		Root:         result.file.Root,
		RelativePath: result.file.RelativePath,
		SizeBytes:    result.fp.SizeBytes,
		FSModifiedAt: result.fp.FSModifiedAt,
		CapturedAt:   result.fp.CapturedAt,
		ContentHash:  result.fp.ContentHash,
		PrefixHash:   result.fp.PrefixHash,
		Status:       catalog.StatusScanned,
		LastEvent:    event,
	}
	if existing != nil {
		entry.ID = existing.ID
	}
	if err := s.store.UpsertEntry(ctx, entry); err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseScan, "persist", result.file.Path, err)
	}
	hashed.Add(1)
	s.logger.Debug("fingerprinted file",
		logging.String(logging.FieldPath, result.file.Path),
		logging.Int64("size", result.fp.SizeBytes))
	return nil
}

func (s *Scanner) recordReadError(ctx context.Context, file walker.File, readErr error) error {
	existing, err := s.store.GetByPath(ctx, file.Path)
	if err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseScan, "lookup", file.Path, err)
	}
	if existing != nil {
		if err := s.store.SetError(ctx, existing.ID, catalog.EventReadError, readErr.Error()); err != nil {
			return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseScan, "persist", file.Path, err)
		}
		return nil
	}
	if err := s.store.RecordWalkError(ctx, file.Path, file.Root, readErr.Error()); err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseScan, "persist", file.Path, err)
	}
	return nil
}

// hashCollisions upgrades prefix-colliding entries to full content hashes.
// Only entries whose size and prefix both collide with another live entry
// are read again; proven-unique files stay prefix-only. The upgrade does not
// touch the hashed counter: each file counts once per run, in the main pass.
func (s *Scanner) hashCollisions(ctx context.Context, errored *atomic.Int64) error {
	candidates, err := s.store.PrefixCollisions(ctx)
	if err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseScan, "collisions", "", err)
	}
	if len(candidates) == 0 {
		return nil
	}
	s.logger.Info("resolving prefix collisions", logging.Int("candidates", len(candidates)))

	jobs := make(chan *catalog.Entry)
	type fullResult struct {
		entry *catalog.Entry
		hash  string
		err   error
	}
	results := make(chan fullResult)

	var workerWG sync.WaitGroup
	for i := 0; i < s.cfg.Scan.Workers; i++ {
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			for entry := range jobs {
				hash, hashErr := s.hasher.HashFull(entry.Path)
				if hashErr != nil {
					hash, hashErr = s.hasher.HashFull(entry.Path)
				}
				select {
				case results <- fullResult{entry: entry, hash: hash, err: hashErr}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	writerDone := make(chan error, 1)
	go func() {
		var firstErr error
		for result := range results {
			if firstErr != nil {
				continue
			}
			if result.err != nil {
				errored.Add(1)
				if err := s.store.SetError(ctx, result.entry.ID, catalog.EventReadError, result.err.Error()); err != nil {
					firstErr = phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseScan, "persist", result.entry.Path, err)
				}
				continue
			}
			if err := s.store.SetContentHash(ctx, result.entry.ID, result.hash); err != nil {
				firstErr = phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseScan, "persist", result.entry.Path, err)
			}
		}
		writerDone <- firstErr
	}()

	var sendErr error
	for _, entry := range candidates {
		select {
		case jobs <- entry:
		case <-ctx.Done():
			sendErr = ctx.Err()
		}
		if sendErr != nil {
			break
		}
	}
	close(jobs)
	workerWG.Wait()
	close(results)
	if err := <-writerDone; err != nil {
		return err
	}
	return sendErr
}
