// Package resolver groups files sharing a content hash and selects each
// group's original. Selection is deterministic: earliest capture time wins,
// then earliest filesystem modification, then lexicographically smallest
// path. A file with a capture time always outranks one without.
package resolver

import (
	"context"
	"log/slog"
	"sort"

	"culler/internal/catalog"
	"culler/internal/logging"
	"culler/internal/phase"
)

// Resolver performs group formation and original selection.
type Resolver struct {
	store  *catalog.Store
	logger *slog.Logger
}

// New constructs a Resolver.
func New(store *catalog.Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{store: store, logger: logging.NewComponentLogger(logger, "resolver")}
}

// Run forms duplicate groups from the cataloged hashes, selects originals,
// and marks the remaining members pending verification. Files not in any
// group are promoted to original. Re-running is idempotent: already verified
// members of an unchanged group keep their status.
func (r *Resolver) Run(ctx context.Context, run *catalog.PhaseRun) error {
	hashes, err := r.store.DuplicateHashes(ctx)
	if err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "group", "", err)
	}

	for _, hash := range hashes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.resolveGroup(ctx, hash); err != nil {
			return err
		}
	}

	promoted, err := r.store.MarkSingletonsOriginal(ctx)
	if err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "promote", "", err)
	}
	r.logger.Info("resolution complete",
		logging.Int("groups", len(hashes)),
		logging.Int64("unique_files", promoted))
	return nil
}

func (r *Resolver) resolveGroup(ctx context.Context, hash string) error {
	members, err := r.store.LiveEntriesByHash(ctx, hash)
	if err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "group", hash, err)
	}
	if len(members) < 2 {
		return nil
	}

	groupID, err := r.store.EnsureGroup(ctx, hash, len(members))
	if err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "group", hash, err)
	}

	original := SelectOriginal(members)
	if err := r.store.AssignGroup(ctx, original.ID, groupID, catalog.StatusOriginal, catalog.EventMarkedOriginal); err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "assign", original.Path, err)
	}

	for _, member := range members {
		if member.ID == original.ID {
			continue
		}
		if member.Status == catalog.StatusDuplicateVerified &&
			member.GroupID != nil && *member.GroupID == groupID {
			continue
		}
		if err := r.store.AssignGroup(ctx, member.ID, groupID, catalog.StatusDuplicatePending, catalog.EventFlaggedPending); err != nil {
			return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "assign", member.Path, err)
		}
	}

	if err := r.store.ResolveGroup(ctx, groupID, original.ID); err != nil {
		return phase.Wrap(phase.ErrCatalogCorrupt, catalog.PhaseFlag, "resolve", hash, err)
	}

	r.logger.Debug("group resolved",
		logging.String(logging.FieldHash, hash),
		logging.Int("members", len(members)),
		logging.String("original", original.Path))
	return nil
}

// SelectOriginal picks the canonical member of a duplicate group. Members
// must be non-empty; the choice depends only on member metadata, never on
// discovery order.
func SelectOriginal(members []*catalog.Entry) *catalog.Entry {
	ranked := append([]*catalog.Entry(nil), members...)
	sort.Slice(ranked, func(i, j int) bool {
		return ranksBefore(ranked[i], ranked[j])
	})
	return ranked[0]
}

func ranksBefore(a, b *catalog.Entry) bool {
	switch {
	case a.CapturedAt != nil && b.CapturedAt == nil:
		return true
	case a.CapturedAt == nil && b.CapturedAt != nil:
		return false
	case a.CapturedAt != nil && b.CapturedAt != nil && !a.CapturedAt.Equal(*b.CapturedAt):
		return a.CapturedAt.Before(*b.CapturedAt)
	}
	if !a.FSModifiedAt.Equal(b.FSModifiedAt) {
		return a.FSModifiedAt.Before(b.FSModifiedAt)
	}
	return a.Path < b.Path
}
