package resolver_test

import (
	"context"
	"testing"
	"time"

	"culler/internal/catalog"
	"culler/internal/resolver"
	"culler/internal/testsupport"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestSelectOriginalPrefersEarliestCaptureTime(t *testing.T) {
	base := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	members := []*catalog.Entry{
		{ID: 1, Path: "/photos/b.jpg", CapturedAt: timePtr(base.Add(time.Hour)), FSModifiedAt: base},
		{ID: 2, Path: "/photos/a.jpg", CapturedAt: timePtr(base), FSModifiedAt: base.Add(time.Hour)},
	}
	if got := resolver.SelectOriginal(members); got.ID != 2 {
		t.Fatalf("expected earliest capture time to win, got %s", got.Path)
	}
}

func TestSelectOriginalCaptureTimePresenceOutranksModTime(t *testing.T) {
	base := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	members := []*catalog.Entry{
		{ID: 1, Path: "/photos/old.jpg", FSModifiedAt: base},
		{ID: 2, Path: "/photos/new.jpg", CapturedAt: timePtr(base.Add(48 * time.Hour)), FSModifiedAt: base.Add(48 * time.Hour)},
	}
	if got := resolver.SelectOriginal(members); got.ID != 2 {
		t.Fatalf("expected member with capture time to win, got %s", got.Path)
	}
}

func TestSelectOriginalFallsBackToModTimeThenPath(t *testing.T) {
	base := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	members := []*catalog.Entry{
		{ID: 1, Path: "/photos/z.jpg", FSModifiedAt: base.Add(time.Minute)},
		{ID: 2, Path: "/photos/m.jpg", FSModifiedAt: base},
	}
	if got := resolver.SelectOriginal(members); got.ID != 2 {
		t.Fatalf("expected earliest mtime to win, got %s", got.Path)
	}

	tie := []*catalog.Entry{
		{ID: 1, Path: "/photos/bbb.jpg", FSModifiedAt: base},
		{ID: 2, Path: "/photos/aaa.jpg", FSModifiedAt: base},
	}
	if got := resolver.SelectOriginal(tie); got.ID != 2 {
		t.Fatalf("expected smallest path to break tie, got %s", got.Path)
	}
}

func TestRunFormsGroupsAndPromotesSingletons(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	base := time.Date(2021, 3, 1, 8, 0, 0, 0, time.UTC)
	first := testsupport.SeedEntry(t, store, &catalog.Entry{
		Path: "/photos/orig.jpg", Root: "/photos", ContentHash: "dup-hash", FSModifiedAt: base,
	})
	second := testsupport.SeedEntry(t, store, &catalog.Entry{
		Path: "/photos/copy.jpg", Root: "/photos", ContentHash: "dup-hash", FSModifiedAt: base.Add(time.Hour),
	})
	lone := testsupport.SeedEntry(t, store, &catalog.Entry{
		Path: "/photos/lone.jpg", Root: "/photos", ContentHash: "lone-hash", FSModifiedAt: base,
	})

	run := &catalog.PhaseRun{}
	if err := resolver.New(store, nil).Run(ctx, run); err != nil {
		t.Fatalf("resolver run failed: %v", err)
	}
	// Counters belong to the verification step; resolution leaves them alone.
	if run.FilesFlagged != 0 || run.FilesErrored != 0 {
		t.Fatalf("unexpected counters: %+v", run)
	}

	orig, err := store.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	copy, err := store.GetByID(ctx, second.ID)
	if err != nil {
		t.Fatal(err)
	}
	single, err := store.GetByID(ctx, lone.ID)
	if err != nil {
		t.Fatal(err)
	}

	if orig.Status != catalog.StatusOriginal {
		t.Fatalf("expected earliest file as original: %#v", orig)
	}
	if copy.Status != catalog.StatusDuplicatePending || copy.GroupID == nil {
		t.Fatalf("expected later file pending: %#v", copy)
	}
	if single.Status != catalog.StatusOriginal || single.GroupID != nil {
		t.Fatalf("expected singleton promoted without group: %#v", single)
	}

	group, err := store.GroupByHash(ctx, "dup-hash")
	if err != nil {
		t.Fatal(err)
	}
	if group == nil || !group.Resolved() || *group.OriginalID != first.ID {
		t.Fatalf("unexpected group state: %#v", group)
	}
}

func TestRunKeepsVerifiedMembersAcrossReruns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	base := time.Date(2021, 3, 1, 8, 0, 0, 0, time.UTC)
	testsupport.SeedEntry(t, store, &catalog.Entry{
		Path: "/photos/orig.jpg", Root: "/photos", ContentHash: "h", FSModifiedAt: base,
	})
	dup := testsupport.SeedEntry(t, store, &catalog.Entry{
		Path: "/photos/copy.jpg", Root: "/photos", ContentHash: "h", FSModifiedAt: base.Add(time.Hour),
	})

	r := resolver.New(store, nil)
	if err := r.Run(ctx, &catalog.PhaseRun{}); err != nil {
		t.Fatal(err)
	}
	if err := store.SetStatus(ctx, dup.ID, catalog.StatusDuplicateVerified, catalog.EventVerifiedDuplicate); err != nil {
		t.Fatal(err)
	}

	rerun := &catalog.PhaseRun{}
	if err := r.Run(ctx, rerun); err != nil {
		t.Fatal(err)
	}
	after, err := store.GetByID(ctx, dup.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Status != catalog.StatusDuplicateVerified || after.LastEvent != catalog.EventVerifiedDuplicate {
		t.Fatalf("expected verified member untouched by rerun: %#v", after)
	}
}
