package flagger_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"culler/internal/catalog"
	"culler/internal/flagger"
	"culler/internal/resolver"
	"culler/internal/testsupport"
)

func seedGroup(t *testing.T, store *catalog.Store, dir string, originalBytes, dupBytes []byte) (original, dup *catalog.Entry) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	origPath := filepath.Join(dir, "orig.jpg")
	dupPath := filepath.Join(dir, "copy.jpg")
	testsupport.WriteFile(t, origPath, originalBytes)
	testsupport.WriteFile(t, dupPath, dupBytes)

	original = testsupport.SeedEntry(t, store, &catalog.Entry{
		Path: origPath, Root: dir, ContentHash: "shared", FSModifiedAt: base,
	})
	dup = testsupport.SeedEntry(t, store, &catalog.Entry{
		Path: dupPath, Root: dir, ContentHash: "shared", FSModifiedAt: base.Add(time.Hour),
	})

	if err := resolver.New(store, nil).Run(ctx, &catalog.PhaseRun{}); err != nil {
		t.Fatalf("resolver run failed: %v", err)
	}
	return original, dup
}

func TestRunVerifiesMatchingDuplicate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	dir := t.TempDir()
	payload := []byte("identical bytes on disk")

	_, dup := seedGroup(t, store, dir, payload, payload)

	run := &catalog.PhaseRun{}
	if err := flagger.New(cfg, store, nil).Run(context.Background(), run); err != nil {
		t.Fatalf("flagger run failed: %v", err)
	}
	if run.FilesFlagged != 1 || run.FilesErrored != 0 {
		t.Fatalf("unexpected counters: %+v", run)
	}

	after, err := store.GetByID(context.Background(), dup.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Status != catalog.StatusDuplicateVerified || after.LastEvent != catalog.EventVerifiedDuplicate {
		t.Fatalf("expected verified duplicate: %#v", after)
	}
}

// The resolver and the flagger share one audit row per flag invocation, so
// a verified duplicate must count exactly once across both.
func TestRunCountsEachDuplicateOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	dir := t.TempDir()
	payload := []byte("identical bytes on disk")
	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	origPath := filepath.Join(dir, "orig.jpg")
	dupPath := filepath.Join(dir, "copy.jpg")
	testsupport.WriteFile(t, origPath, payload)
	testsupport.WriteFile(t, dupPath, payload)
	testsupport.SeedEntry(t, store, &catalog.Entry{
		Path: origPath, Root: dir, ContentHash: "shared", FSModifiedAt: base,
	})
	testsupport.SeedEntry(t, store, &catalog.Entry{
		Path: dupPath, Root: dir, ContentHash: "shared", FSModifiedAt: base.Add(time.Hour),
	})

	ctx := context.Background()
	run := &catalog.PhaseRun{}
	if err := resolver.New(store, nil).Run(ctx, run); err != nil {
		t.Fatalf("resolver run failed: %v", err)
	}
	if err := flagger.New(cfg, store, nil).Run(ctx, run); err != nil {
		t.Fatalf("flagger run failed: %v", err)
	}

	if run.FilesFlagged != 1 {
		t.Fatalf("one duplicate should count once, got FilesFlagged = %d", run.FilesFlagged)
	}
}

func TestRunMismatchInvalidatesGroup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	dir := t.TempDir()

	// Hashes collide in the catalog but on-disk bytes differ, as if the copy
	// was edited between scan and flag.
	_, dup := seedGroup(t, store, dir, []byte("original bytes"), []byte("edited bytes!!"))

	run := &catalog.PhaseRun{}
	if err := flagger.New(cfg, store, nil).Run(context.Background(), run); err != nil {
		t.Fatalf("flagger run failed: %v", err)
	}
	if run.FilesFlagged != 0 || run.FilesErrored != 1 {
		t.Fatalf("unexpected counters: %+v", run)
	}

	ctx := context.Background()
	after, err := store.GetByID(ctx, dup.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Status != catalog.StatusError || after.LastEvent != catalog.EventVerifyMismatch {
		t.Fatalf("expected mismatch error state: %#v", after)
	}

	group, err := store.GroupByHash(ctx, "shared")
	if err != nil {
		t.Fatal(err)
	}
	if group == nil || group.Resolved() {
		t.Fatalf("expected group invalidated: %#v", group)
	}
}

func TestRunUnreadableDuplicateIsRecordedNotFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	dir := t.TempDir()
	payload := []byte("bytes")

	_, dup := seedGroup(t, store, dir, payload, payload)

	// Remove the duplicate from disk before verification.
	if err := os.Remove(dup.Path); err != nil {
		t.Fatal(err)
	}

	run := &catalog.PhaseRun{}
	if err := flagger.New(cfg, store, nil).Run(context.Background(), run); err != nil {
		t.Fatalf("flagger run failed: %v", err)
	}
	if run.FilesErrored != 1 {
		t.Fatalf("unexpected counters: %+v", run)
	}

	after, err := store.GetByID(context.Background(), dup.ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Status != catalog.StatusError || after.LastEvent != catalog.EventReadError {
		t.Fatalf("expected read error state: %#v", after)
	}
}
