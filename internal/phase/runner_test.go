package phase_test

import (
	"context"
	"errors"
	"testing"

	"culler/internal/catalog"
	"culler/internal/phase"
	"culler/internal/testsupport"
)

func TestRunRecordsCompletedAudit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	runner := phase.NewRunner(store, nil)

	ctx := context.Background()
	run, err := runner.Run(ctx, catalog.PhaseScan, "safety", func(_ context.Context, run *catalog.PhaseRun) error {
		run.FilesSeen = 5
		run.FilesHashed = 5
		return nil
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !run.Completed() {
		t.Fatal("expected run completed")
	}

	stored, err := store.LastCompletedRun(ctx, catalog.PhaseScan)
	if err != nil {
		t.Fatal(err)
	}
	if stored == nil || stored.FilesSeen != 5 {
		t.Fatalf("unexpected stored run: %#v", stored)
	}
}

func TestRunPartialReturnsTaggedError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	runner := phase.NewRunner(store, nil)

	run, err := runner.Run(context.Background(), catalog.PhaseScan, "safety", func(_ context.Context, run *catalog.PhaseRun) error {
		run.FilesSeen = 3
		run.FilesErrored = 1
		return nil
	})
	if !errors.Is(err, phase.ErrPartial) {
		t.Fatalf("expected ErrPartial, got %v", err)
	}
	if !run.Completed() {
		t.Fatal("partial run must still persist its counters")
	}
	if phase.ExitCode(err) != 2 {
		t.Fatalf("expected exit code 2, got %d", phase.ExitCode(err))
	}
}

func TestRunFailureLeavesRunIncomplete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	runner := phase.NewRunner(store, nil)

	ctx := context.Background()
	boom := errors.New("boom")
	_, err := runner.Run(ctx, catalog.PhaseScan, "safety", func(context.Context, *catalog.PhaseRun) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected failure propagated, got %v", err)
	}

	completed, err := store.LastCompletedRun(ctx, catalog.PhaseScan)
	if err != nil {
		t.Fatal(err)
	}
	if completed != nil {
		t.Fatalf("failed run must not count as completed: %#v", completed)
	}
}

func TestFlagRequiresCompletedScan(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	runner := phase.NewRunner(store, nil)

	ctx := context.Background()
	_, err := runner.Run(ctx, catalog.PhaseFlag, "safety", func(context.Context, *catalog.PhaseRun) error {
		t.Fatal("phase body must not run when precondition fails")
		return nil
	})
	if !errors.Is(err, phase.ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
	if phase.ExitCode(err) != 1 {
		t.Fatalf("expected exit code 1, got %d", phase.ExitCode(err))
	}
}

func TestExecuteRequiresFlagAndNoPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)
	runner := phase.NewRunner(store, nil)
	ctx := context.Background()

	noop := func(context.Context, *catalog.PhaseRun) error { return nil }

	if _, err := runner.Run(ctx, catalog.PhaseExecute, "safety", noop); !errors.Is(err, phase.ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition without flag run, got %v", err)
	}

	if _, err := runner.Run(ctx, catalog.PhaseScan, "safety", noop); err != nil {
		t.Fatal(err)
	}
	if _, err := runner.Run(ctx, catalog.PhaseFlag, "safety", noop); err != nil {
		t.Fatal(err)
	}

	entry := testsupport.SeedEntry(t, store, &catalog.Entry{
		Path: "/photos/pending.jpg", Root: "/photos", ContentHash: "h",
		Status: catalog.StatusDuplicatePending,
	})
	if _, err := runner.Run(ctx, catalog.PhaseExecute, "safety", noop); !errors.Is(err, phase.ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition with pending duplicates, got %v", err)
	}

	if err := store.SetStatus(ctx, entry.ID, catalog.StatusDuplicateVerified, catalog.EventVerifiedDuplicate); err != nil {
		t.Fatal(err)
	}
	if _, err := runner.Run(ctx, catalog.PhaseExecute, "safety", noop); err != nil {
		t.Fatalf("expected execute to proceed, got %v", err)
	}
}
