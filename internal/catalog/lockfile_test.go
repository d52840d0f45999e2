package catalog_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"culler/internal/catalog"
)

func TestLockExcludesSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.lock")

	first := catalog.NewLock(path, time.Hour, nil)
	if err := first.Acquire(); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer first.Release()

	second := catalog.NewLock(path, time.Hour, nil)
	err := second.Acquire()
	if !errors.Is(err, catalog.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestLockReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.lock")

	lock := catalog.NewLock(path, time.Hour, nil)
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	lock.Release()

	if err := lock.Acquire(); err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	lock.Release()
}

func TestLockReleaseWithoutAcquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.lock")
	lock := catalog.NewLock(path, 0, nil)
	lock.Release()
}

func TestLockAcquireRefreshesHeartbeat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.lock")

	lock := catalog.NewLock(path, time.Hour, nil)
	if err := lock.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer lock.Release()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat lock file: %v", err)
	}
	if time.Since(info.ModTime()) > time.Minute {
		t.Fatalf("expected fresh lock mtime, got %v", info.ModTime())
	}
}
