package testsupport

import (
	"context"
	"testing"
	"time"

	"culler/internal/catalog"
	"culler/internal/config"
)

// MustOpenCatalog opens a catalog.Store for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// SeedEntry inserts a catalog entry for tests and returns it with its
// assigned id.
func SeedEntry(t testing.TB, store *catalog.Store, entry *catalog.Entry) *catalog.Entry {
	t.Helper()

	if entry.Status == "" {
		entry.Status = catalog.StatusScanned
	}
	if entry.FSModifiedAt.IsZero() {
		entry.FSModifiedAt = time.Now().UTC().Truncate(time.Second)
	}
	if err := store.UpsertEntry(context.Background(), entry); err != nil {
		t.Fatalf("seed entry %s: %v", entry.Path, err)
	}
	return entry
}
