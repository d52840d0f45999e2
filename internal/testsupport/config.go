// Package testsupport provides helpers shared by package tests: temp-backed
// configurations, catalog stores with registered cleanup, and fixture files.
package testsupport

import (
	"path/filepath"
	"testing"

	"culler/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CatalogDir = filepath.Join(base, "catalog")
	cfg.Paths.QuarantineDir = filepath.Join(base, "quarantine")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Scan.Workers = 2

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Finalize(); err != nil {
		t.Fatalf("finalize test config: %v", err)
	}
	return &cfg
}

// WithWorkers overrides the fingerprint worker count on the test config.
func WithWorkers(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scan.Workers = workers
	}
}

// WithPrefixKiB overrides the performance-mode prefix length.
func WithPrefixKiB(kib int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Scan.PrefixKiB = kib
	}
}
