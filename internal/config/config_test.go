package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"culler/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantCatalog := filepath.Join(tempHome, ".local", "share", "culler")
	if cfg.Paths.CatalogDir != wantCatalog {
		t.Fatalf("unexpected catalog dir: got %q want %q", cfg.Paths.CatalogDir, wantCatalog)
	}
	if cfg.DatabasePath() != filepath.Join(wantCatalog, "catalog.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.LockPath() != filepath.Join(wantCatalog, "catalog.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
	if cfg.Scan.Workers != 4 {
		t.Fatalf("unexpected default workers: %d", cfg.Scan.Workers)
	}
	if cfg.ChunkBytes() != 512*1024 {
		t.Fatalf("unexpected chunk bytes: %d", cfg.ChunkBytes())
	}
	if cfg.PrefixBytes() != 64*1024 {
		t.Fatalf("unexpected prefix bytes: %d", cfg.PrefixBytes())
	}
}

func TestLoadParsesFileAndNormalizesExtensions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
catalog_dir = "` + filepath.Join(dir, "cat") + `"
quarantine_dir = "` + filepath.Join(dir, "quarantine") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[scan]
media_extensions = ["JPG", ".Png"]
workers = 2
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if !cfg.IsMediaFile("photo.JPG") {
		t.Fatal("expected extension matching to be case-insensitive")
	}
	if !cfg.IsMediaFile("shot.png") {
		t.Fatal("expected bare extensions to gain a leading dot")
	}
	if cfg.IsMediaFile("movie.mp4") {
		t.Fatal("expected configured extensions to replace defaults")
	}
	if cfg.Scan.Workers != 2 {
		t.Fatalf("unexpected workers: %d", cfg.Scan.Workers)
	}
}

func TestSkipRules(t *testing.T) {
	cfg := config.Default()
	tmp := t.TempDir()
	cfg.Paths.CatalogDir = tmp
	cfg.Paths.QuarantineDir = filepath.Join(tmp, "q")
	cfg.Paths.LogDir = filepath.Join(tmp, "logs")
	loaded, _, _, err := config.Load(writeConfig(t, &cfg))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	for _, name := range []string{"@eaDir", "@Recycle", ".thumbnails", "#recycle", "ToBeDeleted"} {
		if !loaded.SkipDir(name) {
			t.Errorf("expected directory %q to be skipped", name)
		}
	}
	if loaded.SkipDir("2010 - Photos") {
		t.Error("regular directory should not be skipped")
	}
	for _, name := range []string{"Thumbs.db", ".DS_Store", "desktop.ini", ".hidden.jpg"} {
		if !loaded.SkipFile(name) {
			t.Errorf("expected file %q to be skipped", name)
		}
	}
	if loaded.SkipFile("IMG_0001.jpg") {
		t.Error("regular file should not be skipped")
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if _, _, _, err := config.Load(writeConfig(t, &cfg)); err == nil {
		t.Fatal("expected error for unsupported log format")
	}
}

func writeConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[paths]
catalog_dir = "` + cfg.Paths.CatalogDir + `"
quarantine_dir = "` + cfg.Paths.QuarantineDir + `"
log_dir = "` + cfg.Paths.LogDir + `"

[logging]
format = "` + cfg.Logging.Format + `"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
