package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CatalogDir    string `toml:"catalog_dir"`
	QuarantineDir string `toml:"quarantine_dir"`
	LogDir        string `toml:"log_dir"`
}

// Scan contains tuning for the walk and fingerprint stages.
type Scan struct {
	// MediaExtensions limits scanning to these file extensions (dot included).
	MediaExtensions []string `toml:"media_extensions"`
	// SkipDirs lists directory names excluded from traversal. Names starting
	// with '@' or '.' are always skipped regardless of this list.
	SkipDirs []string `toml:"skip_dirs"`
	// SkipFiles lists file names excluded from scanning.
	SkipFiles []string `toml:"skip_files"`
	// Workers bounds the fingerprint worker pool. Files are hashed in
	// parallel across workers, never in parallel within one file.
	Workers int `toml:"workers"`
	// ChunkKiB is the read buffer size used while hashing and comparing.
	ChunkKiB int `toml:"chunk_kib"`
	// PrefixKiB is the prefix length hashed in performance mode.
	PrefixKiB int `toml:"prefix_kib"`
}

// Workflow contains phase coordination settings.
type Workflow struct {
	// LockStaleMinutes is the age after which a held catalog lock may be
	// reclaimed by a new invocation.
	LockStaleMinutes int `toml:"lock_stale_minutes"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for culler.
//
// Configuration sections by subsystem:
//   - Paths: catalog database, quarantine root, and log directories
//   - Scan: media filters, NAS exclusions, and hashing parallelism
//   - Workflow: catalog lock handling between phase invocations
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Scan     Scan     `toml:"scan"`
	Workflow Workflow `toml:"workflow"`
	Logging  Logging  `toml:"logging"`

	extensionSet map[string]struct{}
	skipDirSet   map[string]struct{}
	skipFileSet  map[string]struct{}
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/culler/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a config file was found; defaults apply when it was not.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Finalize normalizes and validates a programmatically constructed config.
// Load applies it automatically; callers building a Config by hand must call
// it before use.
func (c *Config) Finalize() error {
	if err := c.normalize(); err != nil {
		return err
	}
	return c.Validate()
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("culler.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories culler writes to. The quarantine
// root is created on a best-effort basis so catalog-only commands still work
// when external storage is offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CatalogDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.QuarantineDir) != "" {
		_ = os.MkdirAll(c.Paths.QuarantineDir, 0o755)
	}
	return nil
}

// DatabasePath returns the catalog database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.CatalogDir, "catalog.db")
}

// LockPath returns the advisory lock file guarding phase invocations.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.CatalogDir, "catalog.lock")
}

// IsMediaFile reports whether the file name carries a configured media extension.
func (c *Config) IsMediaFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	_, ok := c.extensionSet[ext]
	return ok
}

// SkipDir reports whether a directory name is excluded from traversal.
func (c *Config) SkipDir(name string) bool {
	if strings.HasPrefix(name, "@") || strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := c.skipDirSet[name]
	return ok
}

// SkipFile reports whether a file name is excluded from scanning.
func (c *Config) SkipFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := c.skipFileSet[name]
	return ok
}

// ChunkBytes returns the hashing/comparison buffer size in bytes.
func (c *Config) ChunkBytes() int {
	return c.Scan.ChunkKiB * 1024
}

// PrefixBytes returns the performance-mode prefix length in bytes.
func (c *Config) PrefixBytes() int64 {
	return int64(c.Scan.PrefixKiB) * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
