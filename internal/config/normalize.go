package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScan()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CatalogDir) == "" {
		c.Paths.CatalogDir = defaultCatalogDir
	}
	if c.Paths.CatalogDir, err = expandPath(c.Paths.CatalogDir); err != nil {
		return fmt.Errorf("paths.catalog_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.QuarantineDir) == "" {
		c.Paths.QuarantineDir = defaultQuarantineDir
	}
	if c.Paths.QuarantineDir, err = expandPath(c.Paths.QuarantineDir); err != nil {
		return fmt.Errorf("paths.quarantine_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScan() {
	if len(c.Scan.MediaExtensions) == 0 {
		c.Scan.MediaExtensions = append([]string(nil), defaultMediaExtensions...)
	}
	c.extensionSet = make(map[string]struct{}, len(c.Scan.MediaExtensions))
	for i, ext := range c.Scan.MediaExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Scan.MediaExtensions[i] = ext
		if ext != "" {
			c.extensionSet[ext] = struct{}{}
		}
	}

	c.skipDirSet = make(map[string]struct{}, len(c.Scan.SkipDirs))
	for _, name := range c.Scan.SkipDirs {
		if name = strings.TrimSpace(name); name != "" {
			c.skipDirSet[name] = struct{}{}
		}
	}
	c.skipFileSet = make(map[string]struct{}, len(c.Scan.SkipFiles))
	for _, name := range c.Scan.SkipFiles {
		if name = strings.TrimSpace(name); name != "" {
			c.skipFileSet[name] = struct{}{}
		}
	}

	if c.Scan.Workers <= 0 {
		c.Scan.Workers = defaultWorkers
	}
	if c.Scan.ChunkKiB <= 0 {
		c.Scan.ChunkKiB = defaultChunkKiB
	}
	if c.Scan.PrefixKiB <= 0 {
		c.Scan.PrefixKiB = defaultPrefixKiB
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.LockStaleMinutes <= 0 {
		c.Workflow.LockStaleMinutes = defaultLockStaleMinutes
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
