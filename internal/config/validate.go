package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateScan(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.CatalogDir) == "" {
		return errors.New("paths.catalog_dir must be set")
	}
	if strings.TrimSpace(c.Paths.QuarantineDir) == "" {
		return errors.New("paths.quarantine_dir must be set")
	}
	return nil
}

func (c *Config) validateScan() error {
	if len(c.extensionSet) == 0 {
		return errors.New("scan.media_extensions must list at least one extension")
	}
	if c.Scan.Workers > 64 {
		return fmt.Errorf("scan.workers %d is unreasonable; NAS throughput saturates well below that", c.Scan.Workers)
	}
	if c.Scan.PrefixKiB > c.Scan.ChunkKiB*64 {
		return errors.New("scan.prefix_kib is larger than any sensible prefilter window")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
