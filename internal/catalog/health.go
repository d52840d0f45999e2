package catalog

import (
	"context"
	"fmt"
	"os"
)

// CheckHealth runs diagnostics against the catalog database. It never returns
// an error; failures are captured in the returned report.
func (s *Store) CheckHealth(ctx context.Context) DatabaseHealth {
	health := DatabaseHealth{DBPath: s.path}

	if _, err := os.Stat(s.path); err != nil {
		health.Error = fmt.Sprintf("database file missing: %v", err)
		return health
	}
	health.DatabaseExists = true

	if err := s.db.PingContext(ctx); err != nil {
		health.Error = fmt.Sprintf("database not readable: %v", err)
		return health
	}
	health.DatabaseReadable = true

	if version, err := s.SchemaVersion(ctx); err == nil {
		health.SchemaVersion = version
	} else {
		health.Error = fmt.Sprintf("schema version: %v", err)
		return health
	}

	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = fmt.Sprintf("integrity check: %v", err)
		return health
	}
	health.IntegrityCheck = integrity == "ok"
	if !health.IntegrityCheck {
		health.Error = fmt.Sprintf("integrity check failed: %s", integrity)
		return health
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files").Scan(&health.TotalEntries); err != nil {
		health.Error = fmt.Sprintf("count files: %v", err)
		return health
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM groups").Scan(&health.TotalGroups); err != nil {
		health.Error = fmt.Sprintf("count groups: %v", err)
		return health
	}

	return health
}

// Healthy reports whether the catalog passed all diagnostics.
func (h DatabaseHealth) Healthy() bool {
	return h.DatabaseExists && h.DatabaseReadable && h.IntegrityCheck && h.Error == ""
}
