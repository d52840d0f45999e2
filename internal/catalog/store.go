package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"culler/internal/config"
)

// ErrCorrupt indicates a schema or integrity violation in the catalog
// database. Callers must fail fast rather than operate on partial data.
var ErrCorrupt = errors.New("catalog corruption")

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath connects to the catalog database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the catalog database location.
func (s *Store) Path() string {
	return s.path
}

const entryColumns = "id, path, root, relative_path, size_bytes, fs_modified_at, captured_at, content_hash, prefix_hash, status, group_id, quarantine_path, error_message, last_event, discovered_at, last_seen_at, updated_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id             int64
		path           string
		root           sql.NullString
		relativePath   sql.NullString
		sizeBytes      sql.NullInt64
		fsModifiedRaw  sql.NullString
		capturedRaw    sql.NullString
		contentHash    sql.NullString
		prefixHash     sql.NullString
		statusStr      string
		groupID        sql.NullInt64
		quarantinePath sql.NullString
		errorMessage   sql.NullString
		lastEvent      sql.NullString
		discoveredRaw  sql.NullString
		lastSeenRaw    sql.NullString
		updatedRaw     sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&path,
		&root,
		&relativePath,
		&sizeBytes,
		&fsModifiedRaw,
		&capturedRaw,
		&contentHash,
		&prefixHash,
		&statusStr,
		&groupID,
		&quarantinePath,
		&errorMessage,
		&lastEvent,
		&discoveredRaw,
		&lastSeenRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:             id,
		Path:           path,
		Root:           root.String,
		RelativePath:   relativePath.String,
		SizeBytes:      sizeBytes.Int64,
		ContentHash:    contentHash.String,
		PrefixHash:     prefixHash.String,
		Status:         Status(statusStr),
		QuarantinePath: quarantinePath.String,
		ErrorMessage:   errorMessage.String,
		LastEvent:      lastEvent.String,
	}
	if groupID.Valid {
		gid := groupID.Int64
		entry.GroupID = &gid
	}
	if modified, err := parseTimeString(fsModifiedRaw.String); err == nil {
		entry.FSModifiedAt = modified
	}
	if capturedRaw.Valid {
		if captured, err := parseTimeString(capturedRaw.String); err == nil {
			entry.CapturedAt = &captured
		}
	}
	if discovered, err := parseTimeString(discoveredRaw.String); err == nil {
		entry.DiscoveredAt = discovered
	}
	if seen, err := parseTimeString(lastSeenRaw.String); err == nil {
		entry.LastSeenAt = seen
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		entry.UpdatedAt = updated
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func nullableInt64(value *int64) any {
	if value == nil {
		return nil
	}
	return *value
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
