package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertEntry inserts a new file entry or refreshes an existing one keyed by
// path. discovered_at survives rescans; last_seen_at always advances.
func (s *Store) UpsertEntry(ctx context.Context, entry *Entry) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO files (
			path, root, relative_path, size_bytes, fs_modified_at, captured_at,
			content_hash, prefix_hash, status, group_id, quarantine_path,
			error_message, last_event, discovered_at, last_seen_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			root = excluded.root,
			relative_path = excluded.relative_path,
			size_bytes = excluded.size_bytes,
			fs_modified_at = excluded.fs_modified_at,
			captured_at = excluded.captured_at,
			content_hash = excluded.content_hash,
			prefix_hash = excluded.prefix_hash,
			status = excluded.status,
			group_id = excluded.group_id,
			quarantine_path = excluded.quarantine_path,
			error_message = excluded.error_message,
			last_event = excluded.last_event,
			last_seen_at = excluded.last_seen_at,
			updated_at = excluded.updated_at`,
		entry.Path,
		entry.Root,
		entry.RelativePath,
		entry.SizeBytes,
		formatTime(entry.FSModifiedAt),
		nullableTime(entry.CapturedAt),
		nullableString(entry.ContentHash),
		nullableString(entry.PrefixHash),
		string(entry.Status),
		nullableInt64(entry.GroupID),
		nullableString(entry.QuarantinePath),
		nullableString(entry.ErrorMessage),
		nullableString(entry.LastEvent),
		formatTime(now),
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("upsert entry %s: %w", entry.Path, err)
	}

	if entry.ID == 0 {
		if id, idErr := result.LastInsertId(); idErr == nil && id > 0 {
			entry.ID = id
		}
		row := s.db.QueryRowContext(ctx, "SELECT id, discovered_at FROM files WHERE path = ?", entry.Path)
		var discoveredRaw string
		if scanErr := row.Scan(&entry.ID, &discoveredRaw); scanErr == nil {
			if discovered, parseErr := parseTimeString(discoveredRaw); parseErr == nil {
				entry.DiscoveredAt = discovered
			}
		}
	}
	entry.LastSeenAt = now
	entry.UpdatedAt = now
	return nil
}

// TouchLastSeen marks an unchanged entry as present during the current scan.
func (s *Store) TouchLastSeen(ctx context.Context, id int64) error {
	now := formatTime(time.Now().UTC())
	if _, err := s.db.ExecContext(ctx, "UPDATE files SET last_seen_at = ? WHERE id = ?", now, id); err != nil {
		return fmt.Errorf("touch entry %d: %w", id, err)
	}
	return nil
}

// GetByPath retrieves an entry by its absolute path, or nil when absent.
func (s *Store) GetByPath(ctx context.Context, path string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM files WHERE path = ?", path)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry by path %s: %w", path, err)
	}
	return entry, nil
}

// GetByID retrieves an entry by its row id, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM files WHERE id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %d: %w", id, err)
	}
	return entry, nil
}

// EntriesByStatus returns entries matching any of the given statuses, ordered
// by path for deterministic processing.
func (s *Store) EntriesByStatus(ctx context.Context, statuses ...Status) ([]*Entry, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}
	query := fmt.Sprintf(
		"SELECT %s FROM files WHERE status IN (%s) ORDER BY path",
		entryColumns, makePlaceholders(len(statuses)))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries by status: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectEntries(rows)
}

// LiveEntriesByHash returns live entries sharing one content hash.
func (s *Store) LiveEntriesByHash(ctx context.Context, hash string) ([]*Entry, error) {
	args := []any{hash}
	for _, status := range liveStatuses {
		args = append(args, string(status))
	}
	query := fmt.Sprintf(
		"SELECT %s FROM files WHERE content_hash = ? AND status IN (%s) ORDER BY path",
		entryColumns, makePlaceholders(len(liveStatuses)))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries by hash: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectEntries(rows)
}

// DuplicateHashes returns content hashes held by more than one live entry,
// ordered by hash.
func (s *Store) DuplicateHashes(ctx context.Context) ([]string, error) {
	args := make([]any, 0, len(liveStatuses))
	for _, status := range liveStatuses {
		args = append(args, string(status))
	}
	query := fmt.Sprintf(`
		SELECT content_hash FROM files
		WHERE content_hash IS NOT NULL AND status IN (%s)
		GROUP BY content_hash HAVING COUNT(*) > 1
		ORDER BY content_hash`, makePlaceholders(len(liveStatuses)))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query duplicate hashes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hashes []string
	for rows.Next() {
		var hash string
		if scanErr := rows.Scan(&hash); scanErr != nil {
			return nil, fmt.Errorf("scan duplicate hash: %w", scanErr)
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}

// PrefixCollisions returns live entries whose size and prefix hash collide
// with at least one other live entry but which lack a full content hash.
// These are the candidates a performance-mode scan must fully hash.
func (s *Store) PrefixCollisions(ctx context.Context) ([]*Entry, error) {
	args := make([]any, 0, len(liveStatuses)*2)
	for _, status := range liveStatuses {
		args = append(args, string(status))
	}
	for _, status := range liveStatuses {
		args = append(args, string(status))
	}
	live := makePlaceholders(len(liveStatuses))
	query := fmt.Sprintf(`
		SELECT %s FROM files
		WHERE content_hash IS NULL AND prefix_hash IS NOT NULL AND status IN (%s)
		  AND (size_bytes, prefix_hash) IN (
			SELECT size_bytes, prefix_hash FROM files
			WHERE prefix_hash IS NOT NULL AND status IN (%s)
			GROUP BY size_bytes, prefix_hash HAVING COUNT(*) > 1
		  )
		ORDER BY path`, entryColumns, live, live)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query prefix collisions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectEntries(rows)
}

// SetContentHash records the full content hash computed for an entry.
func (s *Store) SetContentHash(ctx context.Context, id int64, hash string) error {
	now := formatTime(time.Now().UTC())
	if _, err := s.db.ExecContext(ctx,
		"UPDATE files SET content_hash = ?, updated_at = ? WHERE id = ?",
		hash, now, id); err != nil {
		return fmt.Errorf("set content hash for entry %d: %w", id, err)
	}
	return nil
}

// SetStatus transitions an entry and records the event that caused it.
func (s *Store) SetStatus(ctx context.Context, id int64, status Status, event string) error {
	now := formatTime(time.Now().UTC())
	if _, err := s.db.ExecContext(ctx,
		"UPDATE files SET status = ?, last_event = ?, updated_at = ? WHERE id = ?",
		string(status), event, now, id); err != nil {
		return fmt.Errorf("set status for entry %d: %w", id, err)
	}
	return nil
}

// SetError transitions an entry into the error state with a diagnostic
// message; errored entries are excluded from processing until rescanned.
func (s *Store) SetError(ctx context.Context, id int64, event, message string) error {
	now := formatTime(time.Now().UTC())
	if _, err := s.db.ExecContext(ctx, `
		UPDATE files SET status = ?, error_message = ?, last_event = ?, updated_at = ?
		WHERE id = ?`,
		string(StatusError), message, event, now, id); err != nil {
		return fmt.Errorf("set error for entry %d: %w", id, err)
	}
	return nil
}

// AssignGroup attaches an entry to a duplicate group with its role.
func (s *Store) AssignGroup(ctx context.Context, id, groupID int64, status Status, event string) error {
	now := formatTime(time.Now().UTC())
	if _, err := s.db.ExecContext(ctx, `
		UPDATE files SET group_id = ?, status = ?, last_event = ?, error_message = NULL, updated_at = ?
		WHERE id = ?`,
		groupID, string(status), event, now, id); err != nil {
		return fmt.Errorf("assign group for entry %d: %w", id, err)
	}
	return nil
}

// ClearGroup detaches an entry from its duplicate group and resets it to
// scanned, typically after its content changed on disk.
func (s *Store) ClearGroup(ctx context.Context, id int64, event string) error {
	now := formatTime(time.Now().UTC())
	if _, err := s.db.ExecContext(ctx, `
		UPDATE files SET group_id = NULL, status = ?, last_event = ?, updated_at = ?
		WHERE id = ?`,
		string(StatusScanned), event, now, id); err != nil {
		return fmt.Errorf("clear group for entry %d: %w", id, err)
	}
	return nil
}

// MarkQuarantined records a completed quarantine move for an entry.
func (s *Store) MarkQuarantined(ctx context.Context, id int64, quarantinePath string) error {
	now := formatTime(time.Now().UTC())
	if _, err := s.db.ExecContext(ctx, `
		UPDATE files SET status = ?, quarantine_path = ?, last_event = ?, updated_at = ?
		WHERE id = ?`,
		string(StatusRemoved), quarantinePath, EventQuarantined, now, id); err != nil {
		return fmt.Errorf("mark entry %d quarantined: %w", id, err)
	}
	return nil
}

// RecordWalkError persists a placeholder entry for a path that could not be
// read during traversal so the failure is visible in reports.
func (s *Store) RecordWalkError(ctx context.Context, path, root, message string) error {
	now := formatTime(time.Now().UTC())
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO files (path, root, status, error_message, last_event, discovered_at, last_seen_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			last_event = excluded.last_event,
			last_seen_at = excluded.last_seen_at,
			updated_at = excluded.updated_at`,
		path, root, string(StatusError), message, EventWalkError, now, now, now); err != nil {
		return fmt.Errorf("record walk error for %s: %w", path, err)
	}
	return nil
}

// MarkSingletonsOriginal promotes every scanned entry without a duplicate
// group to original. Called after group assignment, when any scanned entry
// still ungrouped is proven unique. Returns the number of rows promoted.
func (s *Store) MarkSingletonsOriginal(ctx context.Context) (int64, error) {
	now := formatTime(time.Now().UTC())
	result, err := s.db.ExecContext(ctx, `
		UPDATE files SET status = ?, last_event = ?, updated_at = ?
		WHERE status = ? AND group_id IS NULL`,
		string(StatusOriginal), EventMarkedOriginal, now, string(StatusScanned))
	if err != nil {
		return 0, fmt.Errorf("mark singletons original: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark singletons original: %w", err)
	}
	return count, nil
}

// CountByStatus returns entry counts keyed by status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM files GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count entries by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[Status]int)
	for rows.Next() {
		var statusStr string
		var count int
		if scanErr := rows.Scan(&statusStr, &count); scanErr != nil {
			return nil, fmt.Errorf("scan status count: %w", scanErr)
		}
		counts[Status(statusStr)] = count
	}
	return counts, rows.Err()
}

// SumSizeByStatus returns the total size in bytes of entries in a status.
func (s *Store) SumSizeByStatus(ctx context.Context, status Status) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(size_bytes), 0) FROM files WHERE status = ?",
		string(status)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum sizes for status %s: %w", status, err)
	}
	return total, nil
}

func collectEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
