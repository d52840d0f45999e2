package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EnsureGroup creates or refreshes the duplicate group for a content hash and
// returns its id.
func (s *Store) EnsureGroup(ctx context.Context, contentHash string, memberCount int) (int64, error) {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO groups (content_hash, member_count)
		VALUES (?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET member_count = excluded.member_count`,
		contentHash, memberCount); err != nil {
		return 0, fmt.Errorf("ensure group for hash %s: %w", contentHash, err)
	}

	var id int64
	row := s.db.QueryRowContext(ctx, "SELECT id FROM groups WHERE content_hash = ?", contentHash)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup group for hash %s: %w", contentHash, err)
	}
	return id, nil
}

// ResolveGroup records the selected original and marks the group resolved.
func (s *Store) ResolveGroup(ctx context.Context, groupID, originalID int64) error {
	now := formatTime(time.Now().UTC())
	if _, err := s.db.ExecContext(ctx,
		"UPDATE groups SET original_id = ?, resolved_at = ? WHERE id = ?",
		originalID, now, groupID); err != nil {
		return fmt.Errorf("resolve group %d: %w", groupID, err)
	}
	return nil
}

// InvalidateGroup clears a group's resolution, forcing re-selection on the
// next flag pass. Used after a verification mismatch.
func (s *Store) InvalidateGroup(ctx context.Context, groupID int64) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE groups SET resolved_at = NULL WHERE id = ?", groupID); err != nil {
		return fmt.Errorf("invalidate group %d: %w", groupID, err)
	}
	return nil
}

// GroupByID retrieves a group by id, or nil when absent.
func (s *Store) GroupByID(ctx context.Context, id int64) (*Group, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, content_hash, original_id, member_count, resolved_at FROM groups WHERE id = ?", id)
	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group %d: %w", id, err)
	}
	return group, nil
}

// GroupByHash retrieves a group by content hash, or nil when absent.
func (s *Store) GroupByHash(ctx context.Context, contentHash string) (*Group, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, content_hash, original_id, member_count, resolved_at FROM groups WHERE content_hash = ?", contentHash)
	group, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get group for hash %s: %w", contentHash, err)
	}
	return group, nil
}

// Groups returns all duplicate groups ordered by content hash.
func (s *Store) Groups(ctx context.Context) ([]*Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, content_hash, original_id, member_count, resolved_at FROM groups ORDER BY content_hash")
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []*Group
	for rows.Next() {
		group, scanErr := scanGroup(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan group: %w", scanErr)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// GroupMembers returns all entries attached to a group ordered by path.
func (s *Store) GroupMembers(ctx context.Context, groupID int64) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM files WHERE group_id = ? ORDER BY path", groupID)
	if err != nil {
		return nil, fmt.Errorf("query members of group %d: %w", groupID, err)
	}
	defer func() { _ = rows.Close() }()
	return collectEntries(rows)
}

func scanGroup(scanner interface{ Scan(dest ...any) error }) (*Group, error) {
	var (
		id          int64
		contentHash string
		originalID  sql.NullInt64
		memberCount int
		resolvedRaw sql.NullString
	)
	if err := scanner.Scan(&id, &contentHash, &originalID, &memberCount, &resolvedRaw); err != nil {
		return nil, err
	}
	group := &Group{ID: id, ContentHash: contentHash, MemberCount: memberCount}
	if originalID.Valid {
		oid := originalID.Int64
		group.OriginalID = &oid
	}
	if resolvedRaw.Valid {
		if resolved, err := parseTimeString(resolvedRaw.String); err == nil {
			group.ResolvedAt = &resolved
		}
	}
	return group, nil
}
