// Package report assembles catalog summaries for humans and machines: the
// duplicate-group report behind --report/--json and the quarantine
// verification behind status --verify-moves.
package report

import (
	"context"
	"fmt"
	"os"
	"time"

	"culler/internal/catalog"
)

// Report is a point-in-time summary of the catalog.
type Report struct {
	GeneratedAt time.Time     `json:"generated_at"`
	CatalogPath string        `json:"catalog_path"`
	Totals      Totals        `json:"totals"`
	Groups      []GroupReport `json:"duplicate_groups"`
	Runs        []RunReport   `json:"recent_runs"`
}

// Totals aggregates entry counts and byte sums across the catalog.
type Totals struct {
	Entries         int            `json:"entries"`
	ByStatus        map[string]int `json:"by_status"`
	DuplicateGroups int            `json:"duplicate_groups"`
	PendingBytes    int64          `json:"pending_bytes"`
	VerifiedBytes   int64          `json:"verified_bytes"`
	ReclaimedBytes  int64          `json:"reclaimed_bytes"`
}

// GroupReport is one duplicate group with its original and members.
type GroupReport struct {
	ContentHash  string         `json:"content_hash"`
	OriginalPath string         `json:"original_path"`
	Resolved     bool           `json:"resolved"`
	MemberCount  int            `json:"member_count"`
	Duplicates   []MemberReport `json:"duplicates"`
}

// MemberReport is one non-original member of a duplicate group.
type MemberReport struct {
	Path           string `json:"path"`
	Status         string `json:"status"`
	SizeBytes      int64  `json:"size_bytes"`
	QuarantinePath string `json:"quarantine_path,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

// RunReport is one phase invocation from the audit table.
type RunReport struct {
	RunID          string     `json:"run_id"`
	Phase          string     `json:"phase"`
	Mode           string     `json:"mode"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	FilesSeen      int64      `json:"files_seen"`
	FilesHashed    int64      `json:"files_hashed"`
	FilesSkipped   int64      `json:"files_skipped"`
	FilesFlagged   int64      `json:"files_flagged"`
	FilesMoved     int64      `json:"files_moved"`
	FilesErrored   int64      `json:"files_errored"`
	BytesReclaimed int64      `json:"bytes_reclaimed"`
}

// Build queries the catalog and assembles a Report.
func Build(ctx context.Context, store *catalog.Store, recentRuns int) (*Report, error) {
	rpt := &Report{
		GeneratedAt: time.Now().UTC(),
		CatalogPath: store.Path(),
	}

	counts, err := store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	rpt.Totals.ByStatus = make(map[string]int, len(counts))
	for status, count := range counts {
		rpt.Totals.ByStatus[string(status)] = count
		rpt.Totals.Entries += count
	}

	for status, dest := range map[catalog.Status]*int64{
		catalog.StatusDuplicatePending:  &rpt.Totals.PendingBytes,
		catalog.StatusDuplicateVerified: &rpt.Totals.VerifiedBytes,
		catalog.StatusRemoved:           &rpt.Totals.ReclaimedBytes,
	} {
		total, err := store.SumSizeByStatus(ctx, status)
		if err != nil {
			return nil, fmt.Errorf("build report: %w", err)
		}
		*dest = total
	}

	groups, err := store.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	rpt.Totals.DuplicateGroups = len(groups)
	for _, group := range groups {
		gr := GroupReport{
			ContentHash: group.ContentHash,
			Resolved:    group.Resolved(),
			MemberCount: group.MemberCount,
		}
		members, err := store.GroupMembers(ctx, group.ID)
		if err != nil {
			return nil, fmt.Errorf("build report: %w", err)
		}
		for _, member := range members {
			if group.OriginalID != nil && member.ID == *group.OriginalID {
				gr.OriginalPath = member.Path
				continue
			}
			gr.Duplicates = append(gr.Duplicates, MemberReport{
				Path:           member.Path,
				Status:         string(member.Status),
				SizeBytes:      member.SizeBytes,
				QuarantinePath: member.QuarantinePath,
				ErrorMessage:   member.ErrorMessage,
			})
		}
		rpt.Groups = append(rpt.Groups, gr)
	}

	runs, err := store.RecentRuns(ctx, recentRuns)
	if err != nil {
		return nil, fmt.Errorf("build report: %w", err)
	}
	for _, run := range runs {
		rpt.Runs = append(rpt.Runs, RunReport{
			RunID:          run.RunID,
			Phase:          run.Phase,
			Mode:           run.Mode,
			StartedAt:      run.StartedAt,
			CompletedAt:    run.CompletedAt,
			FilesSeen:      run.FilesSeen,
			FilesHashed:    run.FilesHashed,
			FilesSkipped:   run.FilesSkipped,
			FilesFlagged:   run.FilesFlagged,
			FilesMoved:     run.FilesMoved,
			FilesErrored:   run.FilesErrored,
			BytesReclaimed: run.BytesReclaimed,
		})
	}

	return rpt, nil
}

// MoveCheck is the outcome of verifying one removed entry's quarantine move.
type MoveCheck struct {
	Path           string `json:"path"`
	QuarantinePath string `json:"quarantine_path"`
	QuarantineOK   bool   `json:"quarantine_ok"`
	SourceGone     bool   `json:"source_gone"`
}

// OK reports whether the move left the filesystem in the expected state.
func (m MoveCheck) OK() bool {
	return m.QuarantineOK && m.SourceGone
}

// VerifyMoves confirms every removed entry's quarantine copy exists and its
// source path is gone.
func VerifyMoves(ctx context.Context, store *catalog.Store) ([]MoveCheck, error) {
	removed, err := store.EntriesByStatus(ctx, catalog.StatusRemoved)
	if err != nil {
		return nil, fmt.Errorf("verify moves: %w", err)
	}

	checks := make([]MoveCheck, 0, len(removed))
	for _, entry := range removed {
		check := MoveCheck{Path: entry.Path, QuarantinePath: entry.QuarantinePath}
		if entry.QuarantinePath != "" {
			if _, statErr := os.Stat(entry.QuarantinePath); statErr == nil {
				check.QuarantineOK = true
			}
		}
		if _, statErr := os.Stat(entry.Path); os.IsNotExist(statErr) {
			check.SourceGone = true
		}
		checks = append(checks, check)
	}
	return checks, nil
}
