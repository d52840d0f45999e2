package catalog

import (
	"strings"
	"time"
)

// Status represents the dedup lifecycle of a catalog entry.
type Status string

const (
	// StatusScanned is assigned by the scan phase; the entry has a fingerprint
	// but no grouping decision yet.
	StatusScanned Status = "scanned"
	// StatusOriginal marks the single canonical member of a group. Originals
	// are never eligible for flagging or removal.
	StatusOriginal Status = "original"
	// StatusDuplicatePending marks a group member awaiting binary verification.
	StatusDuplicatePending Status = "duplicate_pending"
	// StatusDuplicateVerified marks a byte-for-byte confirmed duplicate,
	// eligible for quarantine.
	StatusDuplicateVerified Status = "duplicate_verified"
	// StatusRemoved marks an entry whose file now lives in quarantine.
	StatusRemoved Status = "removed"
	// StatusError marks an entry excluded from processing until rescanned.
	StatusError Status = "error"
)

var allStatuses = []Status{
	StatusScanned,
	StatusOriginal,
	StatusDuplicatePending,
	StatusDuplicateVerified,
	StatusRemoved,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// liveStatuses are entries whose file is still expected at its catalog path.
var liveStatuses = []Status{
	StatusScanned,
	StatusOriginal,
	StatusDuplicatePending,
	StatusDuplicateVerified,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// LiveStatuses returns the statuses whose entries still occupy their
// original path on disk.
func LiveStatuses() []Status {
	cp := make([]Status, len(liveStatuses))
	copy(cp, liveStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Entry lifecycle events recorded in the last_event column.
const (
	EventScanned           = "scanned"
	EventRescanned         = "rescanned"
	EventMarkedOriginal    = "marked_original"
	EventFlaggedPending    = "flagged_pending"
	EventVerifiedDuplicate = "verified_duplicate"
	EventVerifyMismatch    = "verify_mismatch"
	EventQuarantined       = "quarantined"
	EventWalkError         = "walk_error"
	EventReadError         = "read_error"
	EventMoveError         = "move_error"
)

// Entry represents one observed file persisted in the catalog.
type Entry struct {
	ID             int64
	Path           string
	Root           string
	RelativePath   string
	SizeBytes      int64
	FSModifiedAt   time.Time
	CapturedAt     *time.Time
	ContentHash    string
	PrefixHash     string
	Status         Status
	GroupID        *int64
	QuarantinePath string
	ErrorMessage   string
	LastEvent      string
	DiscoveredAt   time.Time
	LastSeenAt     time.Time
	UpdatedAt      time.Time
}

// IsLive reports whether the entry's file is still expected at its path.
func (e Entry) IsLive() bool {
	switch e.Status {
	case StatusScanned, StatusOriginal, StatusDuplicatePending, StatusDuplicateVerified:
		return true
	default:
		return false
	}
}

// Group represents a set of entries sharing one content hash.
type Group struct {
	ID          int64
	ContentHash string
	OriginalID  *int64
	MemberCount int
	ResolvedAt  *time.Time
}

// Resolved reports whether original selection has completed for the group.
func (g Group) Resolved() bool {
	return g.ResolvedAt != nil
}

// Phase names recorded in the phase_runs audit table.
const (
	PhaseScan    = "scan"
	PhaseFlag    = "flag"
	PhaseExecute = "execute"
)

// PhaseRun is one phase invocation and its summary counters.
type PhaseRun struct {
	ID             int64
	RunID          string
	Phase          string
	Mode           string
	StartedAt      time.Time
	CompletedAt    *time.Time
	FilesSeen      int64
	FilesHashed    int64
	FilesSkipped   int64
	FilesFlagged   int64
	FilesMoved     int64
	FilesErrored   int64
	BytesReclaimed int64
}

// Completed reports whether the run persisted its final counters.
func (r PhaseRun) Completed() bool {
	return r.CompletedAt != nil
}

// DatabaseHealth captures diagnostic information about the catalog database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	IntegrityCheck   bool
	TotalEntries     int
	TotalGroups      int
	Error            string
}
