package phase

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPrecondition marks an invocation rejected before any work started,
	// such as flagging without a completed scan.
	ErrPrecondition = errors.New("precondition not met")
	// ErrCatalogCorrupt marks catalog access or integrity failures.
	ErrCatalogCorrupt = errors.New("catalog error")
	// ErrLockHeld marks failure to acquire the catalog lock.
	ErrLockHeld = errors.New("lock held")
	// ErrQuarantineWrite marks failures writing to the quarantine area.
	ErrQuarantineWrite = errors.New("quarantine error")
	// ErrVerifyMismatch marks a flagged duplicate whose bytes no longer match
	// its original.
	ErrVerifyMismatch = errors.New("verification mismatch")
	// ErrUnreadable marks a source file that could not be read.
	ErrUnreadable = errors.New("unreadable file")
	// ErrPartial marks a phase that completed but recorded per-file errors.
	ErrPartial = errors.New("completed with errors")
)

// Wrap builds an error message that includes phase context while tagging it
// with the provided marker for later exit-code classification. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, phaseName, operation, message string, err error) error {
	detail := buildDetail(phaseName, operation, message)
	if marker == nil {
		marker = ErrCatalogCorrupt
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ExitCode maps an invocation error to the process exit code: 0 for success,
// 2 for a phase that finished but skipped individual files, 1 for anything
// that stopped work outright.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrPartial):
		return 2
	default:
		return 1
	}
}

func buildDetail(phaseName, operation, message string) string {
	parts := make([]string, 0, 3)
	if phaseName = strings.TrimSpace(phaseName); phaseName != "" {
		parts = append(parts, phaseName)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "phase failure"
	}
	return strings.Join(parts, ": ")
}
