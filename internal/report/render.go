package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// WriteJSON emits the report as indented JSON.
func WriteJSON(w io.Writer, rpt *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rpt)
}

// WriteText renders the report as tables. styled selects the rounded table
// style; plain output is used when stdout is not a terminal.
func WriteText(w io.Writer, rpt *Report, styled bool) error {
	fmt.Fprintf(w, "Catalog: %s\n", rpt.CatalogPath)
	fmt.Fprintf(w, "Generated: %s\n\n", rpt.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintln(w, renderTotals(rpt, styled))
	if len(rpt.Groups) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, renderGroups(rpt, styled))
	}
	if len(rpt.Runs) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, renderRuns(rpt, styled))
	}
	return nil
}

func renderTotals(rpt *Report, styled bool) string {
	tw := newTable(styled)
	tw.AppendHeader(table.Row{"Metric", "Value"})
	tw.AppendRow(table.Row{"Entries", strconv.Itoa(rpt.Totals.Entries)})
	for _, status := range statusOrder {
		if count, ok := rpt.Totals.ByStatus[status]; ok {
			tw.AppendRow(table.Row{"  " + status, strconv.Itoa(count)})
		}
	}
	tw.AppendRow(table.Row{"Duplicate groups", strconv.Itoa(rpt.Totals.DuplicateGroups)})
	tw.AppendRow(table.Row{"Pending bytes", humanize.IBytes(uint64(rpt.Totals.PendingBytes))})
	tw.AppendRow(table.Row{"Verified bytes", humanize.IBytes(uint64(rpt.Totals.VerifiedBytes))})
	tw.AppendRow(table.Row{"Reclaimed bytes", humanize.IBytes(uint64(rpt.Totals.ReclaimedBytes))})
	alignRight(tw, 2)
	return tw.Render()
}

func renderGroups(rpt *Report, styled bool) string {
	tw := newTable(styled)
	tw.AppendHeader(table.Row{"Original", "Duplicate", "Status", "Size"})
	for _, group := range rpt.Groups {
		original := group.OriginalPath
		if original == "" {
			original = "(unresolved)"
		}
		for _, dup := range group.Duplicates {
			tw.AppendRow(table.Row{
				original,
				dup.Path,
				dup.Status,
				humanize.IBytes(uint64(dup.SizeBytes)),
			})
			original = ""
		}
	}
	alignRight(tw, 4)
	return tw.Render()
}

func renderRuns(rpt *Report, styled bool) string {
	tw := newTable(styled)
	tw.AppendHeader(table.Row{"Phase", "Mode", "Started", "Seen", "Hashed", "Flagged", "Moved", "Errors", "Reclaimed"})
	for _, run := range rpt.Runs {
		started := run.StartedAt.Format("2006-01-02 15:04")
		if run.CompletedAt == nil {
			started += " (incomplete)"
		}
		tw.AppendRow(table.Row{
			run.Phase,
			run.Mode,
			started,
			run.FilesSeen,
			run.FilesHashed,
			run.FilesFlagged,
			run.FilesMoved,
			run.FilesErrored,
			humanize.IBytes(uint64(run.BytesReclaimed)),
		})
	}
	return tw.Render()
}

// WriteMoveChecks renders the quarantine verification result.
func WriteMoveChecks(w io.Writer, checks []MoveCheck, styled bool) error {
	if len(checks) == 0 {
		fmt.Fprintln(w, "No quarantined files to verify.")
		return nil
	}

	tw := newTable(styled)
	tw.AppendHeader(table.Row{"Source", "Quarantine", "State"})
	bad := 0
	for _, check := range checks {
		state := "ok"
		if !check.OK() {
			bad++
			switch {
			case !check.QuarantineOK && !check.SourceGone:
				state = "quarantine copy missing; source still present"
			case !check.QuarantineOK:
				state = "quarantine copy missing"
			default:
				state = "source still present"
			}
		}
		tw.AppendRow(table.Row{check.Path, check.QuarantinePath, state})
	}
	fmt.Fprintln(w, tw.Render())
	fmt.Fprintf(w, "%d moves verified, %d problems\n", len(checks)-bad, bad)
	return nil
}

var statusOrder = []string{
	"scanned", "original", "duplicate_pending", "duplicate_verified", "removed", "error",
}

func newTable(styled bool) table.Writer {
	tw := table.NewWriter()
	if styled {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
		tw.Style().Options.DrawBorder = false
		tw.Style().Options.SeparateColumns = true
	}
	return tw
}

func alignRight(tw table.Writer, column int) {
	tw.SetColumnConfigs([]table.ColumnConfig{{
		Number:      column,
		Align:       text.AlignRight,
		AlignHeader: text.AlignLeft,
	}})
}
