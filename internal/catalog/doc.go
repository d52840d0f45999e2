// Package catalog persists every scanned file and its dedup lifecycle status
// in a local SQLite database.
//
// The catalog is the single source of truth shared by the scan, flag, and
// execute phases. Rows are never deleted: removal is a status transition, so
// the catalog doubles as a complete audit trail. Three tables back it: files
// (one row per observed path), groups (one row per content hash with two or
// more members), and phase_runs (one row per phase invocation, carrying the
// counters the reporting surface exposes).
//
// All mutations commit per entry or in small batches so an interrupted run
// leaves the catalog consistent and resumable.
package catalog
