// Package scanner implements the scan phase: traverse roots, fingerprint
// media files across a worker pool, and persist results to the catalog.
// Scans are resumable; files unchanged since the previous scan are not
// re-hashed. The scan phase never modifies files on disk.
package scanner
