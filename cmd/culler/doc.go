// Package main hosts the culler CLI entrypoint and command graph.
//
// The Cobra-based root command drives the three-phase workflow: scan roots
// into the catalog, flag verified duplicates, and execute quarantine moves.
// Subcommands cover catalog inspection and configuration scaffolding. It
// centralizes configuration resolution, logging setup, and catalog locking so
// the phase packages can focus on their semantics.
package main
