package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"culler/internal/catalog"
	"culler/internal/executor"
	"culler/internal/fingerprint"
	"culler/internal/flagger"
	"culler/internal/phase"
	"culler/internal/report"
	"culler/internal/resolver"
	"culler/internal/scanner"
)

// runPhases executes the requested phases in their fixed order: scan, flag,
// execute, report. The catalog lock spans every phase of the invocation. A
// partial phase does not block the following ones; its files are simply
// excluded and the invocation exits with the partial code.
func runPhases(cmd *cobra.Command, cmdCtx *commandContext, opts *phaseOptions) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	logger := cmdCtx.ensureLogger()

	store, err := cmdCtx.openCatalog()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.anyPhase() {
		staleAge := time.Duration(cfg.Workflow.LockStaleMinutes) * time.Minute
		lock := catalog.NewLock(cfg.LockPath(), staleAge, logger)
		if err := lock.Acquire(); err != nil {
			if errors.Is(err, catalog.ErrLocked) {
				return phase.Wrap(phase.ErrLockHeld, "", "lock", "another culler invocation is running", err)
			}
			return phase.Wrap(phase.ErrLockHeld, "", "lock", "", err)
		}
		defer lock.Release()
	}

	mode := fingerprint.ModeSafety
	if opts.performanceMode {
		mode = fingerprint.ModePerformance
	}

	runner := phase.NewRunner(store, logger)
	var partial error

	if len(opts.scanRoots) > 0 {
		s := scanner.New(cfg, store, mode, !opts.noRecursive, logger)
		_, err := runner.Run(ctx, catalog.PhaseScan, string(mode), func(ctx context.Context, run *catalog.PhaseRun) error {
			return s.Run(ctx, opts.scanRoots, run)
		})
		if err != nil {
			if !errors.Is(err, phase.ErrPartial) {
				return err
			}
			partial = err
		}
	}

	if opts.flagDeletions {
		r := resolver.New(store, logger)
		f := flagger.New(cfg, store, logger)
		_, err := runner.Run(ctx, catalog.PhaseFlag, string(mode), func(ctx context.Context, run *catalog.PhaseRun) error {
			if err := r.Run(ctx, run); err != nil {
				return err
			}
			return f.Run(ctx, run)
		})
		if err != nil {
			if !errors.Is(err, phase.ErrPartial) {
				return err
			}
			partial = err
		}
	}

	if opts.executeDeletions {
		e := executor.New(cfg, store, logger)
		_, err := runner.Run(ctx, catalog.PhaseExecute, string(mode), func(ctx context.Context, run *catalog.PhaseRun) error {
			return e.Run(ctx, run)
		})
		if err != nil {
			if !errors.Is(err, phase.ErrPartial) {
				return err
			}
			partial = err
		}
	}

	if opts.reportPath != "" || opts.jsonPath != "" {
		rpt, err := report.Build(ctx, store, 10)
		if err != nil {
			return phase.Wrap(phase.ErrCatalogCorrupt, "", "report", "", err)
		}
		if opts.jsonPath != "" {
			if err := emitReport(cmd, opts.jsonPath, func(w io.Writer) error {
				return report.WriteJSON(w, rpt)
			}); err != nil {
				return err
			}
		}
		if opts.reportPath != "" {
			styled := opts.reportPath == "-" && stdoutIsTerminal()
			if err := emitReport(cmd, opts.reportPath, func(w io.Writer) error {
				return report.WriteText(w, rpt, styled)
			}); err != nil {
				return err
			}
		}
	}

	return partial
}

// emitReport writes a report to the given destination; "-" means stdout.
func emitReport(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
