package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"culler/internal/catalog"
	"culler/internal/report"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var verifyMoves bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Inspect catalog health, counts, and recent phase runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cmdCtx := cmd.Context()

			if verifyMoves {
				checks, err := report.VerifyMoves(cmdCtx, store)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, checks)
				}
				return report.WriteMoveChecks(cmd.OutOrStdout(), checks, stdoutIsTerminal())
			}

			health := store.CheckHealth(cmdCtx)
			rpt, err := report.Build(cmdCtx, store, 5)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, struct {
					Health catalog.DatabaseHealth `json:"health"`
					Report *report.Report         `json:"report"`
					Lock   lockState              `json:"lock"`
				}{health, rpt, ctx.lockState()})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Catalog: %s\n", health.DBPath)
			if health.Healthy() {
				fmt.Fprintf(out, "Health: ok (schema %s, %d entries, %d groups)\n",
					health.SchemaVersion, health.TotalEntries, health.TotalGroups)
			} else {
				fmt.Fprintf(out, "Health: DEGRADED: %s\n", health.Error)
			}

			lock := ctx.lockState()
			if lock.Held {
				fmt.Fprintf(out, "Lock: held (age %s)\n", lock.Age)
			} else {
				fmt.Fprintln(out, "Lock: free")
			}
			fmt.Fprintln(out)

			return report.WriteText(out, rpt, stdoutIsTerminal())
		},
	}

	cmd.Flags().BoolVar(&verifyMoves, "verify-moves", false, "Verify every quarantined file exists and its source is gone")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit status as JSON")
	return cmd
}

type lockState struct {
	Held bool   `json:"held"`
	Age  string `json:"age,omitempty"`
}

// lockState inspects the lock file without acquiring it. A present lock file
// means a phase invocation is (or recently was) running.
func (c *commandContext) lockState() lockState {
	cfg, err := c.ensureConfig()
	if err != nil {
		return lockState{}
	}
	info, err := os.Stat(cfg.LockPath())
	if err != nil {
		return lockState{}
	}
	age := time.Since(info.ModTime()).Truncate(time.Second)
	return lockState{Held: true, Age: humanizeAge(age)}
}

func humanizeAge(age time.Duration) string {
	if age < time.Minute {
		return age.String()
	}
	return humanize.RelTime(time.Now().Add(-age), time.Now(), "", "")
}
