package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var verboseFlag bool

	opts := &phaseOptions{}
	ctx := newCommandContext(&configFlag, &verboseFlag)

	rootCmd := &cobra.Command{
		Use:   "culler",
		Short: "Safe duplicate detection for NAS media archives",
		Long: `culler finds duplicate photos and videos across storage volumes and
quarantines them without ever deleting a file. Detection runs in three
explicit phases: scan roots into a persistent catalog, flag verified
duplicates, and execute quarantine moves. Each destructive step is gated
behind binary re-verification.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.requested() {
				return cmd.Help()
			}
			if err := opts.validate(); err != nil {
				return err
			}
			return runPhases(cmd, ctx, opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")

	flags := rootCmd.Flags()
	flags.StringArrayVar(&opts.scanRoots, "scan", nil, "Scan a directory tree into the catalog (repeatable)")
	flags.BoolVar(&opts.flagDeletions, "flag-deletions", false, "Group duplicates, select originals, and verify duplicates byte-for-byte")
	flags.BoolVar(&opts.executeDeletions, "execute-deletions", false, "Move verified duplicates into quarantine")
	flags.BoolVar(&opts.safetyMode, "safety-mode", false, "Fully hash every file (default)")
	flags.BoolVar(&opts.performanceMode, "performance-mode", false, "Prefilter with size and prefix hashes; fully hash only collisions")
	flags.BoolVar(&opts.noRecursive, "no-recursive", false, "Do not descend into subdirectories of scan roots")
	flags.StringVar(&opts.reportPath, "report", "", "Write a duplicate report to FILE, or stdout when no file is given")
	flags.Lookup("report").NoOptDefVal = "-"
	flags.StringVar(&opts.jsonPath, "json", "", "Write the report as JSON to FILE, or stdout when no file is given")
	flags.Lookup("json").NoOptDefVal = "-"

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}

type phaseOptions struct {
	scanRoots        []string
	flagDeletions    bool
	executeDeletions bool
	safetyMode       bool
	performanceMode  bool
	noRecursive      bool
	reportPath       string
	jsonPath         string
}

func (o *phaseOptions) requested() bool {
	return o.anyPhase() || o.reportPath != "" || o.jsonPath != ""
}

func (o *phaseOptions) anyPhase() bool {
	return len(o.scanRoots) > 0 || o.flagDeletions || o.executeDeletions
}

func (o *phaseOptions) validate() error {
	if o.safetyMode && o.performanceMode {
		return errors.New("--safety-mode and --performance-mode are mutually exclusive")
	}
	return nil
}
