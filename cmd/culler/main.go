package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"culler/internal/phase"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(phase.ExitCode(err))
	}
}
