package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

const (
	exitFailure     = 1
	exitUnreachable = 2
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode lets editor hooks tell "server down" apart from other failures.
func exitCode(err error) int {
	if errors.Is(err, errServerUnreachable) {
		return exitUnreachable
	}
	return exitFailure
}
