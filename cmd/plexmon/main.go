// Package main is the entry point for the plexmon binary.
package main

import (
	"os"

	"github.com/plexsphere/plexmon/cmd/plexmon/cmd"
)

// Build-time variables set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	if err := cmd.Execute(os.Args); err != nil {
		os.Exit(1)
	}
}
