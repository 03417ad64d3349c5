package main

import (
	"fmt"
	"os"

	"github.com/shipyardlabs/cargohold/internal/cmd"
)

// Populated by the release pipeline via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
