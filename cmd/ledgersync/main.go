// Package main is the ledgersync command: one-shot syncs, queue and conflict
// inspection, and the sync daemon with its status feed.
package main

import (
	"fmt"
	"os"

	"github.com/kshitijomkar/ledger/internal/cli"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	cmd := cli.NewRootCommand()
	cmd.Version = Version
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
