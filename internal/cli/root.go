// Package cli implements the ledgersync command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/kshitijomkar/ledger/internal/config"
	"github.com/kshitijomkar/ledger/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"
	EnvFile string
	DataDir string

	// Config is loaded before any subcommand runs.
	Config *config.Config

	// LogOutput receives log lines; stderr when nil.
	LogOutput io.Writer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the ledgersync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledgersync",
		Short: "Offline-first ledger sync",
		Long: `Synchronize the local ledger database with the remote authority.

Changes made offline are queued locally and pushed when the authority is
reachable; server changes are pulled and merged, and conflicting edits to
amounts are held for review.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.load()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "env file to load before the environment")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "local database directory (overrides LEDGER_DATA_DIR)")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewPullCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewRecordsCommand(opts))
	cmd.AddCommand(NewConflictsCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// load reads the configuration and configures logging.
func (o *RootOptions) load() error {
	var files []string
	if o.EnvFile != "" {
		files = append(files, o.EnvFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	o.Config = cfg

	level := logging.LogLevel(cfg.Log.Level)
	if o.Verbose {
		level = logging.LevelDebug
	}
	out := o.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logging.Init(out, level, logging.Format(cfg.Log.Format))
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
