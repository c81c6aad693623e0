package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	syncpkg "github.com/kshitijomkar/ledger/internal/sync"
)

// resultView renders a sync result.
type resultView struct {
	Operation string `json:"operation"`
	*syncpkg.Result
}

func (v resultView) RenderText(w io.Writer) {
	r := v.Result
	state := "ok"
	switch {
	case r.Skipped:
		state = "skipped (another sync is running)"
	case !r.Success:
		state = "failed"
	}
	fmt.Fprintf(w, "%s: %s\n", v.Operation, state)
	fmt.Fprintf(w, "  pulled:    %d\n", r.Pulled)
	fmt.Fprintf(w, "  pushed:    %d\n", r.Pushed)
	if r.FailedBatches > 0 {
		fmt.Fprintf(w, "  failed batches: %d\n", r.FailedBatches)
	}
	if r.Deferred > 0 {
		fmt.Fprintf(w, "  deferred:  %d\n", r.Deferred)
	}
	if r.Held > 0 || r.Conflicts > 0 {
		fmt.Fprintf(w, "  conflicts: %d (held changes: %d)\n", r.Conflicts, r.Held)
	}
	fmt.Fprintf(w, "  duration:  %s\n", r.Duration.Round(time.Millisecond))
	if r.Error != "" {
		fmt.Fprintf(w, "  error:     %s\n", r.Error)
	}
}

type syncFunc func(e *syncpkg.Engine, ctx context.Context) *syncpkg.Result

func runSyncOperation(opts *RootOptions, cmd *cobra.Command, name string, fn syncFunc) error {
	a, err := opts.openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := opts.formatter(cmd)
	out.VerboseLog("remote: %s, device: %s", opts.Config.Remote.URL, opts.Config.DeviceID)

	res := fn(a.engine, cmd.Context())
	if err := out.Success(resultView{Operation: name, Result: res}); err != nil {
		return err
	}
	if !res.Success {
		return NewExitError(ExitFailure, fmt.Sprintf("%s failed: %s", name, res.Error))
	}
	return nil
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	var retry bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull server changes, then push queued changes",
		Long: `Run one full sync: pull every server change since the last pull, then
push the queued local changes in batches.

With --retry the error retained from the last failed sync is cleared first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if retry {
				return runSyncOperation(opts, cmd, "retry", (*syncpkg.Engine).RetrySync)
			}
			return runSyncOperation(opts, cmd, "sync", (*syncpkg.Engine).FullSync)
		},
	}

	cmd.Flags().BoolVar(&retry, "retry", false, "clear the last sync error before syncing")
	return cmd
}

// NewPullCommand creates the pull command.
func NewPullCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Pull server changes only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncOperation(opts, cmd, "pull", (*syncpkg.Engine).Pull)
		},
	}
}

// NewPushCommand creates the push command.
func NewPushCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Push queued changes only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSyncOperation(opts, cmd, "push", (*syncpkg.Engine).Push)
		},
	}
}
