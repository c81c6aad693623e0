package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kshitijomkar/ledger/internal/models"
	"github.com/kshitijomkar/ledger/internal/sync/connectivity"
)

// statusView is the local sync state.
type statusView struct {
	Remote        string                     `json:"remote"`
	Online        *bool                      `json:"online,omitempty"`
	Pending       int                        `json:"pending"`
	Queue         map[models.QueueStatus]int `json:"queue"`
	OpenConflicts int                        `json:"open_conflicts"`
	LastSyncTime  *time.Time                 `json:"last_sync_time,omitempty"`
	LastPullTime  *time.Time                 `json:"last_pull_time,omitempty"`
}

func (v statusView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "remote:          %s", v.Remote)
	if v.Online != nil {
		if *v.Online {
			fmt.Fprint(w, " (reachable)")
		} else {
			fmt.Fprint(w, " (unreachable)")
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "pending changes: %d\n", v.Pending)
	fmt.Fprintf(w, "synced entries:  %d\n", v.Queue[models.QueueStatusSynced])
	fmt.Fprintf(w, "open conflicts:  %d\n", v.OpenConflicts)
	fmt.Fprintf(w, "last sync:       %s\n", formatTime(v.LastSyncTime))
	fmt.Fprintf(w, "last pull:       %s\n", formatTime(v.LastPullTime))
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return fmt.Sprintf("%s (%s)", t.Local().Format(time.RFC3339), humanize.Time(*t))
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pending changes, conflicts and sync checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			view, err := localStatus(ctx, a)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read local state", err)
			}
			view.Remote = opts.Config.Remote.URL

			if probe {
				prober := connectivity.NewProber(a.client, a.observer, 0)
				online := prober.Probe(ctx)
				view.Online = &online
			}
			return opts.formatter(cmd).Success(view)
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "check whether the authority is reachable")
	return cmd
}

func localStatus(ctx context.Context, a *app) (statusView, error) {
	var v statusView
	var err error

	if v.Pending, err = a.queue.PendingCount(ctx); err != nil {
		return v, err
	}
	if v.Queue, err = a.queue.Stats(ctx); err != nil {
		return v, err
	}
	conflicts, err := a.engine.Conflicts(ctx)
	if err != nil {
		return v, err
	}
	v.OpenConflicts = len(conflicts)
	v.LastSyncTime, v.LastPullTime, err = a.engine.Checkpoints(ctx)
	return v, err
}
