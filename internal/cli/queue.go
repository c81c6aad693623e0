package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kshitijomkar/ledger/internal/models"
)

type queueView struct {
	Entries []*models.QueueEntry `json:"entries"`
}

func (v queueView) RenderText(w io.Writer) {
	if len(v.Entries) == 0 {
		fmt.Fprintln(w, "queue is empty")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSTATUS\tACTION\tRECORD\tATTEMPTS\tCREATED\tLAST ERROR")
	for _, e := range v.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s/%s\t%d\t%s\t%s\n",
			e.Seq, e.Status, e.Action, e.Table, e.RecordID, e.AttemptCount,
			humanize.Time(e.CreatedAt), e.LastError)
	}
	tw.Flush()
}

type pruneView struct {
	Before  time.Time `json:"before"`
	Removed int64     `json:"removed"`
}

func (v pruneView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "removed %s acknowledged entries created before %s\n", humanize.Comma(v.Removed), v.Before.Local().Format(time.RFC3339))
}

// NewQueueCommand creates the queue command.
func NewQueueCommand(opts *RootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List queued changes",
		Long: `List the change queue in enqueue order. Only pending entries are shown
unless --all is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var entries []*models.QueueEntry
			if all {
				entries, err = a.queue.List(cmd.Context())
			} else {
				entries, err = a.queue.Pending(cmd.Context())
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read queue", err)
			}
			return opts.formatter(cmd).Success(queueView{Entries: entries})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "include synced and discarded entries")
	cmd.AddCommand(newPruneCommand(opts))
	return cmd
}

func newPruneCommand(opts *RootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove acknowledged queue entries",
		Long: `Remove synced and discarded entries older than --older-than. Pending
entries are never removed. The default is LEDGER_QUEUE_RETENTION.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("older-than") {
				olderThan = opts.Config.Sync.Retention
			}
			if olderThan < 0 {
				return NewExitError(ExitCommandError, "--older-than must not be negative")
			}

			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			before := time.Now().Add(-olderThan)
			n, err := a.queue.Prune(cmd.Context(), before)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to prune queue", err)
			}
			return opts.formatter(cmd).Success(pruneView{Before: before, Removed: n})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age of entries to remove (default LEDGER_QUEUE_RETENTION)")
	return cmd
}
