package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/models"
	"github.com/kshitijomkar/ledger/internal/sync/conflict"
)

type conflictView struct {
	*models.ConflictLog
	Prompt *conflict.Prompt `json:"prompt"`
}

type conflictsView struct {
	Conflicts []conflictView `json:"conflicts"`
}

func (v conflictsView) RenderText(w io.Writer) {
	if len(v.Conflicts) == 0 {
		fmt.Fprintln(w, "no open conflicts")
		return
	}
	for i, c := range v.Conflicts {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s  %s/%s  detected %s\n", c.ID, c.Table, c.RecordID, c.DetectedAt.Local().Format(time.RFC3339))
		fmt.Fprintln(w, c.Prompt.String())
	}
}

// NewConflictsCommand creates the conflicts command.
func NewConflictsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "conflicts",
		Short: "List conflicts awaiting a decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.engine.Conflicts(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read conflicts", err)
			}
			view := conflictsView{Conflicts: make([]conflictView, len(list))}
			for i, c := range list {
				view.Conflicts[i] = conflictView{ConflictLog: c, Prompt: conflict.PromptFor(c)}
			}
			return opts.formatter(cmd).Success(view)
		},
	}
}

type resolvedView struct {
	ID     string        `json:"id"`
	Choice models.Choice `json:"choice"`
}

func (v resolvedView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "conflict %s resolved: kept %s version\n", v.ID, v.Choice)
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(opts *RootOptions) *cobra.Command {
	var keep string

	cmd := &cobra.Command{
		Use:   "resolve <conflict-id>",
		Short: "Keep the server or the local version of a conflicting record",
		Long: `Apply a decision to an open conflict. --keep local saves the local
version and queues it for the next push; --keep server accepts the server
version and drops the record's queued changes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			choice := models.Choice(keep)
			if !choice.Valid() {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid --keep %q: must be server or local", keep))
			}

			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.ResolveConflict(cmd.Context(), args[0], choice); err != nil {
				code := ExitFailure
				if apperrors.IsNotFound(err) || apperrors.Is(err, apperrors.ErrConflictResolved) {
					code = ExitCommandError
				}
				return WrapExitError(code, "failed to resolve conflict", err)
			}
			return opts.formatter(cmd).Success(resolvedView{ID: args[0], Choice: choice})
		},
	}

	cmd.Flags().StringVar(&keep, "keep", "", "version to keep (server|local)")
	_ = cmd.MarkFlagRequired("keep")
	return cmd
}
