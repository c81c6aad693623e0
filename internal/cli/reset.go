package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kshitijomkar/ledger/internal/models"
)

type resetView struct {
	Tables []models.Table `json:"tables"`
}

func (v resetView) RenderText(w io.Writer) {
	for _, t := range v.Tables {
		fmt.Fprintf(w, "cleared %s\n", t)
	}
}

// resettable lists every table reset accepts, in the order --all clears them.
var resettable = []models.Table{
	models.TableTransactions,
	models.TableCustomers,
	models.TableSuppliers,
	models.TableReminders,
	models.TableSyncQueue,
	models.TableConflicts,
	models.TableMetadata,
}

// NewResetCommand creates the reset command.
func NewResetCommand(opts *RootOptions) *cobra.Command {
	var (
		tables []string
		all    bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear local tables (diagnostics only)",
		Long: `Clear local tables. Queued changes that were never pushed are lost.
Clearing metadata forgets the pull watermark, so the next sync pulls a full
snapshot. Requires --force.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var targets []models.Table
			switch {
			case all:
				targets = resettable
			case len(tables) == 0:
				return NewExitError(ExitCommandError, "name a --table or pass --all")
			default:
				for _, name := range tables {
					t := models.Table(name)
					if !t.Valid() {
						return NewExitError(ExitCommandError, fmt.Sprintf("unknown table %q: must be one of %v", name, tableNames(resettable)))
					}
					targets = append(targets, t)
				}
			}
			if !force {
				return NewExitError(ExitCommandError, "reset discards local data; pass --force to proceed")
			}

			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			for _, t := range targets {
				if err := a.store.Clear(cmd.Context(), t); err != nil {
					return WrapExitError(ExitCommandError, fmt.Sprintf("failed to clear %s", t), err)
				}
			}
			return opts.formatter(cmd).Success(resetView{Tables: targets})
		},
	}

	cmd.Flags().StringSliceVar(&tables, "table", nil, "table to clear (repeatable)")
	cmd.Flags().BoolVar(&all, "all", false, "clear every local table")
	cmd.Flags().BoolVar(&force, "force", false, "confirm the reset")
	return cmd
}
