package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kshitijomkar/ledger/internal/models"
)

type recordsView struct {
	Table   models.Table    `json:"table"`
	Records []models.Record `json:"records"`
}

func (v recordsView) RenderText(w io.Writer) {
	if len(v.Records) == 0 {
		fmt.Fprintf(w, "no %s\n", v.Table)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tVERSION\tFIELDS")
	for _, rec := range v.Records {
		m := rec.Meta()
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", rec.RecordID(), m.SyncStatus, m.Version, summarize(rec.FieldValues()))
	}
	tw.Flush()
}

// summarize renders the non-empty fields in name order.
func summarize(fields map[string]any) string {
	names := make([]string, 0, len(fields))
	for name, v := range fields {
		if s := fmt.Sprint(v); s != "" && s != "false" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%v", name, fields[name])
	}
	return strings.Join(parts, " ")
}

// NewRecordsCommand creates the records command.
func NewRecordsCommand(opts *RootOptions) *cobra.Command {
	var where string

	cmd := &cobra.Command{
		Use:   "records <table>",
		Short: "List and change local records of a table",
		Long: `List the local records of transactions, customers, suppliers or
reminders. --where filters on a declared index, for example
--where party_id=c1 or --where sync_status=pending.

The add, edit and rm subcommands change records locally and queue the
change for the next push.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: tableNames(models.DomainTables()),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := domainTable(args[0])
			if err != nil {
				return err
			}

			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			var records []models.Record
			if where != "" {
				attr, value, ok := strings.Cut(where, "=")
				if !ok {
					return NewExitError(ExitCommandError, "--where must be attribute=value")
				}
				records, err = a.ledger.Query(cmd.Context(), table, attr, value)
			} else {
				records, err = a.ledger.List(cmd.Context(), table)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read records", err)
			}
			return opts.formatter(cmd).Success(recordsView{Table: table, Records: records})
		},
	}

	cmd.Flags().StringVar(&where, "where", "", "filter on an indexed attribute (attribute=value)")
	cmd.AddCommand(newRecordsAddCommand(opts))
	cmd.AddCommand(newRecordsEditCommand(opts))
	cmd.AddCommand(newRecordsRemoveCommand(opts))
	return cmd
}

func tableNames(tables []models.Table) []string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = string(t)
	}
	return names
}
