package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/models"
)

type recordChangeView struct {
	Action models.Action `json:"action"`
	Table  models.Table  `json:"table"`
	ID     string        `json:"id"`
	Record models.Record `json:"record,omitempty"`
}

func (v recordChangeView) RenderText(w io.Writer) {
	fmt.Fprintf(w, "%s %s/%s queued", v.Action, v.Table, v.ID)
	if v.Record != nil {
		fmt.Fprintf(w, " (version %d)", v.Record.Meta().Version)
	}
	fmt.Fprintln(w)
}

func newRecordsAddCommand(opts *RootOptions) *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "add <table>",
		Short: "Create a local record and queue it",
		Example: `  ledgersync records add customers --set name=Asha --set phone=555-0101
  ledgersync records add transactions --set party_id=c1 --set type=payment --set amount=250 --set date=2024-07-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := domainTable(args[0])
			if err != nil {
				return err
			}
			base, err := models.NewRecord(table)
			if err != nil {
				return NewExitError(ExitCommandError, err.Error())
			}
			rec, err := applySets(base, sets)
			if err != nil {
				return err
			}

			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.ledger.Create(cmd.Context(), rec); err != nil {
				return mutationError("create record", err)
			}
			return opts.formatter(cmd).Success(recordChangeView{
				Action: models.ActionCreate, Table: table, ID: rec.RecordID(), Record: rec,
			})
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "field value (field=value), repeatable")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

func newRecordsEditCommand(opts *RootOptions) *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:     "edit <table> <id>",
		Short:   "Change fields of a local record and queue the update",
		Example: `  ledgersync records edit transactions t1 --set amount=300`,
		Args:    cobra.ExactArgs(2),
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

			existing, err := a.ledger.Get(cmd.Context(), table, args[1])
			if err != nil {
				return mutationError("read record", err)
			}
			rec, err := applySets(existing, sets)
			if err != nil {
				return err
			}
			if rec.RecordID() != args[1] {
				return NewExitError(ExitCommandError, "the id of a record cannot be changed")
			}
			if err := a.ledger.Update(cmd.Context(), rec); err != nil {
				return mutationError("update record", err)
			}
			return opts.formatter(cmd).Success(recordChangeView{
				Action: models.ActionUpdate, Table: table, ID: rec.RecordID(), Record: rec,
			})
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "field value (field=value), repeatable")
	_ = cmd.MarkFlagRequired("set")
	return cmd
}

func newRecordsRemoveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <table> <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a local record and queue the delete",
		Args:    cobra.ExactArgs(2),
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

			if err := a.ledger.Delete(cmd.Context(), table, args[1]); err != nil {
				return mutationError("delete record", err)
			}
			return opts.formatter(cmd).Success(recordChangeView{
				Action: models.ActionDelete, Table: table, ID: args[1],
			})
		},
	}
}

func domainTable(name string) (models.Table, error) {
	table := models.Table(name)
	if !table.IsDomain() {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("unknown table %q: must be one of %v", name, tableNames(models.DomainTables())))
	}
	return table, nil
}

// applySets returns a copy of rec with the field=value assignments applied.
// A value is taken as text when the field holds text, and as a JSON literal
// otherwise.
func applySets(rec models.Record, sets []string) (models.Record, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "encode record", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, WrapExitError(ExitFailure, "encode record", err)
	}

	for _, set := range sets {
		name, value, ok := strings.Cut(set, "=")
		if !ok || name == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --set %q: must be field=value", set))
		}
		current, known := fields[name]
		if !known || bytes.HasPrefix(current, []byte(`"`)) {
			encoded, _ := json.Marshal(value)
			fields[name] = encoded
			continue
		}
		if !json.Valid([]byte(value)) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --set %q: %s takes a JSON value", set, name))
		}
		fields[name] = json.RawMessage(value)
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "encode record", err)
	}
	out, err := models.NewRecord(rec.Table())
	if err != nil {
		return nil, NewExitError(ExitCommandError, err.Error())
	}
	dec := json.NewDecoder(bytes.NewReader(merged))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s fields: %v", rec.Table(), err))
	}
	return out, nil
}

func mutationError(op string, err error) error {
	code := ExitFailure
	if apperrors.IsNotFound(err) || apperrors.Is(err, apperrors.ErrInvalid) {
		code = ExitCommandError
	}
	return WrapExitError(code, "failed to "+op, err)
}
