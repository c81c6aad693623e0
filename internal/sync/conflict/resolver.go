// Package conflict reconciles a locally edited record with the server's
// version of it.
package conflict

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/kshitijomkar/ledger/internal/logging"
	"github.com/kshitijomkar/ledger/internal/models"
)

// Strategy reports which side the resolved record mostly came from.
type Strategy string

const (
	StrategyServer Strategy = "server"
	StrategyLocal  Strategy = "local"
	StrategyMerged Strategy = "merged"
)

// Resolution is the outcome of reconciling two versions of one record.
type Resolution struct {
	Table    models.Table
	RecordID string
	Strategy Strategy
	Resolved models.Record

	// ConflictFields lists every declared field whose values differed,
	// whichever side won.
	ConflictFields []string

	// Sensitive lists the financial fields among ConflictFields. Their
	// server values are provisional until the user confirms.
	Sensitive []string
}

// NeedsReview reports whether the user must confirm the resolution.
func (r *Resolution) NeedsReview() bool {
	return len(r.Sensitive) > 0
}

// Resolver merges local and server records field by field using the
// table's declared schema. It reads no clock; only updated_at is compared.
type Resolver struct{}

// NewResolver creates a new Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// ResolveByTimestamp reconciles the ordinary fields. A differing field
// keeps the server value unless local.updated_at is strictly later.
// Financial fields are taken from the server without being reported.
func (r *Resolver) ResolveByTimestamp(local, server models.Record) (*Resolution, error) {
	return r.resolve(local, server, true, false)
}

// ResolveLedgerAmount reconciles the financial fields. Any difference is
// reported and flagged for confirmation; the server value is kept.
func (r *Resolver) ResolveLedgerAmount(local, server models.Record) (*Resolution, error) {
	return r.resolve(local, server, false, true)
}

// Resolve applies ResolveByTimestamp to ordinary fields and
// ResolveLedgerAmount to financial fields.
func (r *Resolver) Resolve(local, server models.Record) (*Resolution, error) {
	return r.resolve(local, server, true, true)
}

func (r *Resolver) resolve(local, server models.Record, ordinary, financial bool) (*Resolution, error) {
	if local == nil || server == nil {
		return nil, ErrInvalidConflict
	}
	if local.Table() != server.Table() || local.RecordID() != server.RecordID() {
		return nil, ErrRecordMismatch
	}
	schema, ok := models.SchemaFor(server.Table())
	if !ok {
		return nil, ErrUnknownTable
	}

	localFields, err := models.FieldMap(local)
	if err != nil {
		return nil, err
	}
	resolved, err := models.FieldMap(server)
	if err != nil {
		return nil, err
	}

	localValues := local.FieldValues()
	serverValues := server.FieldValues()
	localNewer := local.UpdatedAtTime().After(server.UpdatedAtTime())

	res := &Resolution{
		Table:          server.Table(),
		RecordID:       server.RecordID(),
		ConflictFields: []string{},
	}
	var tookLocal, keptServer bool

	for _, f := range schema.Fields {
		if sameValue(localValues[f.Name], serverValues[f.Name]) {
			continue
		}
		switch f.Sensitivity {
		case models.Financial:
			if !financial {
				continue
			}
			res.ConflictFields = append(res.ConflictFields, f.Name)
			res.Sensitive = append(res.Sensitive, f.Name)
			keptServer = true
			logging.Warn("Financial field conflict", map[string]interface{}{
				"table":     res.Table,
				"record_id": res.RecordID,
				"field":     f.Name,
				"local":     localValues[f.Name],
				"server":    serverValues[f.Name],
			})
		default:
			if !ordinary {
				continue
			}
			res.ConflictFields = append(res.ConflictFields, f.Name)
			if localNewer {
				resolved[f.Name] = localFields[f.Name]
				tookLocal = true
			} else {
				keptServer = true
			}
		}
	}

	if tookLocal {
		resolved["updated_at"] = localFields["updated_at"]
	}

	switch {
	case tookLocal && keptServer:
		res.Strategy = StrategyMerged
	case tookLocal:
		res.Strategy = StrategyLocal
	default:
		res.Strategy = StrategyServer
	}

	res.Resolved, err = models.RecordFromFieldMap(res.Table, resolved)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ApplyUserResolution commits the user's choice. ChoiceLocal overlays every
// local field onto the server record; ChoiceServer returns the resolver's
// default result unchanged.
func (r *Resolver) ApplyUserResolution(res *Resolution, choice models.Choice, local, server models.Record) (models.Record, error) {
	switch choice {
	case models.ChoiceServer:
		if res == nil || res.Resolved == nil {
			return nil, ErrInvalidConflict
		}
		return models.Clone(res.Resolved)
	case models.ChoiceLocal:
		if local == nil || server == nil {
			return nil, ErrInvalidConflict
		}
		return Overlay(server, local)
	default:
		return nil, ErrUnknownChoice
	}
}

// Overlay returns base with every field present in top copied over it.
func Overlay(base, top models.Record) (models.Record, error) {
	merged, err := models.FieldMap(base)
	if err != nil {
		return nil, err
	}
	topFields, err := models.FieldMap(top)
	if err != nil {
		return nil, err
	}
	for k, v := range topFields {
		merged[k] = v
	}
	return models.RecordFromFieldMap(base.Table(), merged)
}

// ResolveSnapshots decodes stored JSON snapshots and resolves them.
func (r *Resolver) ResolveSnapshots(table models.Table, local, server json.RawMessage) (*Resolution, models.Record, models.Record, error) {
	l, err := models.DecodeRecord(table, local)
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := models.DecodeRecord(table, server)
	if err != nil {
		return nil, nil, nil, err
	}
	res, err := r.Resolve(l, s)
	if err != nil {
		return nil, nil, nil, err
	}
	return res, l, s, nil
}

func sameValue(a, b any) bool {
	da, aok := a.(decimal.Decimal)
	db, bok := b.(decimal.Decimal)
	if aok && bok {
		return da.Equal(db)
	}
	return a == b
}

// Errors
var (
	ErrInvalidConflict = &ConflictError{Message: "invalid conflict: both records must be non-nil"}
	ErrRecordMismatch  = &ConflictError{Message: "record table or id mismatch"}
	ErrUnknownTable    = &ConflictError{Message: "table has no declared schema"}
	ErrUnknownChoice   = &ConflictError{Message: "choice must be server or local"}
)

// ConflictError represents a conflict resolution error.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// IsConflictError checks if an error is a ConflictError.
func IsConflictError(err error) bool {
	_, ok := err.(*ConflictError)
	return ok
}
