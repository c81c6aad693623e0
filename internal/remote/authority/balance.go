package authority

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/kshitijomkar/ledger/internal/logging"
	"github.com/kshitijomkar/ledger/internal/models"
)

// partySet collects, in first-seen order, the parties whose balances a
// push affects.
type partySet struct {
	seen  map[string]bool
	order []string
}

func newPartySet() *partySet {
	return &partySet{seen: make(map[string]bool)}
}

func (p *partySet) add(id string) {
	if id == "" || p.seen[id] {
		return
	}
	p.seen[id] = true
	p.order = append(p.order, id)
}

func (p *partySet) addTransaction(data json.RawMessage) {
	var ref struct {
		PartyID string `json:"party_id"`
	}
	if len(data) == 0 || json.Unmarshal(data, &ref) != nil {
		return
	}
	p.add(ref.PartyID)
}

func (p *partySet) ids() []string {
	return p.order
}

// recompute refreshes the running balances of each party's transactions
// and the party's outstanding balance. Records whose balance changed are
// written with deviceID and returned as updates. It must be called with mu
// held.
func (s *Store) recompute(partyIDs []string, deviceID string) []models.Update {
	var updates []models.Update
	for _, partyID := range partyIDs {
		updates = append(updates, s.recomputeParty(partyID, deviceID)...)
	}
	return updates
}

func (s *Store) recomputeParty(partyID, deviceID string) []models.Update {
	var txns []*models.Transaction
	for k, e := range s.records {
		if k.table != models.TableTransactions || e.action == models.ActionDelete {
			continue
		}
		var tx models.Transaction
		if err := json.Unmarshal(e.data, &tx); err != nil || tx.PartyID != partyID {
			continue
		}
		txns = append(txns, &tx)
	}

	// Ledger order: by date, then creation, then id.
	sort.Slice(txns, func(i, j int) bool {
		a, b := txns[i], txns[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	var (
		updates []models.Update
		balance = decimal.Zero
	)
	for _, tx := range txns {
		balance = balance.Add(tx.SignedAmount())
		if tx.RunningBalance.Equal(balance) {
			continue
		}
		tx.RunningBalance = balance
		if u, ok := s.writeDerived(tx, deviceID); ok {
			updates = append(updates, u)
		}
	}

	for _, table := range []models.Table{models.TableCustomers, models.TableSuppliers} {
		e, ok := s.records[key{table: table, id: partyID}]
		if !ok || e.action == models.ActionDelete {
			continue
		}
		party, err := models.DecodeRecord(table, e.data)
		if err != nil {
			continue
		}
		p := partyOf(party)
		if p == nil || p.OutstandingBalance.Equal(balance) {
			continue
		}
		p.OutstandingBalance = balance
		if u, ok := s.writeDerived(party, deviceID); ok {
			updates = append(updates, u)
		}
	}
	return updates
}

func partyOf(rec models.Record) *models.Party {
	switch r := rec.(type) {
	case *models.Customer:
		return &r.Party
	case *models.Supplier:
		return &r.Party
	}
	return nil
}

func (s *Store) writeDerived(rec models.Record, deviceID string) (models.Update, bool) {
	data, err := json.Marshal(rec)
	if err != nil {
		logging.Error("Failed to encode derived record", err, map[string]interface{}{
			"table":     rec.Table(),
			"record_id": rec.RecordID(),
		})
		return models.Update{}, false
	}
	s.write(key{table: rec.Table(), id: rec.RecordID()}, models.ActionUpdate, data, deviceID)
	return models.Update{Table: rec.Table(), Action: models.ActionUpdate, Record: data}, true
}
