package models

import "github.com/shopspring/decimal"

// TransactionType distinguishes money given from money received.
type TransactionType string

const (
	// TransactionPayment is money given to the party; it raises what they owe.
	TransactionPayment TransactionType = "payment"
	// TransactionReceipt is money received from the party; it lowers what they owe.
	TransactionReceipt TransactionType = "receipt"
)

// Transaction is a ledger entry against a customer or supplier.
type Transaction struct {
	ID          string          `json:"id"`
	Type        TransactionType `json:"type"`
	PartyID     string          `json:"party_id"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`

	// RunningBalance is computed by the server.
	RunningBalance decimal.Decimal `json:"running_balance"`

	Timestamps
	SyncMeta
}

func (*Transaction) Table() Table            { return TableTransactions }
func (t *Transaction) RecordID() string      { return t.ID }
func (t *Transaction) SetRecordID(id string) { t.ID = id }
func (*Transaction) isRecord()               {}

func (t *Transaction) FieldValues() map[string]any {
	return map[string]any{
		"type":        string(t.Type),
		"party_id":    t.PartyID,
		"amount":      t.Amount,
		"date":        t.Date,
		"description": t.Description,
		"category":    t.Category,
	}
}

func (t *Transaction) IndexValue(attribute string) (string, bool) {
	switch attribute {
	case IndexPartyID:
		return t.PartyID, true
	case IndexDate:
		return t.Date, true
	case IndexSyncStatus:
		return string(t.SyncStatus), true
	}
	return "", false
}

// SignedAmount is the effect of t on the party's outstanding balance.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TransactionReceipt {
		return t.Amount.Neg()
	}
	return t.Amount
}
