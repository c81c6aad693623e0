package models

import "github.com/shopspring/decimal"

// PartyType tells which table a reminder's party lives in.
type PartyType string

const (
	PartyCustomer PartyType = "customer"
	PartySupplier PartyType = "supplier"
)

// Table returns the record table holding parties of this type.
func (p PartyType) Table() Table {
	if p == PartySupplier {
		return TableSuppliers
	}
	return TableCustomers
}

// Reminder is a payment due from or to a party.
type Reminder struct {
	ID          string          `json:"id"`
	PartyID     string          `json:"party_id"`
	PartyType   PartyType       `json:"party_type"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     string          `json:"due_date"`
	Description string          `json:"description,omitempty"`
	IsCompleted bool            `json:"is_completed"`

	Timestamps
	SyncMeta
}

func (*Reminder) Table() Table            { return TableReminders }
func (r *Reminder) RecordID() string      { return r.ID }
func (r *Reminder) SetRecordID(id string) { r.ID = id }
func (*Reminder) isRecord()               {}

func (r *Reminder) FieldValues() map[string]any {
	return map[string]any{
		"party_id":     r.PartyID,
		"party_type":   string(r.PartyType),
		"amount":       r.Amount,
		"due_date":     r.DueDate,
		"description":  r.Description,
		"is_completed": r.IsCompleted,
	}
}

func (r *Reminder) IndexValue(attribute string) (string, bool) {
	switch attribute {
	case IndexPartyID:
		return r.PartyID, true
	case IndexDueDate:
		return r.DueDate, true
	case IndexSyncStatus:
		return string(r.SyncStatus), true
	}
	return "", false
}
