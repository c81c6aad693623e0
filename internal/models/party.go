package models

import "github.com/shopspring/decimal"

// Party holds the fields shared by customers and suppliers.
type Party struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Phone              string          `json:"phone,omitempty"`
	Email              string          `json:"email,omitempty"`
	Address            string          `json:"address,omitempty"`
	Notes              string          `json:"notes,omitempty"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`

	Timestamps
	SyncMeta
}

func (p *Party) RecordID() string      { return p.ID }
func (p *Party) SetRecordID(id string) { p.ID = id }

func (p *Party) FieldValues() map[string]any {
	return map[string]any{
		"name":                p.Name,
		"phone":               p.Phone,
		"email":               p.Email,
		"address":             p.Address,
		"notes":               p.Notes,
		"outstanding_balance": p.OutstandingBalance,
	}
}

func (p *Party) IndexValue(attribute string) (string, bool) {
	switch attribute {
	case IndexName:
		return p.Name, true
	case IndexSyncStatus:
		return string(p.SyncStatus), true
	}
	return "", false
}

// Customer is a party that buys on credit.
type Customer struct {
	Party
}

func (*Customer) Table() Table { return TableCustomers }
func (*Customer) isRecord()    {}

// Supplier is a party the business buys from.
type Supplier struct {
	Party
}

func (*Supplier) Table() Table { return TableSuppliers }
func (*Supplier) isRecord()    {}
