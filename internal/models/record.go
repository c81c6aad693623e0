// Package models provides the record, queue and wire types of the ledger sync core.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SyncStatus is the per-record synchronization state.
type SyncStatus string

const (
	// SyncStatusPending marks a record mutated locally and not yet acknowledged.
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	// SyncStatusError marks a record whose last push attempt failed. It still
	// has pending queue entries.
	SyncStatusError SyncStatus = "error"
)

// Dirty reports whether the record holds local edits the server has not
// acknowledged.
func (s SyncStatus) Dirty() bool {
	return s == SyncStatusPending || s == SyncStatusError
}

// SyncMeta is the synchronization metadata carried by every record.
type SyncMeta struct {
	SyncStatus      SyncStatus `json:"sync_status"`
	LocalID         string     `json:"local_id"`
	ServerID        string     `json:"server_id,omitempty"`
	Version         int        `json:"version"`
	CreatedLocally  bool       `json:"created_locally"`
	LastSyncAttempt *time.Time `json:"last_sync_attempt,omitempty"`
	SyncError       string     `json:"sync_error,omitempty"`
}

// Meta returns the metadata for modification in place.
func (m *SyncMeta) Meta() *SyncMeta {
	return m
}

// Timestamps holds creation and modification times.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdatedAtTime returns the last modification time.
func (t *Timestamps) UpdatedAtTime() time.Time {
	return t.UpdatedAt
}

// Stamps returns the timestamps for modification in place.
func (t *Timestamps) Stamps() *Timestamps {
	return t
}

// Touch sets UpdatedAt, and CreatedAt when it is unset.
func (t *Timestamps) Touch(now time.Time) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
}

// Record is one of Transaction, Customer, Supplier or Reminder.
type Record interface {
	Table() Table
	RecordID() string
	SetRecordID(id string)
	Meta() *SyncMeta
	Stamps() *Timestamps
	UpdatedAtTime() time.Time
	Touch(now time.Time)

	// FieldValues returns the declared domain fields keyed by JSON name.
	FieldValues() map[string]any

	// IndexValue returns the value of a secondary index attribute.
	IndexValue(attribute string) (string, bool)

	isRecord()
}

// NewRecord returns an empty record for table.
func NewRecord(table Table) (Record, error) {
	switch table {
	case TableTransactions:
		return &Transaction{}, nil
	case TableCustomers:
		return &Customer{}, nil
	case TableSuppliers:
		return &Supplier{}, nil
	case TableReminders:
		return &Reminder{}, nil
	default:
		return nil, fmt.Errorf("unknown record table %q", table)
	}
}

// DecodeRecord decodes a JSON document into the record type of table.
func DecodeRecord(table Table, data []byte) (Record, error) {
	rec, err := NewRecord(table)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", table, err)
	}
	if rec.RecordID() == "" {
		return nil, fmt.Errorf("decode %s record: missing id", table)
	}
	return rec, nil
}

// Clone returns a deep copy of rec.
func Clone(rec Record) (Record, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", rec.Table(), err)
	}
	return DecodeRecord(rec.Table(), data)
}

// FieldMap returns the JSON object form of rec, keyed by field name.
func FieldMap(rec Record) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", rec.Table(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// RecordFromFieldMap rebuilds a record of table from its JSON object form.
func RecordFromFieldMap(table Table, fields map[string]json.RawMessage) (Record, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return DecodeRecord(table, data)
}
