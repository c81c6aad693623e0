package models

import (
	"encoding/json"
	"time"
)

// Action is the kind of mutation carried by a queue entry.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// QueueStatus is the lifecycle state of a queue entry.
type QueueStatus string

const (
	QueueStatusPending   QueueStatus = "pending"
	QueueStatusSynced    QueueStatus = "synced"
	QueueStatusDiscarded QueueStatus = "discarded"
)

// QueueEntry is one local mutation awaiting acknowledgement by the server.
// Seq orders entries by enqueue time.
type QueueEntry struct {
	Seq          int64           `db:"seq" json:"seq"`
	ID           string          `db:"id" json:"id"`
	Action       Action          `db:"action" json:"action"`
	Table        Table           `db:"table_name" json:"table"`
	RecordID     string          `db:"record_id" json:"record_id"`
	Data         json.RawMessage `db:"data" json:"data"`
	Status       QueueStatus     `db:"status" json:"status"`
	AttemptCount int             `db:"attempt_count" json:"attempt_count"`
	LastError    string          `db:"last_error" json:"last_error,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	SyncedAt     *time.Time      `db:"synced_at" json:"synced_at,omitempty"`
}

// TableName returns the table name for QueueEntry.
func (QueueEntry) TableName() string {
	return string(TableSyncQueue)
}

// Change converts the entry into its wire form.
func (e *QueueEntry) Change() Change {
	return Change{
		ID:       e.ID,
		Action:   e.Action,
		Table:    e.Table,
		RecordID: e.RecordID,
		Data:     e.Data,
	}
}
