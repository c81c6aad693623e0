package models

import (
	"encoding/json"
	"time"
)

// ConflictKind tells whether the server updated or deleted the record.
type ConflictKind string

const (
	ConflictUpdate ConflictKind = "update"
	ConflictDelete ConflictKind = "delete"
)

// ConflictStatus is the review state of a conflict.
type ConflictStatus string

const (
	ConflictOpen     ConflictStatus = "open"
	ConflictResolved ConflictStatus = "resolved"
)

// Choice is the user's decision on a conflict.
type Choice string

const (
	ChoiceServer Choice = "server"
	ChoiceLocal  Choice = "local"
)

// Valid reports whether c is a known choice.
func (c Choice) Valid() bool {
	return c == ChoiceServer || c == ChoiceLocal
}

// ConflictLog records a concurrent edit that needs the user's decision.
// Local and Server are the record snapshots at detection time; Server is
// empty for delete conflicts.
type ConflictLog struct {
	ID             string          `db:"id" json:"id"`
	Table          Table           `db:"table_name" json:"table"`
	RecordID       string          `db:"record_id" json:"record_id"`
	Kind           ConflictKind    `db:"kind" json:"kind"`
	ConflictFields []string        `db:"conflict_fields" json:"conflict_fields"`
	Local          json.RawMessage `db:"local" json:"local"`
	Server         json.RawMessage `db:"server" json:"server,omitempty"`
	Status         ConflictStatus  `db:"status" json:"status"`
	Choice         Choice          `db:"choice" json:"choice,omitempty"`
	DetectedAt     time.Time       `db:"detected_at" json:"detected_at"`
	ResolvedAt     *time.Time      `db:"resolved_at" json:"resolved_at,omitempty"`
}

// TableName returns the table name for ConflictLog.
func (ConflictLog) TableName() string {
	return string(TableConflicts)
}

// IsOpen reports whether the conflict still awaits a decision.
func (c *ConflictLog) IsOpen() bool {
	return c.Status == ConflictOpen
}
