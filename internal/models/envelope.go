package models

import (
	"encoding/json"
	"time"
)

// Metadata keys.
const (
	// MetaLastSyncTime is the time of the last pull or push attempt.
	MetaLastSyncTime = "lastSyncTime"
	// MetaLastPullTime is the server watermark of the last completed pull.
	MetaLastPullTime = "lastPullTime"
)

// Change is a queue entry as submitted to the server.
type Change struct {
	ID       string          `json:"id"`
	Action   Action          `json:"action"`
	Table    Table           `json:"table"`
	RecordID string          `json:"record_id"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// PushRequest is the body of POST /api/v1/sync.
type PushRequest struct {
	DeviceID  string    `json:"device_id,omitempty"`
	Changes   []Change  `json:"changes"`
	Timestamp time.Time `json:"timestamp"`
}

// PushResponse carries records the server accepted or derived.
type PushResponse struct {
	Updates []Update `json:"updates,omitempty"`
}

// PullRequest selects the changes made on the server after Since.
// A nil Since requests a full snapshot. The server may leave out records
// last written by DeviceID, which already holds them.
type PullRequest struct {
	Since    *time.Time
	Cursor   string
	DeviceID string
}

// PullResponse is one page of server changes.
type PullResponse struct {
	Updates   []Update  `json:"updates"`
	Cursor    string    `json:"cursor,omitempty"`
	HasMore   bool      `json:"has_more"`
	Timestamp time.Time `json:"timestamp"`
}

// Update is a server-side record change. Record is empty or holds only the
// id for deletes.
type Update struct {
	Table  Table           `json:"table"`
	Action Action          `json:"action"`
	Record json.RawMessage `json:"record"`
}

// UpdateFor builds an update carrying the JSON form of rec.
func UpdateFor(action Action, rec Record) (Update, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return Update{}, err
	}
	return Update{Table: rec.Table(), Action: action, Record: data}, nil
}

// RecordID extracts the id of the carried record.
func (u Update) RecordID() string {
	var ref struct {
		ID string `json:"id"`
	}
	if len(u.Record) == 0 {
		return ""
	}
	if err := json.Unmarshal(u.Record, &ref); err != nil {
		return ""
	}
	return ref.ID
}
