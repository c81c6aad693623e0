// Package sync reconciles the local store with the remote authority.
package sync

import (
	"context"
	"time"

	"github.com/kshitijomkar/ledger/internal/models"
)

// SyncEngineInterface defines the interface for sync engine operations.
// This interface allows for mocking in tests and alternative implementations.
//
//go:generate mockgen -source=engine_interface.go -destination=engine_interface_mock.go -package=sync
type SyncEngineInterface interface {
	// FullSync pulls server changes and then pushes the change queue.
	FullSync(ctx context.Context) *Result

	// RetrySync clears the retained error and runs a full sync.
	RetrySync(ctx context.Context) *Result

	// SetEventHandler sets the event handler for sync notifications.
	SetEventHandler(handler SyncEventHandler)

	// Status returns the current sync status.
	Status() Status

	// LastSync returns the time of the last pull or push attempt.
	LastSync() *time.Time

	// PendingChanges returns the number of pending queue entries.
	PendingChanges(ctx context.Context) (int, error)

	// LastError returns the error retained from the last failed sync.
	LastError() error

	// Conflicts returns the conflicts awaiting a user decision.
	Conflicts(ctx context.Context) ([]*models.ConflictLog, error)

	// ResolveConflict applies the user's choice to an open conflict.
	ResolveConflict(ctx context.Context, id string, choice models.Choice) error
}

// EventType names a sync notification.
type EventType string

const (
	EventSyncStarted      EventType = "sync_started"
	EventPullCompleted    EventType = "pull_completed"
	EventBatchPushed      EventType = "batch_pushed"
	EventBatchFailed      EventType = "batch_failed"
	EventConflictDetected EventType = "conflict_detected"
	EventConflictResolved EventType = "conflict_resolved"
	EventSyncCompleted    EventType = "sync_completed"
	EventSyncFailed       EventType = "sync_failed"
)

// SyncEvent is a notification emitted while syncing.
type SyncEvent struct {
	Type     EventType    `json:"type"`
	Table    models.Table `json:"table,omitempty"`
	RecordID string       `json:"record_id,omitempty"`
	Count    int          `json:"count,omitempty"`
	Message  string       `json:"message,omitempty"`
	Time     time.Time    `json:"time"`
}

// SyncEventHandler receives sync notifications. It is called on the
// syncing goroutine and must not block.
type SyncEventHandler interface {
	OnSyncEvent(event SyncEvent)
}

// SyncEventHandlerFunc adapts a function to SyncEventHandler.
type SyncEventHandlerFunc func(event SyncEvent)

// OnSyncEvent calls f(event).
func (f SyncEventHandlerFunc) OnSyncEvent(event SyncEvent) {
	f(event)
}

// Ensure *Engine implements the interface at compile time.
var _ SyncEngineInterface = (*Engine)(nil)
