package db

import (
	"context"
	"time"

	"github.com/kshitijomkar/ledger/internal/models"
)

// RecordStore defines operations for record persistence.
type RecordStore interface {
	Put(ctx context.Context, rec models.Record) error
	Get(ctx context.Context, table models.Table, id string) (models.Record, error)
	GetAll(ctx context.Context, table models.Table) ([]models.Record, error)
	QueryByIndex(ctx context.Context, table models.Table, attribute, value string) ([]models.Record, error)
	Delete(ctx context.Context, table models.Table, id string) error
	Clear(ctx context.Context, table models.Table) error
}

// MetadataStore defines operations on the key/value metadata table.
type MetadataStore interface {
	GetMetadata(ctx context.Context, key string) (string, bool, error)
	SetMetadata(ctx context.Context, key, value string) error
	GetTime(ctx context.Context, key string) (*time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}

// QueueRepository defines operations for change queue persistence.
type QueueRepository interface {
	InsertQueueEntry(ctx context.Context, entry *models.QueueEntry) error
	QueueEntries(ctx context.Context, status models.QueueStatus) ([]*models.QueueEntry, error)
	QueueEntriesForRecord(ctx context.Context, table models.Table, recordID string, status models.QueueStatus) ([]*models.QueueEntry, error)
	CountQueueEntries(ctx context.Context, status models.QueueStatus) (int, error)
	MarkQueueSynced(ctx context.Context, ids []string, syncedAt time.Time) error
	MarkQueueFailed(ctx context.Context, ids []string, lastError string) error
	DiscardQueueEntries(ctx context.Context, table models.Table, recordID string) (int64, error)
	DeleteQueueEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ConflictRepository defines operations for conflict log persistence.
type ConflictRepository interface {
	InsertConflict(ctx context.Context, c *models.ConflictLog) error
	GetConflict(ctx context.Context, id string) (*models.ConflictLog, error)
	ListConflicts(ctx context.Context, status models.ConflictStatus) ([]*models.ConflictLog, error)
	OpenConflictFor(ctx context.Context, table models.Table, recordID string) (*models.ConflictLog, error)
	UpdateConflict(ctx context.Context, c *models.ConflictLog) error
}

// SyncStateStore updates only the sync metadata of stored records.
type SyncStateStore interface {
	MarkRecordSynced(ctx context.Context, table models.Table, id string, version int, at time.Time) (bool, error)
	MarkRecordError(ctx context.Context, table models.Table, id, message string, at time.Time) error
}

// SyncRepository groups the stores the sync engine works on.
type SyncRepository interface {
	RecordStore
	MetadataStore
	ConflictRepository
	SyncStateStore
}

// Ensure *Store implements the interfaces at compile time.
var (
	_ RecordStore        = (*Store)(nil)
	_ MetadataStore      = (*Store)(nil)
	_ QueueRepository    = (*Store)(nil)
	_ ConflictRepository = (*Store)(nil)
	_ SyncStateStore     = (*Store)(nil)
	_ SyncRepository     = (*Store)(nil)
)
