// Package queue provides the persistent change queue (outbox) of local
// mutations awaiting acknowledgement by the server.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kshitijomkar/ledger/internal/db"
	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/logging"
	"github.com/kshitijomkar/ledger/internal/models"
	"github.com/kshitijomkar/ledger/internal/uuid"
)

// Queue manages pending changes on top of a QueueRepository.
// Entries are never reordered; Seq fixes the order in which they reach the
// server.
type Queue struct {
	repo db.QueueRepository
	now  func() time.Time
}

// New creates a new Queue.
func New(repo db.QueueRepository) *Queue {
	return &Queue{repo: repo, now: time.Now}
}

// Enqueue appends a pending change for one record.
func (q *Queue) Enqueue(ctx context.Context, action models.Action, table models.Table, recordID string, data json.RawMessage) (*models.QueueEntry, error) {
	if !action.Valid() {
		return nil, apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unknown action %q", action))
	}
	if !table.IsDomain() {
		return nil, apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unknown record table %q", table))
	}
	if recordID == "" {
		return nil, apperrors.New(apperrors.ErrInvalid, "record id is required")
	}

	entry := &models.QueueEntry{
		ID:        uuid.NewOrdered(),
		Action:    action,
		Table:     table,
		RecordID:  recordID,
		Data:      data,
		Status:    models.QueueStatusPending,
		CreatedAt: q.now().UTC(),
	}
	if err := q.repo.InsertQueueEntry(ctx, entry); err != nil {
		return nil, err
	}

	logging.Debug("Change enqueued", map[string]interface{}{
		"entry_id":  entry.ID,
		"seq":       entry.Seq,
		"action":    entry.Action,
		"table":     entry.Table,
		"record_id": entry.RecordID,
	})
	return entry, nil
}

// EnqueueRecord snapshots rec and appends it as a pending change.
func (q *Queue) EnqueueRecord(ctx context.Context, action models.Action, rec models.Record) (*models.QueueEntry, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "encode record snapshot", err)
	}
	return q.Enqueue(ctx, action, rec.Table(), rec.RecordID(), data)
}

// PendingCount returns the number of pending entries.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	return q.repo.CountQueueEntries(ctx, models.QueueStatusPending)
}

// Pending returns the pending entries in enqueue order.
func (q *Queue) Pending(ctx context.Context) ([]*models.QueueEntry, error) {
	return q.repo.QueueEntries(ctx, models.QueueStatusPending)
}

// PendingForRecord returns the pending entries of one record in enqueue order.
func (q *Queue) PendingForRecord(ctx context.Context, table models.Table, recordID string) ([]*models.QueueEntry, error) {
	return q.repo.QueueEntriesForRecord(ctx, table, recordID, models.QueueStatusPending)
}

// List returns every entry, including acknowledged and discarded ones.
func (q *Queue) List(ctx context.Context) ([]*models.QueueEntry, error) {
	return q.repo.QueueEntries(ctx, "")
}

// MarkSynced marks entries as acknowledged by the server.
func (q *Queue) MarkSynced(ctx context.Context, ids []string) error {
	return q.repo.MarkQueueSynced(ctx, ids, q.now().UTC())
}

// MarkFailed records a failed push attempt; the entries stay pending.
func (q *Queue) MarkFailed(ctx context.Context, ids []string, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return q.repo.MarkQueueFailed(ctx, ids, msg)
}

// Discard supersedes the pending entries of one record, used when the user
// settles a conflict in favor of the server.
func (q *Queue) Discard(ctx context.Context, table models.Table, recordID string) (int64, error) {
	n, err := q.repo.DiscardQueueEntries(ctx, table, recordID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logging.Info("Pending changes discarded", map[string]interface{}{
			"table":     table,
			"record_id": recordID,
			"count":     n,
		})
	}
	return n, nil
}

// Prune removes synced and discarded entries created before cutoff.
func (q *Queue) Prune(ctx context.Context, before time.Time) (int64, error) {
	n, err := q.repo.DeleteQueueEntriesBefore(ctx, before)
	if err != nil {
		return 0, err
	}
	logging.Info("Change queue pruned", map[string]interface{}{
		"before":  before.UTC().Format(time.RFC3339),
		"removed": n,
	})
	return n, nil
}

// Stats returns entry counts by status.
func (q *Queue) Stats(ctx context.Context) (map[models.QueueStatus]int, error) {
	entries, err := q.List(ctx)
	if err != nil {
		return nil, err
	}
	stats := map[models.QueueStatus]int{
		models.QueueStatusPending:   0,
		models.QueueStatusSynced:    0,
		models.QueueStatusDiscarded: 0,
	}
	for _, e := range entries {
		stats[e.Status]++
	}
	return stats, nil
}

// IDs returns the ids of entries.
func IDs(entries []*models.QueueEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}
