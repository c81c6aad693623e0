// Package ledger is the local mutation layer used by the UI. Every write is
// applied to the local store first, marked pending and queued for the next
// push.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kshitijomkar/ledger/internal/db"
	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/logging"
	"github.com/kshitijomkar/ledger/internal/models"
	"github.com/kshitijomkar/ledger/internal/sync/queue"
	"github.com/kshitijomkar/ledger/internal/uuid"
)

// Store is the part of the local store the service writes to.
type Store interface {
	db.RecordStore
	OpenConflictFor(ctx context.Context, table models.Table, recordID string) (*models.ConflictLog, error)
	UpdateConflict(ctx context.Context, c *models.ConflictLog) error
}

// PendingNotifier receives the pending change count after each mutation.
type PendingNotifier interface {
	SetPendingCount(n int)
}

// Service creates, updates and deletes ledger records offline-first.
type Service struct {
	store    Store
	queue    *queue.Queue
	notifier PendingNotifier
	now      func() time.Time
}

// NewService creates a Service. notifier may be nil.
func NewService(store Store, q *queue.Queue, notifier PendingNotifier) *Service {
	return &Service{
		store:    store,
		queue:    q,
		notifier: notifier,
		now:      time.Now,
	}
}

// Create stores a new record and queues it. A missing id is generated.
func (s *Service) Create(ctx context.Context, rec models.Record) error {
	if err := Validate(rec); err != nil {
		return err
	}
	if rec.RecordID() == "" {
		rec.SetRecordID(uuid.New())
	} else if _, err := s.store.Get(ctx, rec.Table(), rec.RecordID()); err == nil {
		return apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("%s/%s already exists", rec.Table(), rec.RecordID()))
	} else if !apperrors.IsNotFound(err) {
		return err
	}

	m := rec.Meta()
	*m = models.SyncMeta{
		SyncStatus:     models.SyncStatusPending,
		LocalID:        rec.RecordID(),
		Version:        1,
		CreatedLocally: true,
	}
	*rec.Stamps() = models.Timestamps{}
	rec.Touch(s.now().UTC())

	if err := s.write(ctx, models.ActionCreate, rec); err != nil {
		return err
	}
	logging.Info("Record created", map[string]interface{}{
		"table":     rec.Table(),
		"record_id": rec.RecordID(),
	})
	return nil
}

// Update replaces the domain fields of an existing record and queues the
// change. Sync metadata and the creation time are carried over from the
// stored copy.
func (s *Service) Update(ctx context.Context, rec models.Record) error {
	if err := Validate(rec); err != nil {
		return err
	}
	existing, err := s.store.Get(ctx, rec.Table(), rec.RecordID())
	if err != nil {
		return err
	}

	m := rec.Meta()
	*m = *existing.Meta()
	m.SyncStatus = models.SyncStatusPending
	m.SyncError = ""
	m.Version++
	rec.Stamps().CreatedAt = existing.Stamps().CreatedAt
	rec.Touch(s.now().UTC())
	if !rec.UpdatedAtTime().After(existing.UpdatedAtTime()) {
		rec.Stamps().UpdatedAt = existing.UpdatedAtTime().Add(time.Millisecond)
	}

	if err := s.write(ctx, models.ActionUpdate, rec); err != nil {
		return err
	}
	if err := s.refreshConflict(ctx, rec); err != nil {
		return err
	}
	logging.Info("Record updated", map[string]interface{}{
		"table":     rec.Table(),
		"record_id": rec.RecordID(),
		"version":   m.Version,
	})
	return nil
}

// Delete removes a record locally and queues the delete.
func (s *Service) Delete(ctx context.Context, table models.Table, id string) error {
	existing, err := s.store.Get(ctx, table, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, table, id); err != nil {
		return err
	}
	data, err := json.Marshal(existing)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "encode record snapshot", err)
	}
	if _, err := s.queue.Enqueue(ctx, models.ActionDelete, table, id, data); err != nil {
		return err
	}
	s.notify(ctx)

	logging.Info("Record deleted", map[string]interface{}{
		"table":     table,
		"record_id": id,
	})
	return nil
}

// Get returns one record.
func (s *Service) Get(ctx context.Context, table models.Table, id string) (models.Record, error) {
	return s.store.Get(ctx, table, id)
}

// List returns all records of a table.
func (s *Service) List(ctx context.Context, table models.Table) ([]models.Record, error) {
	return s.store.GetAll(ctx, table)
}

// Query returns the records whose indexed attribute equals value.
func (s *Service) Query(ctx context.Context, table models.Table, attribute, value string) ([]models.Record, error) {
	return s.store.QueryByIndex(ctx, table, attribute, value)
}

func (s *Service) write(ctx context.Context, action models.Action, rec models.Record) error {
	if err := s.store.Put(ctx, rec); err != nil {
		return err
	}
	if _, err := s.queue.EnqueueRecord(ctx, action, rec); err != nil {
		return err
	}
	s.notify(ctx)
	return nil
}

// refreshConflict keeps an open conflict's local side in step with edits
// made while it awaits a decision.
func (s *Service) refreshConflict(ctx context.Context, rec models.Record) error {
	c, err := s.store.OpenConflictFor(ctx, rec.Table(), rec.RecordID())
	if err != nil || c == nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInternal, "encode record snapshot", err)
	}
	c.Local = data
	return s.store.UpdateConflict(ctx, c)
}

func (s *Service) notify(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	n, err := s.queue.PendingCount(ctx)
	if err != nil {
		logging.Warn("Failed to count pending changes", map[string]interface{}{"error": err.Error()})
		return
	}
	s.notifier.SetPendingCount(n)
}
