package sync

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/logging"
	"github.com/kshitijomkar/ledger/internal/models"
	"github.com/kshitijomkar/ledger/internal/sync/conflict"
	"github.com/kshitijomkar/ledger/internal/uuid"
)

func newConflictID() string {
	return uuid.NewOrdered()
}

func snapshot(rec models.Record) (json.RawMessage, error) {
	if rec == nil {
		return nil, nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "encode record snapshot", err)
	}
	return data, nil
}

// Conflicts returns the conflicts awaiting a user decision.
func (e *Engine) Conflicts(ctx context.Context) ([]*models.ConflictLog, error) {
	return e.store.ListConflicts(ctx, models.ConflictOpen)
}

// Prompt returns the user prompt for an open conflict.
func (e *Engine) Prompt(ctx context.Context, id string) (*conflict.Prompt, error) {
	c, err := e.store.GetConflict(ctx, id)
	if err != nil {
		return nil, err
	}
	return conflict.PromptFor(c), nil
}

// ResolveConflict applies the user's choice to an open conflict. It waits
// for a running sync to finish.
//
// For an update conflict, ChoiceLocal saves the local record over the server
// one and queues it; ChoiceServer commits the merged result and drops the
// record's pending changes. For a delete conflict, ChoiceServer deletes the
// record and ChoiceLocal queues it to be created again.
func (e *Engine) ResolveConflict(ctx context.Context, id string, choice models.Choice) error {
	if !choice.Valid() {
		return apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unknown choice %q", choice))
	}

	e.run.Lock()
	defer e.run.Unlock()

	c, err := e.store.GetConflict(ctx, id)
	if err != nil {
		return err
	}
	if !c.IsOpen() {
		return apperrors.New(apperrors.ErrConflictResolved, fmt.Sprintf("conflict %s is already resolved", id))
	}

	switch c.Kind {
	case models.ConflictDelete:
		err = e.resolveDelete(ctx, c, choice)
	default:
		err = e.resolveUpdate(ctx, c, choice)
	}
	if err != nil {
		return err
	}

	if err := e.closeConflict(ctx, c, choice); err != nil {
		return err
	}

	logging.Info("Conflict resolved by user", map[string]interface{}{
		"conflict_id": c.ID,
		"table":       c.Table,
		"record_id":   c.RecordID,
		"kind":        c.Kind,
		"choice":      choice,
	})
	e.emit(SyncEvent{Type: EventConflictResolved, Table: c.Table, RecordID: c.RecordID, Message: string(choice)})
	return nil
}

func (e *Engine) resolveUpdate(ctx context.Context, c *models.ConflictLog, choice models.Choice) error {
	res, local, server, err := e.resolver.ResolveSnapshots(c.Table, c.Local, c.Server)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSyncConflict, "decode conflict snapshots", err)
	}
	rec, err := e.resolver.ApplyUserResolution(res, choice, local, server)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSyncConflict, "apply user choice", err)
	}

	if _, err := e.queue.Discard(ctx, c.Table, c.RecordID); err != nil {
		return err
	}

	lm, sm := local.Meta(), server.Meta()
	version := max(lm.Version, sm.Version)

	if choice == models.ChoiceServer {
		e.adoptServerMeta(rec, local)
		rec.Meta().Version = version
		return e.store.Put(ctx, rec)
	}

	m := rec.Meta()
	*m = *lm
	m.SyncStatus = models.SyncStatusPending
	m.Version = version + 1
	m.SyncError = ""
	if m.ServerID == "" {
		m.ServerID = sm.ServerID
	}
	rec.Touch(e.clock().UTC())
	if err := e.store.Put(ctx, rec); err != nil {
		return err
	}
	_, err = e.queue.EnqueueRecord(ctx, models.ActionUpdate, rec)
	return err
}

func (e *Engine) resolveDelete(ctx context.Context, c *models.ConflictLog, choice models.Choice) error {
	if _, err := e.queue.Discard(ctx, c.Table, c.RecordID); err != nil {
		return err
	}

	if choice == models.ChoiceServer {
		return e.store.Delete(ctx, c.Table, c.RecordID)
	}

	rec, err := models.DecodeRecord(c.Table, c.Local)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSyncConflict, "decode local snapshot", err)
	}
	m := rec.Meta()
	m.SyncStatus = models.SyncStatusPending
	m.CreatedLocally = true
	m.SyncError = ""
	m.Version++
	rec.Touch(e.clock().UTC())
	if err := e.store.Put(ctx, rec); err != nil {
		return err
	}
	_, err = e.queue.EnqueueRecord(ctx, models.ActionCreate, rec)
	return err
}
