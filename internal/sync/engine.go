package sync

import (
	"context"
	"encoding/json"
	"fmt"
	gosync "sync"
	"time"

	"github.com/kshitijomkar/ledger/internal/db"
	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/logging"
	"github.com/kshitijomkar/ledger/internal/models"
	"github.com/kshitijomkar/ledger/internal/sync/conflict"
	"github.com/kshitijomkar/ledger/internal/sync/queue"
)

// DefaultBatchSize is the number of queue entries pushed per request.
const DefaultBatchSize = 10

// Status represents the current sync status.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusError   Status = "error"
)

// Result reports the outcome of a sync operation. Sync operations never
// return Go errors; failures are described here.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// Skipped is set when another sync was already running.
	Skipped bool `json:"skipped,omitempty"`

	Pulled        int `json:"pulled"`
	Pushed        int `json:"pushed"`
	FailedBatches int `json:"failed_batches"`
	Deferred      int `json:"deferred"`
	Held          int `json:"held"`
	Conflicts     int `json:"conflicts"`

	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration"`
}

// Options configures an Engine.
type Options struct {
	BatchSize int
	DeviceID  string
	Clock     func() time.Time
}

// Engine runs pull and push phases against a Remote.
type Engine struct {
	store    db.SyncRepository
	queue    *queue.Queue
	remote   Remote
	resolver *conflict.Resolver

	batchSize int
	deviceID  string
	clock     func() time.Time

	// run serializes sync sessions and conflict decisions.
	run gosync.Mutex

	mu       gosync.Mutex
	status   Status
	lastErr  error
	lastSync *time.Time
	handler  SyncEventHandler
}

// NewEngine creates a new Engine.
func NewEngine(store db.SyncRepository, q *queue.Queue, remote Remote, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{
		store:     store,
		queue:     q,
		remote:    remote,
		resolver:  conflict.NewResolver(),
		batchSize: opts.BatchSize,
		deviceID:  opts.DeviceID,
		clock:     opts.Clock,
		status:    StatusIdle,
	}
}

// SetEventHandler sets the event handler for sync notifications.
func (e *Engine) SetEventHandler(handler SyncEventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

// Status returns the current sync status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// LastSync returns the time of the last pull or push attempt by this engine.
func (e *Engine) LastSync() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastSync == nil {
		return nil
	}
	t := *e.lastSync
	return &t
}

// LastError returns the error retained from the last failed sync.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// PendingChanges returns the number of pending queue entries.
func (e *Engine) PendingChanges(ctx context.Context) (int, error) {
	return e.queue.PendingCount(ctx)
}

// Checkpoints returns the persisted lastSyncTime and pull watermark.
func (e *Engine) Checkpoints(ctx context.Context) (lastSync, lastPull *time.Time, err error) {
	if lastSync, err = e.store.GetTime(ctx, models.MetaLastSyncTime); err != nil {
		return nil, nil, err
	}
	if lastPull, err = e.store.GetTime(ctx, models.MetaLastPullTime); err != nil {
		return nil, nil, err
	}
	return lastSync, lastPull, nil
}

// =====================================================
// Session Control
// =====================================================

func (e *Engine) emit(event SyncEvent) {
	e.mu.Lock()
	h := e.handler
	e.mu.Unlock()
	if h == nil {
		return
	}
	if event.Time.IsZero() {
		event.Time = e.clock()
	}
	h.OnSyncEvent(event)
}

// session runs fn as one sync session. A call made while another session
// is running returns a skipped result without side effects.
func (e *Engine) session(ctx context.Context, name string, fn func(ctx context.Context, res *Result) error) *Result {
	res := &Result{StartTime: e.clock()}

	if !e.run.TryLock() {
		res.Skipped = true
		res.Error = apperrors.New(apperrors.ErrSyncInProgress, "sync already in progress").Error()
		logging.Debug("Sync skipped", map[string]interface{}{"operation": name})
		return res
	}
	defer e.run.Unlock()

	e.mu.Lock()
	e.status = StatusSyncing
	e.mu.Unlock()

	logging.Info("Sync started", map[string]interface{}{"operation": name})
	e.emit(SyncEvent{Type: EventSyncStarted, Message: name})

	err := fn(ctx, res)
	res.Duration = e.clock().Sub(res.StartTime)

	if err != nil {
		res.Success = false
		res.Error = err.Error()
	}

	e.mu.Lock()
	if res.Success {
		e.status = StatusIdle
		e.lastErr = nil
	} else {
		e.status = StatusError
		if err != nil {
			e.lastErr = err
		} else {
			e.lastErr = apperrors.New(apperrors.ErrTransport, res.Error)
		}
	}
	e.mu.Unlock()

	fields := map[string]interface{}{
		"operation":      name,
		"pulled":         res.Pulled,
		"pushed":         res.Pushed,
		"failed_batches": res.FailedBatches,
		"deferred":       res.Deferred,
		"held":           res.Held,
		"conflicts":      res.Conflicts,
		"duration_ms":    res.Duration.Milliseconds(),
	}
	if res.Success {
		logging.Info("Sync completed", fields)
		e.emit(SyncEvent{Type: EventSyncCompleted, Count: res.Pulled + res.Pushed, Message: res.Error})
	} else {
		logging.Error("Sync failed", e.LastError(), fields)
		e.emit(SyncEvent{Type: EventSyncFailed, Message: res.Error})
	}
	return res
}

func (e *Engine) touchLastSync(ctx context.Context) error {
	now := e.clock()
	if err := e.store.SetTime(ctx, models.MetaLastSyncTime, now); err != nil {
		return err
	}
	e.mu.Lock()
	e.lastSync = &now
	e.mu.Unlock()
	return nil
}

// FullSync pulls server changes and then pushes the change queue. A failed
// pull is reported immediately and push is not attempted.
func (e *Engine) FullSync(ctx context.Context) *Result {
	return e.session(ctx, "full_sync", func(ctx context.Context, res *Result) error {
		if err := e.pull(ctx, res); err != nil {
			return err
		}
		return e.push(ctx, res)
	})
}

// RetrySync clears the retained error and runs a full sync.
func (e *Engine) RetrySync(ctx context.Context) *Result {
	e.mu.Lock()
	if e.status == StatusError {
		e.status = StatusIdle
	}
	e.lastErr = nil
	e.mu.Unlock()
	return e.FullSync(ctx)
}

// Pull runs only the pull phase.
func (e *Engine) Pull(ctx context.Context) *Result {
	return e.session(ctx, "pull", e.pull)
}

// Push runs only the push phase.
func (e *Engine) Push(ctx context.Context) *Result {
	return e.session(ctx, "push", e.push)
}

// =====================================================
// Pull Phase
// =====================================================

// pull fetches every page changed after the watermark and merges it.
// Pages already merged stay merged when a later page fails; the watermark
// only moves once every page has been read.
func (e *Engine) pull(ctx context.Context, res *Result) error {
	started := e.clock()

	since, err := e.store.GetTime(ctx, models.MetaLastPullTime)
	if err != nil {
		return err
	}

	var (
		cursor    string
		watermark time.Time
		pages     int
	)
	for {
		resp, err := e.remote.Pull(ctx, &models.PullRequest{Since: since, Cursor: cursor, DeviceID: e.deviceID})
		if err != nil {
			return apperrors.Transport("pull changes", err)
		}
		pages++
		if pages == 1 {
			watermark = resp.Timestamp
		}

		for _, u := range resp.Updates {
			conflicted, err := e.merge(ctx, u)
			if err != nil {
				return err
			}
			res.Pulled++
			if conflicted {
				res.Conflicts++
			}
		}

		if !resp.HasMore || resp.Cursor == "" {
			break
		}
		cursor = resp.Cursor
	}

	if watermark.IsZero() {
		watermark = started
	}
	if err := e.store.SetTime(ctx, models.MetaLastPullTime, watermark); err != nil {
		return err
	}
	if err := e.touchLastSync(ctx); err != nil {
		return err
	}

	res.Success = true
	logging.Info("Pull completed", map[string]interface{}{
		"pages":     pages,
		"updates":   res.Pulled,
		"watermark": watermark.UTC().Format(time.RFC3339),
	})
	e.emit(SyncEvent{Type: EventPullCompleted, Count: res.Pulled})
	return nil
}

// merge applies one server update. It reports whether the update opened or
// refreshed a conflict awaiting the user.
func (e *Engine) merge(ctx context.Context, u models.Update) (bool, error) {
	id := u.RecordID()
	if !u.Table.IsDomain() || id == "" {
		logging.Warn("Ignoring malformed server update", map[string]interface{}{
			"table":  u.Table,
			"action": u.Action,
		})
		return false, nil
	}

	local, err := e.store.Get(ctx, u.Table, id)
	if err != nil && !apperrors.IsNotFound(err) {
		return false, err
	}
	if err != nil {
		local = nil
	}

	switch u.Action {
	case models.ActionDelete:
		if local == nil {
			return false, nil
		}
		if local.Meta().SyncStatus.Dirty() {
			return true, e.recordConflict(ctx, u.Table, id, models.ConflictDelete, nil, local, nil)
		}
		return false, e.store.Delete(ctx, u.Table, id)

	case models.ActionCreate, models.ActionUpdate:
		server, err := models.DecodeRecord(u.Table, u.Record)
		if err != nil {
			logging.Warn("Ignoring undecodable server record", map[string]interface{}{
				"table":     u.Table,
				"record_id": id,
				"error":     err.Error(),
			})
			return false, nil
		}

		if local == nil {
			deleting, err := e.pendingDelete(ctx, u.Table, id)
			if err != nil || deleting {
				return false, err
			}
		}
		if local != nil && local.Meta().SyncStatus.Dirty() {
			return e.reconcile(ctx, local, server)
		}
		e.adoptServerMeta(server, local)
		return false, e.store.Put(ctx, server)

	default:
		logging.Warn("Ignoring server update with unknown action", map[string]interface{}{
			"table":     u.Table,
			"record_id": id,
			"action":    u.Action,
		})
		return false, nil
	}
}

// pendingDelete reports whether the record's latest pending change deletes it.
func (e *Engine) pendingDelete(ctx context.Context, table models.Table, id string) (bool, error) {
	pending, err := e.queue.PendingForRecord(ctx, table, id)
	if err != nil || len(pending) == 0 {
		return false, err
	}
	return pending[len(pending)-1].Action == models.ActionDelete, nil
}

// adoptServerMeta marks server as acknowledged, keeping the identifiers and
// version the local copy already had.
func (e *Engine) adoptServerMeta(server, local models.Record) {
	now := e.clock().UTC()
	m := server.Meta()
	serverVersion := m.Version

	if local != nil {
		lm := local.Meta()
		if lm.LocalID != "" {
			m.LocalID = lm.LocalID
		}
		if lm.ServerID != "" {
			m.ServerID = lm.ServerID
		}
		m.Version = max(lm.Version, serverVersion)
	}
	if m.LocalID == "" {
		m.LocalID = server.RecordID()
	}
	if m.ServerID == "" {
		m.ServerID = server.RecordID()
	}
	m.SyncStatus = models.SyncStatusSynced
	m.CreatedLocally = false
	m.SyncError = ""
	m.LastSyncAttempt = &now
}

// reconcile merges a server version into a record with unacknowledged local
// edits.
func (e *Engine) reconcile(ctx context.Context, local, server models.Record) (bool, error) {
	table, id := server.Table(), server.RecordID()
	lm := local.Meta()

	open, err := e.store.OpenConflictFor(ctx, table, id)
	if err != nil {
		return false, err
	}
	if open != nil && len(open.Local) > 0 {
		// The user's version lives in the conflict while it is open.
		if snapshot, err := models.DecodeRecord(table, open.Local); err == nil {
			local = snapshot
		}
	}

	res, err := e.resolver.Resolve(local, server)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrSyncConflict, fmt.Sprintf("resolve %s/%s", table, id), err)
	}

	resolved := res.Resolved

	if res.NeedsReview() {
		// Keep the provisional server values locally and hold the queue
		// entries until the user decides.
		m := resolved.Meta()
		*m = *lm
		m.Version = max(lm.Version, server.Meta().Version)
		if m.ServerID == "" {
			m.ServerID = server.Meta().ServerID
		}
		if err := e.store.Put(ctx, resolved); err != nil {
			return false, err
		}
		return true, e.recordConflict(ctx, table, id, models.ConflictUpdate, res.ConflictFields, local, server)
	}

	if open != nil {
		// The newer server version no longer disagrees on financial fields.
		if err := e.closeConflict(ctx, open, ""); err != nil {
			return false, err
		}
	}

	switch res.Strategy {
	case conflict.StrategyLocal:
		// Local edits won every differing field; the queued changes carry them.
		m := resolved.Meta()
		*m = *lm
		m.Version = max(lm.Version, server.Meta().Version)
		if m.ServerID == "" {
			m.ServerID = server.Meta().ServerID
		}
		if err := e.store.Put(ctx, resolved); err != nil {
			return false, err
		}

	case conflict.StrategyMerged:
		// Queued snapshots would resend fields the server won; replace
		// them with one update carrying the merged record.
		if _, err := e.queue.Discard(ctx, table, id); err != nil {
			return false, err
		}
		m := resolved.Meta()
		*m = *lm
		m.SyncStatus = models.SyncStatusPending
		m.Version = max(lm.Version, server.Meta().Version) + 1
		if m.ServerID == "" {
			m.ServerID = server.Meta().ServerID
		}
		if err := e.store.Put(ctx, resolved); err != nil {
			return false, err
		}
		if _, err := e.queue.EnqueueRecord(ctx, models.ActionUpdate, resolved); err != nil {
			return false, err
		}

	default:
		// The server won every differing field.
		if _, err := e.queue.Discard(ctx, table, id); err != nil {
			return false, err
		}
		e.adoptServerMeta(resolved, local)
		if err := e.store.Put(ctx, resolved); err != nil {
			return false, err
		}
	}

	if len(res.ConflictFields) > 0 {
		logging.Info("Conflict resolved automatically", map[string]interface{}{
			"table":           table,
			"record_id":       id,
			"strategy":        res.Strategy,
			"conflict_fields": res.ConflictFields,
		})
	}
	return false, nil
}

// recordConflict opens a conflict for the record or refreshes the open one.
func (e *Engine) recordConflict(ctx context.Context, table models.Table, id string, kind models.ConflictKind, fields []string, local, server models.Record) error {
	open, err := e.store.OpenConflictFor(ctx, table, id)
	if err != nil {
		return err
	}

	localJSON, err := snapshot(local)
	if err != nil {
		return err
	}
	serverJSON, err := snapshot(server)
	if err != nil {
		return err
	}

	if open != nil {
		open.Kind = kind
		open.ConflictFields = fields
		open.Server = serverJSON
		if err := e.store.UpdateConflict(ctx, open); err != nil {
			return err
		}
	} else {
		c := &models.ConflictLog{
			ID:             newConflictID(),
			Table:          table,
			RecordID:       id,
			Kind:           kind,
			ConflictFields: fields,
			Local:          localJSON,
			Server:         serverJSON,
			Status:         models.ConflictOpen,
			DetectedAt:     e.clock().UTC(),
		}
		if err := e.store.InsertConflict(ctx, c); err != nil {
			return err
		}
	}

	logging.Warn("Conflict requires user review", map[string]interface{}{
		"table":           table,
		"record_id":       id,
		"kind":            kind,
		"conflict_fields": fields,
	})
	e.emit(SyncEvent{Type: EventConflictDetected, Table: table, RecordID: id, Message: string(kind)})
	return nil
}

func (e *Engine) closeConflict(ctx context.Context, c *models.ConflictLog, choice models.Choice) error {
	now := e.clock().UTC()
	c.Status = models.ConflictResolved
	c.Choice = choice
	c.ResolvedAt = &now
	return e.store.UpdateConflict(ctx, c)
}

// =====================================================
// Push Phase
// =====================================================

func recordKey(table models.Table, id string) string {
	return string(table) + "/" + id
}

// push submits pending entries in enqueue order, in batches. A failed batch
// does not stop later batches, but later entries of a record from a failed
// batch are deferred so a record's changes never reach the server out of
// order. Entries of records with an open conflict are held back.
func (e *Engine) push(ctx context.Context, res *Result) error {
	entries, err := e.queue.Pending(ctx)
	if err != nil {
		return err
	}

	held := map[string]bool{}
	eligible := make([]*models.QueueEntry, 0, len(entries))
	for _, entry := range entries {
		key := recordKey(entry.Table, entry.RecordID)
		isHeld, seen := held[key]
		if !seen {
			open, err := e.store.OpenConflictFor(ctx, entry.Table, entry.RecordID)
			if err != nil {
				return err
			}
			isHeld = open != nil
			held[key] = isHeld
		}
		if isHeld {
			res.Held++
			continue
		}
		eligible = append(eligible, entry)
	}

	var (
		attempted int
		lastErr   error
		blocked   = map[string]bool{}
	)

	for i := 0; i < len(eligible); {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		batch := make([]*models.QueueEntry, 0, e.batchSize)
		for i < len(eligible) && len(batch) < e.batchSize {
			entry := eligible[i]
			i++
			if blocked[recordKey(entry.Table, entry.RecordID)] {
				res.Deferred++
				continue
			}
			batch = append(batch, entry)
		}
		if len(batch) == 0 {
			break
		}

		attempted++
		if err := e.pushBatch(ctx, batch, res); err != nil {
			if apperrors.Is(err, apperrors.ErrStorage) {
				return err
			}
			lastErr = err
			res.FailedBatches++
			for _, entry := range batch {
				blocked[recordKey(entry.Table, entry.RecordID)] = true
			}
		}
	}

	if err := e.touchLastSync(ctx); err != nil {
		return err
	}

	res.Success = attempted == 0 || res.FailedBatches < attempted
	if res.FailedBatches > 0 {
		res.Error = fmt.Sprintf("%d of %d batches failed: %v", res.FailedBatches, attempted, lastErr)
	} else if lastErr != nil {
		res.Success = false
		res.Error = lastErr.Error()
	}
	return nil
}

// pushBatch submits one batch. Transport failures are recorded on the
// entries and their records and returned; storage failures are returned
// as is.
func (e *Engine) pushBatch(ctx context.Context, batch []*models.QueueEntry, res *Result) error {
	changes := make([]models.Change, len(batch))
	for i, entry := range batch {
		changes[i] = entry.Change()
	}
	ids := queue.IDs(batch)

	resp, err := e.remote.Push(ctx, &models.PushRequest{
		DeviceID:  e.deviceID,
		Changes:   changes,
		Timestamp: e.clock().UTC(),
	})
	if err != nil {
		pushErr := apperrors.Transport("push batch", err)
		logging.Error("Push batch failed", err, map[string]interface{}{
			"entries":   len(batch),
			"first_seq": batch[0].Seq,
		})
		if err := e.queue.MarkFailed(ctx, ids, err); err != nil {
			return err
		}
		for _, key := range distinctRecords(batch) {
			if err := e.markRecordError(ctx, key.table, key.id, err); err != nil {
				return err
			}
		}
		e.emit(SyncEvent{Type: EventBatchFailed, Count: len(batch), Message: err.Error()})
		return pushErr
	}

	if err := e.queue.MarkSynced(ctx, ids); err != nil {
		return err
	}
	res.Pushed += len(batch)

	for _, key := range distinctRecords(batch) {
		if err := e.markRecordSynced(ctx, key.table, key.id, key.version); err != nil {
			return err
		}
	}

	if resp != nil {
		for _, u := range resp.Updates {
			// A record with later pending changes is reconciled by the
			// next pull rather than against the echo of its own push.
			pending, err := e.queue.PendingForRecord(ctx, u.Table, u.RecordID())
			if err != nil {
				return err
			}
			if len(pending) > 0 {
				continue
			}
			conflicted, err := e.merge(ctx, u)
			if err != nil {
				return err
			}
			if conflicted {
				res.Conflicts++
			}
		}
	}

	e.emit(SyncEvent{Type: EventBatchPushed, Count: len(batch)})
	return nil
}

type recordRef struct {
	table models.Table
	id    string
	// version is the highest record version carried by the batch.
	version int
}

func distinctRecords(batch []*models.QueueEntry) []recordRef {
	index := map[string]int{}
	var refs []recordRef
	for _, entry := range batch {
		v := entryVersion(entry)
		key := recordKey(entry.Table, entry.RecordID)
		if i, ok := index[key]; ok {
			if v > refs[i].version {
				refs[i].version = v
			}
			continue
		}
		index[key] = len(refs)
		refs = append(refs, recordRef{table: entry.Table, id: entry.RecordID, version: v})
	}
	return refs
}

// entryVersion reads the record version from an entry snapshot, 0 when the
// snapshot carries none.
func entryVersion(entry *models.QueueEntry) int {
	var snap struct {
		Version int `json:"version"`
	}
	if len(entry.Data) == 0 || json.Unmarshal(entry.Data, &snap) != nil {
		return 0
	}
	return snap.Version
}

// markRecordSynced marks the record acknowledged unless it has pending
// entries or a version newer than the one pushed.
func (e *Engine) markRecordSynced(ctx context.Context, table models.Table, id string, version int) error {
	updated, err := e.store.MarkRecordSynced(ctx, table, id, version, e.clock())
	if err != nil {
		return err
	}
	if !updated {
		logging.Debug("Record left unsynced after push", map[string]interface{}{
			"table":     string(table),
			"record_id": id,
			"version":   version,
		})
	}
	return nil
}

func (e *Engine) markRecordError(ctx context.Context, table models.Table, id string, cause error) error {
	return e.store.MarkRecordError(ctx, table, id, cause.Error(), e.clock())
}
