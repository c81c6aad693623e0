// Package authority is an in-memory remote authority serving the sync
// endpoints. It backs local development and end-to-end tests.
package authority

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/kshitijomkar/ledger/internal/models"
	"github.com/kshitijomkar/ledger/internal/uuid"
)

// DefaultPageSize is the number of updates per pull page.
const DefaultPageSize = 500

// SyncLog records one accepted push.
type SyncLog struct {
	ID       string    `json:"id"`
	DeviceID string    `json:"device_id"`
	Subject  string    `json:"subject,omitempty"`
	Changes  int       `json:"changes"`
	Applied  int       `json:"applied"`
	Derived  int       `json:"derived"`
	LastSync time.Time `json:"last_sync"`
	Status   string    `json:"status"`
}

// entry is the latest server state of one record. Deleted records are kept
// as tombstones so pulls can report them.
type entry struct {
	table    models.Table
	id       string
	action   models.Action
	data     json.RawMessage
	seq      int64
	at       time.Time
	deviceID string
}

func (e *entry) update() models.Update {
	rec := e.data
	if e.action == models.ActionDelete {
		rec = json.RawMessage(fmt.Sprintf(`{"id":%q}`, e.id))
	}
	return models.Update{Table: e.table, Action: e.action, Record: rec}
}

type key struct {
	table models.Table
	id    string
}

// Store holds the authority's records, applied change ids and sync logs.
type Store struct {
	mu       sync.Mutex
	records  map[key]*entry
	applied  map[string]bool
	logs     []SyncLog
	seq      int64
	lastAt   time.Time
	pageSize int
	clock    func() time.Time
}

// NewStore creates an empty Store.
func NewStore(pageSize int) *Store {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Store{
		records:  make(map[key]*entry),
		applied:  make(map[string]bool),
		pageSize: pageSize,
		clock:    time.Now,
	}
}

// ValidationError rejects a push request.
type ValidationError struct {
	ChangeID string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("change %s: %s", e.ChangeID, e.Reason)
}

func validate(c models.Change) error {
	switch {
	case c.ID == "":
		return &ValidationError{Reason: "missing change id"}
	case !c.Table.IsDomain():
		return &ValidationError{ChangeID: c.ID, Reason: fmt.Sprintf("unknown table %q", c.Table)}
	case !c.Action.Valid():
		return &ValidationError{ChangeID: c.ID, Reason: fmt.Sprintf("unknown action %q", c.Action)}
	case c.RecordID == "":
		return &ValidationError{ChangeID: c.ID, Reason: "missing record id"}
	}
	if c.Action == models.ActionDelete {
		return nil
	}
	rec, err := models.DecodeRecord(c.Table, c.Data)
	if err != nil {
		return &ValidationError{ChangeID: c.ID, Reason: err.Error()}
	}
	if rec.RecordID() != c.RecordID {
		return &ValidationError{ChangeID: c.ID, Reason: "record id does not match data"}
	}
	return nil
}

// Apply applies a push. Changes whose id was applied before are skipped.
// It returns the records the server derived from the changes.
func (s *Store) Apply(req *models.PushRequest, subject string) ([]models.Update, error) {
	for _, c := range req.Changes {
		if err := validate(c); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		applied int
		parties = newPartySet()
	)
	for _, c := range req.Changes {
		if s.applied[c.ID] {
			continue
		}
		s.applied[c.ID] = true
		applied++

		k := key{table: c.Table, id: c.RecordID}
		if prev, ok := s.records[k]; ok && c.Table == models.TableTransactions {
			parties.addTransaction(prev.data)
		}

		if c.Action == models.ActionDelete {
			s.write(k, models.ActionDelete, nil, req.DeviceID)
			continue
		}
		s.write(k, c.Action, c.Data, req.DeviceID)

		switch c.Table {
		case models.TableTransactions:
			parties.addTransaction(c.Data)
		case models.TableCustomers, models.TableSuppliers:
			parties.add(c.RecordID)
		}
	}

	derived := s.recompute(parties.ids(), req.DeviceID)

	s.logs = append(s.logs, SyncLog{
		ID:       uuid.New(),
		DeviceID: req.DeviceID,
		Subject:  subject,
		Changes:  len(req.Changes),
		Applied:  applied,
		Derived:  len(derived),
		LastSync: s.clock().UTC(),
		Status:   "success",
	})
	return derived, nil
}

// write stores the record state with a fresh sequence number and a
// strictly increasing write time. It must be called with mu held.
func (s *Store) write(k key, action models.Action, data json.RawMessage, deviceID string) *entry {
	at := s.clock().UTC()
	if !at.After(s.lastAt) {
		at = s.lastAt.Add(time.Nanosecond)
	}
	s.lastAt = at
	s.seq++

	e := &entry{
		table:    k.table,
		id:       k.id,
		action:   action,
		data:     data,
		seq:      s.seq,
		at:       at,
		deviceID: deviceID,
	}
	s.records[k] = e
	return e
}

// Pull returns one page of records written after since, oldest first.
// Records last written by deviceID are left out. The cursor continues a
// paged read; its watermark is the latest write time when the page was
// read.
func (s *Store) Pull(since *time.Time, cursor, deviceID string) (*models.PullResponse, error) {
	var after int64
	if cursor != "" {
		n, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil || n < 0 {
			return nil, &ValidationError{Reason: fmt.Sprintf("invalid cursor %q", cursor)}
		}
		after = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matches := make([]*entry, 0)
	for _, e := range s.records {
		if e.seq <= after {
			continue
		}
		if since != nil && !e.at.After(*since) {
			continue
		}
		if deviceID != "" && e.deviceID == deviceID {
			continue
		}
		matches = append(matches, e)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].seq < matches[j].seq })

	resp := &models.PullResponse{
		Updates:   []models.Update{},
		Timestamp: s.lastAt,
	}
	if resp.Timestamp.IsZero() {
		resp.Timestamp = s.clock().UTC()
	}

	page := matches
	if len(page) > s.pageSize {
		page = page[:s.pageSize]
		resp.HasMore = true
		resp.Cursor = strconv.FormatInt(page[len(page)-1].seq, 10)
	}
	for _, e := range page {
		resp.Updates = append(resp.Updates, e.update())
	}
	return resp, nil
}

// Get returns the current JSON form of a record.
func (s *Store) Get(table models.Table, id string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[key{table: table, id: id}]
	if !ok || e.action == models.ActionDelete {
		return nil, false
	}
	return e.data, true
}

// Put stores a record as if an administrator edited it on the server.
func (s *Store) Put(rec models.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(key{table: rec.Table(), id: rec.RecordID()}, models.ActionUpdate, data, "")
	return nil
}

// Remove deletes a record as if an administrator deleted it on the server.
func (s *Store) Remove(table models.Table, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(key{table: table, id: id}, models.ActionDelete, nil, "")
}

// Logs returns the sync logs, oldest first.
func (s *Store) Logs(deviceID string) []SyncLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SyncLog, 0, len(s.logs))
	for _, l := range s.logs {
		if deviceID == "" || l.DeviceID == deviceID {
			out = append(out, l)
		}
	}
	return out
}
