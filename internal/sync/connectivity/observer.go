// Package connectivity tracks whether the device can reach the remote
// authority and the sync state shown to the user.
package connectivity

import (
	"sync"
	"time"

	"github.com/kshitijomkar/ledger/internal/logging"
	syncpkg "github.com/kshitijomkar/ledger/internal/sync"
)

// State is the transient connectivity and sync state. It is never persisted.
type State struct {
	IsOnline            bool           `json:"is_online"`
	SyncStatus          syncpkg.Status `json:"sync_status"`
	PendingChangesCount int            `json:"pending_changes_count"`
	SyncError           string         `json:"sync_error,omitempty"`
	LastSyncTime        *time.Time     `json:"last_sync_time,omitempty"`
}

// Transition is an online/offline change.
type Transition struct {
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// Observer owns State. Going online sets the sync status to syncing and
// emits a Transition; the observer never starts a sync itself.
type Observer struct {
	mu          sync.Mutex
	state       State
	transitions chan Transition
	subs        map[int]chan State
	nextSub     int
	clock       func() time.Time
}

// NewObserver creates an Observer with the given initial reachability.
func NewObserver(online bool) *Observer {
	return &Observer{
		state: State{
			IsOnline:   online,
			SyncStatus: syncpkg.StatusIdle,
		},
		transitions: make(chan Transition, 1),
		subs:        make(map[int]chan State),
		clock:       time.Now,
	}
}

// offer sends v without blocking, replacing an unread value.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// publish must be called with mu held.
func (o *Observer) publish() {
	snapshot := o.snapshot()
	for _, ch := range o.subs {
		offer(ch, snapshot)
	}
}

func (o *Observer) snapshot() State {
	s := o.state
	if s.LastSyncTime != nil {
		t := *s.LastSyncTime
		s.LastSyncTime = &t
	}
	return s
}

// SetOnline records a platform connectivity signal. Repeated signals with
// the same value are ignored.
func (o *Observer) SetOnline(online bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.IsOnline == online {
		return
	}
	o.state.IsOnline = online
	if online {
		o.state.SyncStatus = syncpkg.StatusSyncing
	} else {
		o.state.SyncStatus = syncpkg.StatusIdle
	}

	logging.Info("Connectivity changed", map[string]interface{}{
		"online": online,
	})

	offer(o.transitions, Transition{Online: online, At: o.clock()})
	o.publish()
}

// Transitions returns the transition stream. Only the latest unread
// transition is kept.
func (o *Observer) Transitions() <-chan Transition {
	return o.transitions
}

// Subscribe returns a stream of state snapshots, starting with the current
// one, and a function that ends the subscription. A slow reader only sees
// the latest snapshot.
func (o *Observer) Subscribe() (<-chan State, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextSub
	o.nextSub++
	ch := make(chan State, 1)
	ch <- o.snapshot()
	o.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			close(ch)
		})
	}
}

// Update applies fn to the state and publishes the result once.
func (o *Observer) Update(fn func(s *State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.state)
	o.publish()
}

// SetSyncStatus sets the sync status.
func (o *Observer) SetSyncStatus(status syncpkg.Status) {
	o.Update(func(s *State) { s.SyncStatus = status })
}

// SetPendingCount sets the number of pending queue entries.
func (o *Observer) SetPendingCount(n int) {
	o.Update(func(s *State) { s.PendingChangesCount = n })
}

// SetSyncError sets the last sync error; an empty message clears it.
func (o *Observer) SetSyncError(msg string) {
	o.Update(func(s *State) { s.SyncError = msg })
}

// SetLastSyncTime sets the time of the last sync attempt.
func (o *Observer) SetLastSyncTime(t time.Time) {
	o.Update(func(s *State) { s.LastSyncTime = &t })
}

// IsOnline reports the current reachability.
func (o *Observer) IsOnline() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.IsOnline
}

// State returns a copy of the current state.
func (o *Observer) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot()
}
