// Package scheduler runs sync sessions when the device comes online, on a
// timer, and on request.
package scheduler

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/logging"
	syncpkg "github.com/kshitijomkar/ledger/internal/sync"
	"github.com/kshitijomkar/ledger/internal/sync/connectivity"
	"github.com/kshitijomkar/ledger/internal/sync/queue"
)

// Scheduler is the orchestrator loop between the connectivity observer and
// the sync engine. Every sync it starts runs on the loop goroutine, so
// sessions never overlap.
type Scheduler struct {
	engine   syncpkg.SyncEngineInterface
	observer *connectivity.Observer
	queue    *queue.Queue

	syncInterval  time.Duration
	pruneInterval time.Duration
	retention     time.Duration
	syncTimeout   time.Duration
	retryBase     time.Duration
	retryMax      time.Duration
	now           func() time.Time

	trigger  chan struct{}
	requests chan chan *syncpkg.Result
	stopCh   chan struct{}
	wg       sync.WaitGroup

	mu             sync.RWMutex
	isRunning      bool
	syncInProgress bool
	lastSyncTime   time.Time
	lastResult     *syncpkg.Result
	failures       int
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	SyncInterval  time.Duration // How often to sync while online (default: 15 minutes)
	PruneInterval time.Duration // How often to prune acknowledged queue entries (default: 1 hour)
	Retention     time.Duration // How long acknowledged entries are kept (default: 30 days)
	SyncTimeout   time.Duration // Upper bound of one sync session (default: 5 minutes)
	RetryBase     time.Duration // First retry delay after a failed sync (default: 1 minute)
	RetryMax      time.Duration // Retry delay cap (default: 1 hour)
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		SyncInterval:  15 * time.Minute,
		PruneInterval: 1 * time.Hour,
		Retention:     30 * 24 * time.Hour,
		SyncTimeout:   5 * time.Minute,
		RetryBase:     1 * time.Minute,
		RetryMax:      1 * time.Hour,
	}
}

// NewScheduler creates a new Scheduler. q may be nil, which disables
// pruning.
func NewScheduler(engine syncpkg.SyncEngineInterface, observer *connectivity.Observer, q *queue.Queue, config *SchedulerConfig) *Scheduler {
	defaults := DefaultSchedulerConfig()
	if config == nil {
		config = defaults
	}
	orDefault := func(v, d time.Duration) time.Duration {
		if v <= 0 {
			return d
		}
		return v
	}

	return &Scheduler{
		engine:        engine,
		observer:      observer,
		queue:         q,
		syncInterval:  orDefault(config.SyncInterval, defaults.SyncInterval),
		pruneInterval: orDefault(config.PruneInterval, defaults.PruneInterval),
		retention:     orDefault(config.Retention, defaults.Retention),
		syncTimeout:   orDefault(config.SyncTimeout, defaults.SyncTimeout),
		retryBase:     orDefault(config.RetryBase, defaults.RetryBase),
		retryMax:      orDefault(config.RetryMax, defaults.RetryMax),
		now:           time.Now,
		trigger:       make(chan struct{}, 1),
		requests:      make(chan chan *syncpkg.Result),
	}
}

// Start starts the background loops.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	stop := make(chan struct{})
	s.stopCh = stop
	s.mu.Unlock()

	s.wg.Add(1)
	go s.syncLoop(ctx, stop)

	if s.queue != nil {
		s.wg.Add(1)
		go s.pruneLoop(ctx, stop)
	}

	logging.Info("Background sync scheduler started", map[string]interface{}{
		"interval_minutes": s.syncInterval.Minutes(),
	})
}

// Stop stops the background loops and waits for a running sync to end.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	logging.Info("Background sync scheduler stopped", nil)
}

// syncLoop consumes connectivity transitions, the periodic ticker, retry
// timers and sync requests.
func (s *Scheduler) syncLoop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	var retry <-chan time.Time
	run := func(reason string) *syncpkg.Result {
		res := s.runSync(ctx, reason)
		if next, changed := s.nextRetry(res); changed {
			retry = next
		}
		return res
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case tr := <-s.observer.Transitions():
			if !tr.Online {
				retry = nil
				continue
			}
			run("connectivity")
		case <-ticker.C:
			run("periodic")
		case <-retry:
			retry = nil
			run("retry")
		case <-s.trigger:
			run("requested")
		case reply := <-s.requests:
			reply <- run("requested")
		}
	}
}

// nextRetry returns the retry timer to use after res and whether it
// replaces the current one.
func (s *Scheduler) nextRetry(res *syncpkg.Result) (<-chan time.Time, bool) {
	if res == nil || res.Skipped {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if res.Success {
		s.failures = 0
		return nil, true
	}
	delay := retryDelay(s.retryBase, s.retryMax, s.failures)
	s.failures++

	logging.Info("Sync retry scheduled", map[string]interface{}{
		"failures":      s.failures,
		"delay_seconds": delay.Seconds(),
	})
	return time.After(delay), true
}

// retryDelay returns base doubled once per earlier failure, capped at max.
func retryDelay(base, max time.Duration, failures int) time.Duration {
	d := base
	for i := 0; i < failures && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	return d
}

// runSync executes a sync session and publishes its outcome to the
// observer. It returns nil when the device is offline.
func (s *Scheduler) runSync(ctx context.Context, reason string) *syncpkg.Result {
	if !s.observer.IsOnline() {
		logging.Debug("Skipping sync - device is offline", map[string]interface{}{"reason": reason})
		return nil
	}

	s.mu.Lock()
	s.syncInProgress = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncInProgress = false
		s.mu.Unlock()
	}()

	s.observer.SetSyncStatus(syncpkg.StatusSyncing)

	syncCtx, cancel := context.WithTimeout(ctx, s.syncTimeout)
	defer cancel()

	res := s.engine.FullSync(syncCtx)
	if res == nil || res.Skipped {
		s.observer.SetSyncStatus(s.engine.Status())
		return res
	}

	s.publish(ctx, res)

	s.mu.Lock()
	s.lastSyncTime = s.now()
	s.lastResult = res
	s.mu.Unlock()

	if !res.Success {
		logging.ErrorWithCode("Scheduled sync failed", string(apperrors.ErrTransport), s.engine.LastError(),
			map[string]interface{}{"reason": reason})
		return res
	}

	logging.Info("Scheduled sync completed", map[string]interface{}{
		"reason":    reason,
		"pulled":    res.Pulled,
		"pushed":    res.Pushed,
		"conflicts": res.Conflicts,
	})
	return res
}

// publish writes the outcome of res to the observer in one update.
func (s *Scheduler) publish(ctx context.Context, res *syncpkg.Result) {
	pending, err := s.engine.PendingChanges(ctx)
	if err != nil {
		logging.Error("Failed to count pending changes", err)
	}
	lastSync := s.engine.LastSync()

	s.observer.Update(func(st *connectivity.State) {
		if res.Success {
			// Failed batches of an otherwise successful sync are reported
			// in SyncError and retried by the next sync.
			st.SyncStatus = syncpkg.StatusIdle
			st.SyncError = res.Error
		} else {
			st.SyncStatus = syncpkg.StatusError
			st.SyncError = res.Error
		}
		if err == nil {
			st.PendingChangesCount = pending
		}
		if lastSync != nil {
			st.LastSyncTime = lastSync
		}
	})
}

// pruneLoop removes acknowledged queue entries past the retention period.
func (s *Scheduler) pruneLoop(ctx context.Context, stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.prune(ctx)
		}
	}
}

func (s *Scheduler) prune(ctx context.Context) int64 {
	n, err := s.queue.Prune(ctx, s.now().Add(-s.retention))
	if err != nil {
		logging.Error("Failed to prune change queue", err)
		return 0
	}
	return n
}

// TriggerSync requests a sync from the loop without waiting for it.
// Requests made while one is already waiting are coalesced; it returns
// false in that case.
func (s *Scheduler) TriggerSync() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// SyncNow runs a sync and waits for its result. When the loop is running
// the sync runs on it; otherwise it runs on the caller's goroutine.
func (s *Scheduler) SyncNow(ctx context.Context) (*syncpkg.Result, error) {
	if !s.observer.IsOnline() {
		return nil, apperrors.New(apperrors.ErrTransport, "remote authority is unreachable")
	}

	s.mu.RLock()
	running, stopCh := s.isRunning, s.stopCh
	s.mu.RUnlock()

	var res *syncpkg.Result
	if running {
		reply := make(chan *syncpkg.Result, 1)
		select {
		case s.requests <- reply:
		case <-stopCh:
			return nil, apperrors.New(apperrors.ErrInternal, "scheduler stopped")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		select {
		case res = <-reply:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else {
		res = s.runSync(ctx, "requested")
	}

	if res == nil {
		return nil, apperrors.New(apperrors.ErrTransport, "remote authority is unreachable")
	}
	if res.Skipped {
		return res, apperrors.New(apperrors.ErrSyncInProgress, "sync already in progress")
	}
	return res, nil
}

// SchedulerStatus is a snapshot of the scheduler and observer state.
type SchedulerStatus struct {
	IsRunning           bool               `json:"is_running"`
	SyncInProgress      bool               `json:"sync_in_progress"`
	LastSyncTime        *time.Time         `json:"last_sync_time,omitempty"`
	ConsecutiveFailures int                `json:"consecutive_failures"`
	LastResult          *syncpkg.Result    `json:"last_result,omitempty"`
	State               connectivity.State `json:"state"`
}

// Status returns the current status of the scheduler.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		IsRunning:           s.isRunning,
		SyncInProgress:      s.syncInProgress,
		ConsecutiveFailures: s.failures,
		LastResult:          s.lastResult,
		State:               s.observer.State(),
	}
	if !s.lastSyncTime.IsZero() {
		t := s.lastSyncTime
		status.LastSyncTime = &t
	}
	return status
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
