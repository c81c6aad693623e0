// Package scheduler tests for background sync scheduling functionality.
package scheduler

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kshitijomkar/ledger/internal/db"
	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/models"
	syncpkg "github.com/kshitijomkar/ledger/internal/sync"
	"github.com/kshitijomkar/ledger/internal/sync/connectivity"
	"github.com/kshitijomkar/ledger/internal/sync/queue"
)

var lastSync = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

// =====================================================
// Test Helpers
// =====================================================

func testConfig() *SchedulerConfig {
	return &SchedulerConfig{
		SyncInterval:  time.Hour,
		PruneInterval: time.Hour,
		Retention:     time.Hour,
		SyncTimeout:   time.Second,
		RetryBase:     10 * time.Millisecond,
		RetryMax:      40 * time.Millisecond,
	}
}

// createTestScheduler creates a scheduler over a mock engine. The scheduler
// is stopped before the mock controller verifies its expectations.
func createTestScheduler(t *testing.T, online bool, config *SchedulerConfig) (*syncpkg.MockSyncEngineInterface, *connectivity.Observer, *Scheduler) {
	t.Helper()
	ctrl := gomock.NewController(t)
	engine := syncpkg.NewMockSyncEngineInterface(ctrl)
	observer := connectivity.NewObserver(online)
	s := NewScheduler(engine, observer, nil, config)
	t.Cleanup(s.Stop)
	return engine, observer, s
}

// expectPublish allows the calls made while publishing a sync outcome.
func expectPublish(engine *syncpkg.MockSyncEngineInterface, pending int) {
	engine.EXPECT().PendingChanges(gomock.Any()).Return(pending, nil).AnyTimes()
	engine.EXPECT().LastSync().Return(&lastSync).AnyTimes()
	engine.EXPECT().LastError().Return(apperrors.New(apperrors.ErrTransport, "offline")).AnyTimes()
}

// =====================================================
// Configuration Tests
// =====================================================

// TestDefaultSchedulerConfig verifies default configuration.
func TestDefaultSchedulerConfig(t *testing.T) {
	config := DefaultSchedulerConfig()

	assert.Equal(t, 15*time.Minute, config.SyncInterval)
	assert.Equal(t, time.Hour, config.PruneInterval)
	assert.Equal(t, 30*24*time.Hour, config.Retention)
	assert.Equal(t, 5*time.Minute, config.SyncTimeout)
	assert.Equal(t, time.Minute, config.RetryBase)
	assert.Equal(t, time.Hour, config.RetryMax)
}

func TestNewScheduler_nilConfig(t *testing.T) {
	_, _, s := createTestScheduler(t, true, nil)

	assert.Equal(t, 15*time.Minute, s.syncInterval)
	assert.Equal(t, time.Minute, s.retryBase)
	assert.False(t, s.IsRunning())
}

func TestNewScheduler_zeroFieldsUseDefaults(t *testing.T) {
	_, _, s := createTestScheduler(t, true, &SchedulerConfig{SyncInterval: time.Second})

	assert.Equal(t, time.Second, s.syncInterval)
	assert.Equal(t, 5*time.Minute, s.syncTimeout)
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, time.Minute},
		{1, 2 * time.Minute},
		{3, 8 * time.Minute},
		{6, time.Hour},
		{100, time.Hour},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryDelay(time.Minute, time.Hour, tt.failures), "failures=%d", tt.failures)
	}
}

// =====================================================
// Lifecycle Tests
// =====================================================

func TestScheduler_StartStop(t *testing.T) {
	_, _, s := createTestScheduler(t, false, testConfig())

	s.Start(context.Background())
	s.Start(context.Background())
	assert.True(t, s.IsRunning())
	assert.True(t, s.Status().IsRunning)

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())

	s.Start(context.Background())
	assert.True(t, s.IsRunning())
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	_, _, s := createTestScheduler(t, false, testConfig())

	s.Stop()

	assert.False(t, s.IsRunning())
}

// =====================================================
// Sync Trigger Tests
// =====================================================

func TestScheduler_syncsWhenDeviceComesOnline(t *testing.T) {
	engine, observer, s := createTestScheduler(t, false, testConfig())
	expectPublish(engine, 2)
	var calls atomic.Int32
	engine.EXPECT().FullSync(gomock.Any()).DoAndReturn(func(context.Context) *syncpkg.Result {
		calls.Add(1)
		return &syncpkg.Result{Success: true, Pushed: 1}
	}).Times(1)

	s.Start(context.Background())

	observer.SetOnline(true)

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		st := observer.State()
		return st.SyncStatus == syncpkg.StatusIdle && st.PendingChangesCount == 2
	}, time.Second, 5*time.Millisecond)

	st := observer.State()
	assert.Empty(t, st.SyncError)
	require.NotNil(t, st.LastSyncTime)
	assert.True(t, st.LastSyncTime.Equal(lastSync))
	assert.NotNil(t, s.Status().LastSyncTime)
}

func TestScheduler_noPeriodicSyncWhileOffline(t *testing.T) {
	config := testConfig()
	config.SyncInterval = 5 * time.Millisecond
	engine, _, s := createTestScheduler(t, false, config)
	engine.EXPECT().FullSync(gomock.Any()).Times(0)

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()
}

func TestScheduler_periodicSyncWhileOnline(t *testing.T) {
	config := testConfig()
	config.SyncInterval = 5 * time.Millisecond
	engine, _, s := createTestScheduler(t, true, config)
	expectPublish(engine, 0)
	var calls atomic.Int32
	engine.EXPECT().FullSync(gomock.Any()).DoAndReturn(func(context.Context) *syncpkg.Result {
		calls.Add(1)
		return &syncpkg.Result{Success: true}
	}).MinTimes(2)

	s.Start(context.Background())

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestScheduler_failedSyncPublishesErrorAndRetries(t *testing.T) {
	config := testConfig()
	config.RetryBase = 200 * time.Millisecond
	config.RetryMax = time.Second
	engine, observer, s := createTestScheduler(t, true, config)
	expectPublish(engine, 4)
	var calls atomic.Int32
	engine.EXPECT().FullSync(gomock.Any()).DoAndReturn(func(context.Context) *syncpkg.Result {
		if calls.Add(1) == 1 {
			return &syncpkg.Result{Error: "[TRANSPORT_ERROR] pull changes: connection refused"}
		}
		return &syncpkg.Result{Success: true}
	}).Times(2)

	s.Start(context.Background())
	require.True(t, s.TriggerSync())

	require.Eventually(t, func() bool {
		return observer.State().SyncStatus == syncpkg.StatusError
	}, 150*time.Millisecond, 2*time.Millisecond)
	st := observer.State()
	assert.Contains(t, st.SyncError, "connection refused")
	assert.Equal(t, 4, st.PendingChangesCount)

	require.Eventually(t, func() bool {
		return calls.Load() == 2 &&
			observer.State().SyncStatus == syncpkg.StatusIdle &&
			s.Status().ConsecutiveFailures == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, observer.State().SyncError)
}

func TestScheduler_TriggerSyncCoalesces(t *testing.T) {
	_, _, s := createTestScheduler(t, true, testConfig())

	assert.True(t, s.TriggerSync())
	assert.False(t, s.TriggerSync())
}

// =====================================================
// SyncNow Tests
// =====================================================

func TestScheduler_SyncNow(t *testing.T) {
	tests := []struct {
		name  string
		start bool
	}{
		{"loop running", true},
		{"loop stopped", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, observer, s := createTestScheduler(t, true, testConfig())
			expectPublish(engine, 0)
			engine.EXPECT().FullSync(gomock.Any()).Return(&syncpkg.Result{Success: true, Pulled: 3})
			if tt.start {
				s.Start(context.Background())
			}

			res, err := s.SyncNow(context.Background())

			require.NoError(t, err)
			assert.Equal(t, 3, res.Pulled)
			assert.Equal(t, syncpkg.StatusIdle, observer.State().SyncStatus)
			assert.Same(t, res, s.Status().LastResult)
		})
	}
}

func TestScheduler_SyncNowPartialFailureKeepsError(t *testing.T) {
	engine, observer, s := createTestScheduler(t, true, testConfig())
	expectPublish(engine, 2)
	engine.EXPECT().FullSync(gomock.Any()).Return(&syncpkg.Result{
		Success:       true,
		Pushed:        2,
		FailedBatches: 1,
		Error:         "1 of 2 batches failed: connection reset",
	})

	res, err := s.SyncNow(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedBatches)
	st := observer.State()
	assert.Equal(t, syncpkg.StatusIdle, st.SyncStatus)
	assert.Equal(t, "1 of 2 batches failed: connection reset", st.SyncError)
	assert.Equal(t, 2, st.PendingChangesCount)
}

func TestScheduler_SyncNowOffline(t *testing.T) {
	engine, _, s := createTestScheduler(t, false, testConfig())
	engine.EXPECT().FullSync(gomock.Any()).Times(0)

	res, err := s.SyncNow(context.Background())

	assert.Nil(t, res)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransport))
}

func TestScheduler_SyncNowSkipped(t *testing.T) {
	engine, observer, s := createTestScheduler(t, true, testConfig())
	engine.EXPECT().FullSync(gomock.Any()).Return(&syncpkg.Result{Skipped: true})
	engine.EXPECT().Status().Return(syncpkg.StatusSyncing)

	res, err := s.SyncNow(context.Background())

	require.NotNil(t, res)
	assert.True(t, apperrors.Is(err, apperrors.ErrSyncInProgress))
	assert.Equal(t, syncpkg.StatusSyncing, observer.State().SyncStatus)
	assert.Nil(t, s.Status().LastResult)
}

// =====================================================
// Prune Tests
// =====================================================

func TestScheduler_prune(t *testing.T) {
	ctx := context.Background()
	conn, err := db.OpenAndMigrate(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	q := queue.New(db.NewStore(conn.DB))

	done, err := q.Enqueue(ctx, models.ActionCreate, models.TableCustomers, "c1", json.RawMessage(`{"id":"c1"}`))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, models.ActionCreate, models.TableCustomers, "c2", json.RawMessage(`{"id":"c2"}`))
	require.NoError(t, err)
	require.NoError(t, q.MarkSynced(ctx, []string{done.ID}))

	ctrl := gomock.NewController(t)
	s := NewScheduler(syncpkg.NewMockSyncEngineInterface(ctrl), connectivity.NewObserver(true), q, testConfig())
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	assert.EqualValues(t, 1, s.prune(ctx))

	entries, err := q.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "c2", entries[0].RecordID)
}
