package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/models"
)

var syncedAt = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

func getCustomer(t *testing.T, s *Store, id string) *models.Customer {
	t.Helper()
	rec, err := s.Get(context.Background(), models.TableCustomers, id)
	require.NoError(t, err)
	c, ok := rec.(*models.Customer)
	require.True(t, ok, "got %T", rec)
	return c
}

func TestStore_MarkRecordSynced(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := customer("c1", "Asha")
	c.CreatedLocally = true
	c.SyncError = "earlier failure"
	require.NoError(t, s.Put(ctx, c))

	ok, err := s.MarkRecordSynced(ctx, models.TableCustomers, "c1", 1, syncedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	got := getCustomer(t, s, "c1")
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, models.SyncStatusSynced, got.SyncStatus)
	assert.Equal(t, "c1", got.ServerID)
	assert.False(t, got.CreatedLocally)
	assert.Empty(t, got.SyncError)
	assert.Equal(t, 1, got.Version)
	require.NotNil(t, got.LastSyncAttempt)
	assert.True(t, syncedAt.Equal(*got.LastSyncAttempt))

	synced, err := s.QueryByIndex(ctx, models.TableCustomers, models.IndexSyncStatus, string(models.SyncStatusSynced))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, recordIDs(synced))
}

func TestStore_MarkRecordSyncedKeepsServerID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := customer("c1", "Asha")
	c.ServerID = "srv-1"
	require.NoError(t, s.Put(ctx, c))

	_, err := s.MarkRecordSynced(ctx, models.TableCustomers, "c1", 0, syncedAt)
	require.NoError(t, err)

	assert.Equal(t, "srv-1", getCustomer(t, s, "c1").ServerID)
}

func TestStore_MarkRecordSyncedSkipsNewerVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := customer("c1", "Asha Rao")
	c.Version = 2
	require.NoError(t, s.Put(ctx, c))

	ok, err := s.MarkRecordSynced(ctx, models.TableCustomers, "c1", 1, syncedAt)
	require.NoError(t, err)
	assert.False(t, ok)

	got := getCustomer(t, s, "c1")
	assert.Equal(t, "Asha Rao", got.Name)
	assert.Equal(t, models.SyncStatusPending, got.SyncStatus)
	assert.Empty(t, got.ServerID)
}

func TestStore_MarkRecordSyncedSkipsPendingEntries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, customer("c1", "Asha")))
	require.NoError(t, s.InsertQueueEntry(ctx, queueEntry("q1", models.TableCustomers, "c1", syncedAt)))

	ok, err := s.MarkRecordSynced(ctx, models.TableCustomers, "c1", 1, syncedAt)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, models.SyncStatusPending, getCustomer(t, s, "c1").SyncStatus)

	require.NoError(t, s.MarkQueueSynced(ctx, []string{"q1"}, syncedAt))
	ok, err = s.MarkRecordSynced(ctx, models.TableCustomers, "c1", 1, syncedAt)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_MarkRecordSyncedMissingRecord(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.MarkRecordSynced(context.Background(), models.TableCustomers, "nope", 1, syncedAt)

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_MarkRecordError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Put(ctx, customer("c1", "Asha")))

	require.NoError(t, s.MarkRecordError(ctx, models.TableCustomers, "c1", "connection reset", syncedAt))

	got := getCustomer(t, s, "c1")
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, models.SyncStatusError, got.SyncStatus)
	assert.Equal(t, "connection reset", got.SyncError)
	require.NotNil(t, got.LastSyncAttempt)

	failed, err := s.QueryByIndex(ctx, models.TableCustomers, models.IndexSyncStatus, string(models.SyncStatusError))
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, recordIDs(failed))
}

func TestStore_SyncStateRejectsUnknownTable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.MarkRecordSynced(ctx, "bogus", "c1", 1, syncedAt)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
	assert.True(t, apperrors.Is(s.MarkRecordError(ctx, models.TableSyncQueue, "c1", "x", syncedAt), apperrors.ErrInvalid))
}
