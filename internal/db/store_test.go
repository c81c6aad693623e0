package db

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenAndMigrate(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db.DB)
}

func customer(id, name string) *models.Customer {
	c := &models.Customer{Party: models.Party{ID: id, Name: name}}
	c.SyncStatus = models.SyncStatusPending
	c.LocalID = id
	c.Version = 1
	return c
}

func transaction(id, partyID, date string, amount int64) *models.Transaction {
	tx := &models.Transaction{
		ID:      id,
		Type:    models.TransactionPayment,
		PartyID: partyID,
		Amount:  decimal.NewFromInt(amount),
		Date:    date,
	}
	tx.SyncStatus = models.SyncStatusSynced
	return tx
}

func recordIDs(records []models.Record) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.RecordID()
	}
	return ids
}

// =====================================================
// Record Tests
// =====================================================

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, customer("c1", "Asha")))

	rec, err := s.Get(ctx, models.TableCustomers, "c1")
	require.NoError(t, err)
	got, ok := rec.(*models.Customer)
	require.True(t, ok, "got %T", rec)
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, models.SyncStatusPending, got.SyncStatus)
	assert.Equal(t, 1, got.Version)
}

func TestStore_PutDefaultsStatusToPending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := &models.Customer{Party: models.Party{ID: "c1", Name: "Asha"}}
	require.NoError(t, s.Put(ctx, c))

	assert.Equal(t, models.SyncStatusPending, getCustomer(t, s, "c1").SyncStatus)

	pending, err := s.QueryByIndex(ctx, models.TableCustomers, models.IndexSyncStatus, string(models.SyncStatusPending))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.SyncStatusPending, pending[0].Meta().SyncStatus)
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), models.TableCustomers, "nope")

	assert.True(t, apperrors.IsNotFound(err))
}

func TestStore_PutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	c := customer("c1", "Asha")

	require.NoError(t, s.Put(ctx, c))
	require.NoError(t, s.Put(ctx, c))

	all, err := s.GetAll(ctx, models.TableCustomers)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_GetAllKeepsInsertionOrderOnReplace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, customer(id, id)))
	}
	require.NoError(t, s.Put(ctx, customer("a", "renamed")))

	all, err := s.GetAll(ctx, models.TableCustomers)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, recordIDs(all))
	assert.Equal(t, "renamed", all[0].(*models.Customer).Name)
}

func TestStore_QueryByIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Put(ctx, transaction("t1", "c1", "2024-01-01", 10)))
	require.NoError(t, s.Put(ctx, transaction("t2", "c2", "2024-01-01", 20)))
	require.NoError(t, s.Put(ctx, transaction("t3", "c1", "2024-01-02", 30)))

	tests := []struct {
		name      string
		attribute string
		value     string
		want      []string
	}{
		{"party", models.IndexPartyID, "c1", []string{"t1", "t3"}},
		{"date", models.IndexDate, "2024-01-01", []string{"t1", "t2"}},
		{"sync status", models.IndexSyncStatus, "synced", []string{"t1", "t2", "t3"}},
		{"no match", models.IndexPartyID, "zz", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryByIndex(ctx, models.TableTransactions, tt.attribute, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, recordIDs(got))
		})
	}
}

func TestStore_QueryByIndexRejectsUndeclared(t *testing.T) {
	s := newTestStore(t)

	_, err := s.QueryByIndex(context.Background(), models.TableCustomers, "party_id", "c1")

	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}

func TestStore_IndexFollowsReplace(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := customer("c1", "Asha")
	require.NoError(t, s.Put(ctx, c))
	c.SyncStatus = models.SyncStatusSynced
	require.NoError(t, s.Put(ctx, c))

	pending, err := s.QueryByIndex(ctx, models.TableCustomers, models.IndexSyncStatus, "pending")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Put(ctx, customer("c1", "Asha")))

	require.NoError(t, s.Delete(ctx, models.TableCustomers, "c1"))
	require.NoError(t, s.Delete(ctx, models.TableCustomers, "c1"))

	_, err := s.Get(ctx, models.TableCustomers, "c1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Put(ctx, customer("c1", "Asha")))
	require.NoError(t, s.SetMetadata(ctx, "k", "v"))

	require.NoError(t, s.Clear(ctx, models.TableCustomers))
	require.NoError(t, s.Clear(ctx, models.TableMetadata))

	all, err := s.GetAll(ctx, models.TableCustomers)
	require.NoError(t, err)
	assert.Empty(t, all)
	_, ok, err := s.GetMetadata(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.True(t, apperrors.Is(s.Clear(ctx, "bogus"), apperrors.ErrInvalid))
}

func TestStore_RejectsInvalidRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	assert.True(t, apperrors.Is(s.Put(ctx, nil), apperrors.ErrInvalid))
	assert.True(t, apperrors.Is(s.Put(ctx, customer("", "x")), apperrors.ErrInvalid))
	_, err := s.GetAll(ctx, models.TableSyncQueue)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}

func TestStore_ClosedDatabaseIsStorageError(t *testing.T) {
	db, err := OpenAndMigrate(t.TempDir())
	require.NoError(t, err)
	s := NewStore(db.DB)
	db.Close()

	err = s.Put(context.Background(), customer("c1", "Asha"))

	assert.True(t, apperrors.Is(err, apperrors.ErrStorage))
}

// =====================================================
// Metadata Tests
// =====================================================

func TestStore_Metadata(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, ok, err := s.GetMetadata(ctx, models.MetaLastSyncTime)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetMetadata(ctx, "device", "one"))
	require.NoError(t, s.SetMetadata(ctx, "device", "two"))

	v, ok, err := s.GetMetadata(ctx, "device")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "two", v)
}

func TestStore_TimeMetadata(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	at := time.Date(2024, 5, 6, 7, 8, 9, 123000000, time.UTC)

	missing, err := s.GetTime(ctx, models.MetaLastPullTime)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.SetTime(ctx, models.MetaLastPullTime, at))
	got, err := s.GetTime(ctx, models.MetaLastPullTime)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, at.Equal(*got))

	require.NoError(t, s.SetMetadata(ctx, "bad", "yesterday"))
	_, err = s.GetTime(ctx, "bad")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}
