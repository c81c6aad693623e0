package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/models"
)

func TestConflicts_InsertAndResolve(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	detected := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

	c := &models.ConflictLog{
		ID:             "x1",
		Table:          models.TableTransactions,
		RecordID:       "t1",
		Kind:           models.ConflictUpdate,
		ConflictFields: []string{"amount"},
		Local:          json.RawMessage(`{"id":"t1","amount":"10"}`),
		Server:         json.RawMessage(`{"id":"t1","amount":"12"}`),
		DetectedAt:     detected,
	}
	require.NoError(t, s.InsertConflict(ctx, c))

	open, err := s.OpenConflictFor(ctx, models.TableTransactions, "t1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, []string{"amount"}, open.ConflictFields)
	assert.True(t, open.IsOpen())
	assert.JSONEq(t, `{"id":"t1","amount":"12"}`, string(open.Server))
	assert.True(t, detected.Equal(open.DetectedAt))

	resolvedAt := detected.Add(time.Hour)
	open.Status = models.ConflictResolved
	open.Choice = models.ChoiceLocal
	open.ResolvedAt = &resolvedAt
	require.NoError(t, s.UpdateConflict(ctx, open))

	none, err := s.OpenConflictFor(ctx, models.TableTransactions, "t1")
	require.NoError(t, err)
	assert.Nil(t, none)

	got, err := s.GetConflict(ctx, "x1")
	require.NoError(t, err)
	assert.Equal(t, models.ChoiceLocal, got.Choice)
	require.NotNil(t, got.ResolvedAt)
}

func TestConflicts_ListByStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	require.NoError(t, s.InsertConflict(ctx, &models.ConflictLog{ID: "a", Table: models.TableCustomers, RecordID: "c1", Kind: models.ConflictDelete, DetectedAt: now}))
	require.NoError(t, s.InsertConflict(ctx, &models.ConflictLog{ID: "b", Table: models.TableCustomers, RecordID: "c2", Kind: models.ConflictUpdate, Status: models.ConflictResolved, DetectedAt: now}))

	open, err := s.ListConflicts(ctx, models.ConflictOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "a", open[0].ID)
	assert.Empty(t, open[0].ConflictFields)
	assert.Nil(t, open[0].Server)

	all, err := s.ListConflicts(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestConflicts_Missing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetConflict(ctx, "nope")
	assert.True(t, apperrors.IsNotFound(err))

	err = s.UpdateConflict(ctx, &models.ConflictLog{ID: "nope"})
	assert.True(t, apperrors.IsNotFound(err))
}
