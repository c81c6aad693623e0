package db

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/models"
)

// The sync state of a stored record is changed with single UPDATE statements
// that touch only the metadata keys of its document, so a local edit that
// lands while a push is in flight is never overwritten by an older copy.

// MarkRecordSynced records that the server acknowledged the record. It only
// applies while no queue entry of the record is pending and, when version is
// positive, while the stored version is not newer than version. An empty
// server_id is set to the record id; an assigned one is kept. It reports
// whether the record was updated.
func (s *Store) MarkRecordSynced(ctx context.Context, table models.Table, id string, version int, at time.Time) (bool, error) {
	if _, err := domainSchema(table); err != nil {
		return false, err
	}

	query := fmt.Sprintf(`UPDATE %s SET
		sync_status = ?,
		data = json_remove(json_set(data,
			'$.sync_status', ?,
			'$.server_id', CASE WHEN coalesce(json_extract(data, '$.server_id'), '') = '' THEN id ELSE json_extract(data, '$.server_id') END,
			'$.created_locally', json('false'),
			'$.last_sync_attempt', ?), '$.sync_error')
		WHERE id = ?
		AND (? <= 0 OR json_extract(data, '$.version') <= ?)
		AND NOT EXISTS (
			SELECT 1 FROM sync_queue
			WHERE table_name = ? AND record_id = ? AND status = ?
		)`, table)

	synced := string(models.SyncStatusSynced)
	res, err := s.db.ExecContext(ctx, query,
		synced, synced, formatAttempt(at),
		id, version, version,
		string(table), id, string(models.QueueStatusPending))
	if err != nil {
		return false, apperrors.Storage(fmt.Sprintf("mark %s/%s synced", table, id), err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkRecordError records a failed push attempt on the record.
func (s *Store) MarkRecordError(ctx context.Context, table models.Table, id, message string, at time.Time) error {
	if _, err := domainSchema(table); err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET
		sync_status = ?,
		data = json_set(data,
			'$.sync_status', ?,
			'$.sync_error', ?,
			'$.last_sync_attempt', ?)
		WHERE id = ?`, table)

	failed := string(models.SyncStatusError)
	if _, err := s.db.ExecContext(ctx, query, failed, failed, message, formatAttempt(at), id); err != nil {
		return apperrors.Storage(fmt.Sprintf("mark %s/%s failed", table, id), err)
	}
	return nil
}

// formatAttempt renders t the way encoding/json renders a time.Time.
func formatAttempt(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
