package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/models"
)

// =====================================================
// Sync Queue Operations
// =====================================================

const queueColumns = `seq, id, action, table_name, record_id, data, status,
	attempt_count, last_error, created_at, synced_at`

// InsertQueueEntry appends entry to the queue and sets its Seq.
func (s *Store) InsertQueueEntry(ctx context.Context, entry *models.QueueEntry) error {
	if entry.Status == "" {
		entry.Status = models.QueueStatusPending
	}
	query := `
	INSERT INTO sync_queue (id, action, table_name, record_id, data, status,
		attempt_count, last_error, created_at, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		entry.ID, string(entry.Action), string(entry.Table), entry.RecordID,
		nullString(string(entry.Data)), string(entry.Status), entry.AttemptCount,
		nullString(entry.LastError), millis(entry.CreatedAt), nullMillis(entry.SyncedAt))
	if err != nil {
		return apperrors.Storage("insert queue entry", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return apperrors.Storage("read queue sequence", err)
	}
	entry.Seq = seq
	return nil
}

// QueueEntries returns entries with status in enqueue order. An empty
// status returns every entry.
func (s *Store) QueueEntries(ctx context.Context, status models.QueueStatus) ([]*models.QueueEntry, error) {
	if status == "" {
		return s.queryQueue(ctx, "SELECT "+queueColumns+" FROM sync_queue ORDER BY seq")
	}
	return s.queryQueue(ctx, "SELECT "+queueColumns+" FROM sync_queue WHERE status = ? ORDER BY seq", string(status))
}

// QueueEntriesForRecord returns the entries of one record with status in
// enqueue order.
func (s *Store) QueueEntriesForRecord(ctx context.Context, table models.Table, recordID string, status models.QueueStatus) ([]*models.QueueEntry, error) {
	query := "SELECT " + queueColumns + ` FROM sync_queue
		WHERE table_name = ? AND record_id = ? AND status = ? ORDER BY seq`
	return s.queryQueue(ctx, query, string(table), recordID, string(status))
}

// CountQueueEntries counts entries with status.
func (s *Store) CountQueueEntries(ctx context.Context, status models.QueueStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_queue WHERE status = ?", string(status)).Scan(&n)
	if err != nil {
		return 0, apperrors.Storage("count queue entries", err)
	}
	return n, nil
}

// MarkQueueSynced marks pending entries as acknowledged at syncedAt.
func (s *Store) MarkQueueSynced(ctx context.Context, ids []string, syncedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE sync_queue SET status = ?, synced_at = ?, last_error = NULL
		WHERE status = ? AND id IN (%s)`, placeholders(len(ids)))
	args := []any{string(models.QueueStatusSynced), millis(syncedAt), string(models.QueueStatusPending)}
	args = append(args, stringArgs(ids)...)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.Storage("mark queue entries synced", err)
	}
	return nil
}

// MarkQueueFailed records a failed attempt on pending entries.
func (s *Store) MarkQueueFailed(ctx context.Context, ids []string, lastError string) error {
	if len(ids) == 0 {
		return nil
	}
	query := fmt.Sprintf(`UPDATE sync_queue SET attempt_count = attempt_count + 1, last_error = ?
		WHERE status = ? AND id IN (%s)`, placeholders(len(ids)))
	args := []any{lastError, string(models.QueueStatusPending)}
	args = append(args, stringArgs(ids)...)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.Storage("mark queue entries failed", err)
	}
	return nil
}

// DiscardQueueEntries supersedes the pending entries of one record and
// returns how many were discarded.
func (s *Store) DiscardQueueEntries(ctx context.Context, table models.Table, recordID string) (int64, error) {
	query := `UPDATE sync_queue SET status = ?
		WHERE table_name = ? AND record_id = ? AND status = ?`
	res, err := s.db.ExecContext(ctx, query,
		string(models.QueueStatusDiscarded), string(table), recordID, string(models.QueueStatusPending))
	if err != nil {
		return 0, apperrors.Storage("discard queue entries", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteQueueEntriesBefore removes synced and discarded entries created
// before cutoff. Pending entries are never removed.
func (s *Store) DeleteQueueEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM sync_queue WHERE status IN (?, ?) AND created_at < ?`
	res, err := s.db.ExecContext(ctx, query,
		string(models.QueueStatusSynced), string(models.QueueStatusDiscarded), millis(cutoff))
	if err != nil {
		return 0, apperrors.Storage("prune queue entries", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) queryQueue(ctx context.Context, query string, args ...any) ([]*models.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Storage("query queue entries", err)
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		var (
			e                     models.QueueEntry
			action, table, status string
			data, lastError       sql.NullString
			createdAt             int64
			syncedAt              sql.NullInt64
		)
		err := rows.Scan(&e.Seq, &e.ID, &action, &table, &e.RecordID, &data, &status,
			&e.AttemptCount, &lastError, &createdAt, &syncedAt)
		if err != nil {
			return nil, apperrors.Storage("scan queue entry", err)
		}
		e.Action = models.Action(action)
		e.Table = models.Table(table)
		e.Status = models.QueueStatus(status)
		if data.Valid {
			e.Data = []byte(data.String)
		}
		e.LastError = lastError.String
		e.CreatedAt = fromMillis(createdAt)
		e.SyncedAt = timePtr(syncedAt)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("query queue entries", err)
	}
	return entries, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
