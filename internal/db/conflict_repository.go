package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/models"
)

// =====================================================
// Conflict Log Operations
// =====================================================

const conflictColumns = `id, table_name, record_id, kind, conflict_fields, local, server,
	status, choice, detected_at, resolved_at`

// InsertConflict stores a new conflict log entry.
func (s *Store) InsertConflict(ctx context.Context, c *models.ConflictLog) error {
	fields, err := json.Marshal(nonNil(c.ConflictFields))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "encode conflict fields", err)
	}
	if c.Status == "" {
		c.Status = models.ConflictOpen
	}
	query := `
	INSERT INTO conflict_log (id, table_name, record_id, kind, conflict_fields, local, server,
		status, choice, detected_at, resolved_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		c.ID, string(c.Table), c.RecordID, string(c.Kind), string(fields),
		nullString(string(c.Local)), nullString(string(c.Server)),
		string(c.Status), nullString(string(c.Choice)),
		millis(c.DetectedAt), nullMillis(c.ResolvedAt))
	if err != nil {
		return apperrors.Storage("insert conflict", err)
	}
	return nil
}

// GetConflict retrieves a conflict log entry by id.
func (s *Store) GetConflict(ctx context.Context, id string) (*models.ConflictLog, error) {
	list, err := s.queryConflicts(ctx, "SELECT "+conflictColumns+" FROM conflict_log WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("conflict %s not found", id))
	}
	return list[0], nil
}

// ListConflicts returns conflicts with status in detection order. An empty
// status returns every conflict.
func (s *Store) ListConflicts(ctx context.Context, status models.ConflictStatus) ([]*models.ConflictLog, error) {
	if status == "" {
		return s.queryConflicts(ctx, "SELECT "+conflictColumns+" FROM conflict_log ORDER BY detected_at, rowid")
	}
	return s.queryConflicts(ctx,
		"SELECT "+conflictColumns+" FROM conflict_log WHERE status = ? ORDER BY detected_at, rowid",
		string(status))
}

// OpenConflictFor returns the open conflict of a record, or nil.
func (s *Store) OpenConflictFor(ctx context.Context, table models.Table, recordID string) (*models.ConflictLog, error) {
	query := "SELECT " + conflictColumns + ` FROM conflict_log
		WHERE table_name = ? AND record_id = ? AND status = ? ORDER BY detected_at DESC, rowid DESC LIMIT 1`
	list, err := s.queryConflicts(ctx, query, string(table), recordID, string(models.ConflictOpen))
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

// UpdateConflict replaces the mutable fields of a conflict log entry.
func (s *Store) UpdateConflict(ctx context.Context, c *models.ConflictLog) error {
	fields, err := json.Marshal(nonNil(c.ConflictFields))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "encode conflict fields", err)
	}
	query := `
	UPDATE conflict_log SET conflict_fields = ?, local = ?, server = ?, status = ?,
		choice = ?, resolved_at = ?
	WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query,
		string(fields), nullString(string(c.Local)), nullString(string(c.Server)),
		string(c.Status), nullString(string(c.Choice)), nullMillis(c.ResolvedAt), c.ID)
	if err != nil {
		return apperrors.Storage("update conflict", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("conflict %s not found", c.ID))
	}
	return nil
}

func (s *Store) queryConflicts(ctx context.Context, query string, args ...any) ([]*models.ConflictLog, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Storage("query conflicts", err)
	}
	defer rows.Close()

	var list []*models.ConflictLog
	for rows.Next() {
		var (
			c                           models.ConflictLog
			table, kind, status, fields string
			local, server, choice       sql.NullString
			detectedAt                  int64
			resolvedAt                  sql.NullInt64
		)
		err := rows.Scan(&c.ID, &table, &c.RecordID, &kind, &fields, &local, &server,
			&status, &choice, &detectedAt, &resolvedAt)
		if err != nil {
			return nil, apperrors.Storage("scan conflict", err)
		}
		if err := json.Unmarshal([]byte(fields), &c.ConflictFields); err != nil {
			return nil, apperrors.Storage("decode conflict fields", err)
		}
		c.Table = models.Table(table)
		c.Kind = models.ConflictKind(kind)
		c.Status = models.ConflictStatus(status)
		c.Choice = models.Choice(choice.String)
		if local.Valid {
			c.Local = json.RawMessage(local.String)
		}
		if server.Valid {
			c.Server = json.RawMessage(server.String)
		}
		c.DetectedAt = fromMillis(detectedAt)
		c.ResolvedAt = timePtr(resolvedAt)
		list = append(list, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage("query conflicts", err)
	}
	return list, nil
}

func nonNil(fields []string) []string {
	if fields == nil {
		return []string{}
	}
	return fields
}
