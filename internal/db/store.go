package db

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/models"
)

// Store provides record, metadata, queue and conflict persistence on one
// SQLite connection.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a new Store instance.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// =====================================================
// Record Operations
// =====================================================

// indexColumns returns the index columns stored beside the JSON document,
// excluding sync_status which every domain table carries.
func indexColumns(schema models.Schema) []string {
	cols := make([]string, 0, len(schema.Indexes))
	for _, idx := range schema.Indexes {
		if idx != models.IndexSyncStatus {
			cols = append(cols, idx)
		}
	}
	return cols
}

func domainSchema(table models.Table) (models.Schema, error) {
	schema, ok := models.SchemaFor(table)
	if !ok {
		return models.Schema{}, apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unknown record table %q", table))
	}
	return schema, nil
}

// Put inserts rec or replaces the stored record with the same id.
// A replaced record keeps its original position in GetAll.
func (s *Store) Put(ctx context.Context, rec models.Record) error {
	if rec == nil {
		return apperrors.New(apperrors.ErrInvalid, "record is nil")
	}
	schema, err := domainSchema(rec.Table())
	if err != nil {
		return err
	}
	if rec.RecordID() == "" {
		return apperrors.New(apperrors.ErrInvalid, "record id is required")
	}

	m := rec.Meta()
	if m.SyncStatus == "" {
		m.SyncStatus = models.SyncStatusPending
	}
	status := m.SyncStatus

	data, err := json.Marshal(rec)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "encode record", err)
	}

	cols := []string{"id", "data", "sync_status"}
	args := []any{rec.RecordID(), string(data), string(status)}
	for _, col := range indexColumns(schema) {
		v, _ := rec.IndexValue(col)
		cols = append(cols, col)
		args = append(args, v)
	}

	updates := make([]string, 0, len(cols)-1)
	for _, col := range cols[1:] {
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", col, col))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		schema.Table,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		strings.Join(updates, ", "),
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return apperrors.Storage(fmt.Sprintf("put %s/%s", schema.Table, rec.RecordID()), err)
	}
	return nil
}

// Get retrieves a record by id.
func (s *Store) Get(ctx context.Context, table models.Table, id string) (models.Record, error) {
	if _, err := domainSchema(table); err != nil {
		return nil, err
	}

	var data string
	query := fmt.Sprintf("SELECT data FROM %s WHERE id = ?", table)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.New(apperrors.ErrNotFound, fmt.Sprintf("%s/%s not found", table, id))
	}
	if err != nil {
		return nil, apperrors.Storage(fmt.Sprintf("get %s/%s", table, id), err)
	}
	return decodeStored(table, data)
}

// GetAll returns every record of table in insertion order.
func (s *Store) GetAll(ctx context.Context, table models.Table) ([]models.Record, error) {
	if _, err := domainSchema(table); err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT data FROM %s ORDER BY rowid", table)
	return s.queryRecords(ctx, table, query)
}

// QueryByIndex returns the records whose declared index attribute equals
// value, in insertion order.
func (s *Store) QueryByIndex(ctx context.Context, table models.Table, attribute, value string) ([]models.Record, error) {
	schema, err := domainSchema(table)
	if err != nil {
		return nil, err
	}
	if !schema.HasIndex(attribute) {
		return nil, apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("%s has no index %q", table, attribute))
	}
	query := fmt.Sprintf("SELECT data FROM %s WHERE %s = ? ORDER BY rowid", table, attribute)
	return s.queryRecords(ctx, table, query, value)
}

func (s *Store) queryRecords(ctx context.Context, table models.Table, query string, args ...any) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Storage(fmt.Sprintf("query %s", table), err)
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.Storage(fmt.Sprintf("scan %s", table), err)
		}
		docs = append(docs, data)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Storage(fmt.Sprintf("query %s", table), err)
	}

	records := make([]models.Record, 0, len(docs))
	for _, data := range docs {
		rec, err := decodeStored(table, data)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeStored(table models.Table, data string) (models.Record, error) {
	rec, err := models.DecodeRecord(table, []byte(data))
	if err != nil {
		return nil, apperrors.Storage("decode stored record", err)
	}
	return rec, nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (s *Store) Delete(ctx context.Context, table models.Table, id string) error {
	if _, err := domainSchema(table); err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", table)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return apperrors.Storage(fmt.Sprintf("delete %s/%s", table, id), err)
	}
	return nil
}

// Clear removes every row of a table. It is meant for diagnostics and
// resets; it bypasses the change queue.
func (s *Store) Clear(ctx context.Context, table models.Table) error {
	if !table.Valid() {
		return apperrors.New(apperrors.ErrInvalid, fmt.Sprintf("unknown table %q", table))
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
		return apperrors.Storage(fmt.Sprintf("clear %s", table), err)
	}
	return nil
}

// =====================================================
// Metadata Operations
// =====================================================

// GetMetadata returns the value stored under key and whether it exists.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.Storage(fmt.Sprintf("get metadata %s", key), err)
	}
	return value, true, nil
}

// SetMetadata stores value under key.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, s.now().UnixMilli()); err != nil {
		return apperrors.Storage(fmt.Sprintf("set metadata %s", key), err)
	}
	return nil
}

// GetTime reads a metadata key holding an RFC 3339 timestamp.
func (s *Store) GetTime(ctx context.Context, key string) (*time.Time, error) {
	value, ok, err := s.GetMetadata(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("metadata %s is not a timestamp", key), err)
	}
	return &t, nil
}

// SetTime stores t under key as an RFC 3339 timestamp.
func (s *Store) SetTime(ctx context.Context, key string, t time.Time) error {
	return s.SetMetadata(ctx, key, t.UTC().Format(time.RFC3339Nano))
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}
