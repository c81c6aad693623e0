package db

import (
	"database/sql"
	"embed"
	"sync"

	"github.com/pressly/goose/v3"

	apperrors "github.com/kshitijomkar/ledger/internal/errors"
	"github.com/kshitijomkar/ledger/internal/logging"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationDir = "migrations"

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// Migrator applies the embedded schema migrations.
type Migrator struct {
	db *sql.DB
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

func (m *Migrator) setup() error {
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(logging.Get())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "set migration dialect", err)
	}
	return nil
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := m.setup(); err != nil {
		return err
	}
	if err := goose.Up(m.db, migrationDir); err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "apply migrations", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down() error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := m.setup(); err != nil {
		return err
	}
	if err := goose.Down(m.db, migrationDir); err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "roll back migration", err)
	}
	return nil
}

// CurrentVersion returns the current schema version.
func (m *Migrator) CurrentVersion() (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := m.setup(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersion(m.db)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrMigration, "read schema version", err)
	}
	return v, nil
}
