package db

import (
	"os"
	"path/filepath"
	"testing"
)

// TestOpen verifies database opening with proper configuration.
func TestOpen(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Open(tmpDir)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(tmpDir, FileName)); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	var walMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&walMode); err != nil {
		t.Fatalf("Failed to check WAL mode: %v", err)
	}
	if walMode != "wal" {
		t.Errorf("WAL mode not enabled, got: %s", walMode)
	}

	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("Failed to check foreign keys: %v", err)
	}
	if fkEnabled != 1 {
		t.Errorf("Foreign keys not enabled, got: %d", fkEnabled)
	}
}

// TestOpen_createsNestedDir verifies the data directory is created.
func TestOpen_createsNestedDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("data directory missing: %v", err)
	}
}

// TestMigrator_UpDown verifies the schema can be applied and rolled back.
func TestMigrator_UpDown(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	m := NewMigrator(db.DB)
	if err := m.Up(); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}

	v, err := m.CurrentVersion()
	if err != nil {
		t.Fatalf("CurrentVersion() failed: %v", err)
	}
	if v != 1 {
		t.Errorf("CurrentVersion() = %d, want 1", v)
	}

	// Up is idempotent
	if err := m.Up(); err != nil {
		t.Fatalf("second Up() failed: %v", err)
	}

	for _, table := range []string{"transactions", "customers", "suppliers", "reminders", "sync_queue", "metadata", "conflict_log"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	if err := m.Down(); err != nil {
		t.Fatalf("Down() failed: %v", err)
	}
	var n int
	db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'transactions'").Scan(&n)
	if n != 0 {
		t.Error("transactions table still present after Down()")
	}
}
