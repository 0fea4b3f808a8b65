package db

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/ehr/hms/internal/platform/persistence"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	src := fstest.MapFS{
		"010_tables.sql": {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"005_middle.sql": {Data: []byte("SELECT 5;")},
		"README.md":      {Data: []byte("not a migration")},
		"notes.sql":      {Data: []byte("SELECT 0;")},
	}

	migrations, err := NewMigrator(nil, src).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 4 {
		t.Fatalf("expected 4 migrations, got %d", len(migrations))
	}
	want := []int{1, 2, 5, 10}
	for i, v := range want {
		if migrations[i].Version != v {
			t.Errorf("migration %d: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
	if migrations[0].Name != "001_first.sql" {
		t.Errorf("expected name 001_first.sql, got %s", migrations[0].Name)
	}
}

func TestBundledMigrations_BothDialects(t *testing.T) {
	for _, d := range []persistence.Dialect{persistence.Postgres, persistence.SQLite} {
		migrations, err := NewMigrator(nil, Migrations(d)).LoadMigrations()
		if err != nil {
			t.Fatalf("%s: LoadMigrations() error: %v", d, err)
		}
		if len(migrations) == 0 {
			t.Fatalf("%s: expected bundled migrations", d)
		}
		if migrations[0].Version != 1 {
			t.Errorf("%s: expected first version 1, got %d", d, migrations[0].Version)
		}
	}
}

func TestSplitStatements(t *testing.T) {
	src := `-- header comment
CREATE TABLE a (
    id INTEGER PRIMARY KEY
);

CREATE INDEX ix_a ON a (id);
SELECT 1`
	stmts := SplitStatements(src)
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (\n    id INTEGER PRIMARY KEY\n)" {
		t.Errorf("unexpected first statement: %q", stmts[0])
	}
	if stmts[1] != "CREATE INDEX ix_a ON a (id)" {
		t.Errorf("unexpected second statement: %q", stmts[1])
	}
	if stmts[2] != "SELECT 1" {
		t.Errorf("unexpected trailing statement: %q", stmts[2])
	}
}

func TestMigrator_UpIsIdempotent(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()
	m := NewMigrator(store, Migrations(persistence.SQLite))

	n, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("Up() error: %v", err)
	}
	if n == 0 {
		t.Fatal("expected at least one migration applied")
	}

	n, err = m.Up(ctx)
	if err != nil {
		t.Fatalf("second Up() error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 migrations on second run, got %d", n)
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	for _, st := range statuses {
		if !st.Applied || st.AppliedAt == nil {
			t.Errorf("expected %s to be applied", st.Name)
		}
	}
}

func TestMigrator_UpTo(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()
	src := fstest.MapFS{
		"001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER PRIMARY KEY);")},
		"002_b.sql": {Data: []byte("CREATE TABLE b (id INTEGER PRIMARY KEY);")},
	}
	m := NewMigrator(store, src)

	n, err := m.UpTo(ctx, 1)
	if err != nil {
		t.Fatalf("UpTo() error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 migration applied, got %d", n)
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied {
		t.Error("expected 001 applied")
	}
	if statuses[1].Applied {
		t.Error("expected 002 pending")
	}
}

func TestMigrator_FailedMigrationIsRolledBack(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()
	src := fstest.MapFS{
		"001_bad.sql": {Data: []byte("CREATE TABLE ok (id INTEGER PRIMARY KEY);\nCREATE TABLE broken (;")},
	}
	m := NewMigrator(store, src)

	if _, err := m.Up(ctx); err == nil {
		t.Fatal("expected error from broken migration")
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if statuses[0].Applied {
		t.Error("expected failed migration to stay pending")
	}

	conn, err := store.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer conn.Release()
	rows, err := conn.Query(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'ok'")
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	defer rows.Close()
	if rows.Next() {
		t.Error("expected table from failed migration to be rolled back")
	}
}
