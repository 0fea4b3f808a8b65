// Package dbtest opens a migrated SQLite database for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ehr/hms/internal/platform/db"
	"github.com/ehr/hms/internal/platform/persistence"
)

// NewSQLite returns a store over a fresh, fully migrated database file in
// t's temp dir. The store is closed when the test ends.
func NewSQLite(t testing.TB) *db.SQLiteStore {
	t.Helper()
	store, err := db.OpenSQLite(filepath.Join(t.TempDir(), "hms.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(store.Close)

	if _, err := db.NewMigrator(store, db.Migrations(persistence.SQLite)).Up(context.Background()); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return store
}
