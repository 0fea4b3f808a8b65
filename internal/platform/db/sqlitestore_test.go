package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/hms/internal/platform/persistence"
)

func TestSQLiteStore_ConstraintViolation(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	conn, err := store.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "CREATE TABLE u (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE)"); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := conn.Exec(ctx, "INSERT INTO u (name) VALUES (?)", "a"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err = conn.Exec(ctx, "INSERT INTO u (name) VALUES (?)", "a")
	if !errors.Is(err, persistence.ErrConstraint) {
		t.Fatalf("expected ErrConstraint, got %v", err)
	}
}

func TestSQLiteStore_LowerFoldsUnicode(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	conn, err := store.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer conn.Release()

	tests := []struct {
		in   any
		want any
	}{
		{"ÄRZTLICHE Leitung", "ärztliche leitung"},
		{"ÉCOLE", "école"},
		{"Doe", "doe"},
		{nil, nil},
	}
	for _, tt := range tests {
		rows, err := conn.Query(ctx, "SELECT LOWER(?)", tt.in)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		var got any
		if rows.Next() {
			if err := rows.Scan(&got); err != nil {
				t.Fatalf("scan: %v", err)
			}
		}
		rows.Close()
		if got != tt.want {
			t.Errorf("LOWER(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSQLiteStore_TxRollback(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	conn, err := store.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, "CREATE TABLE n (v INTEGER)"); err != nil {
		t.Fatalf("create table: %v", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error: %v", err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO n (v) VALUES (1)"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Errorf("second Rollback() should be a no-op, got %v", err)
	}

	rows, err := conn.Query(ctx, "SELECT COUNT(*) FROM n")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	defer rows.Close()
	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			t.Fatalf("scan: %v", err)
		}
	}
	if count != 0 {
		t.Errorf("expected 0 rows after rollback, got %d", count)
	}
}

func TestHealthHandler_SQLite(t *testing.T) {
	store := openTestSQLite(t)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := HealthHandler(store)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
	if body["driver"] != "sqlite" {
		t.Errorf("expected driver sqlite, got %v", body["driver"])
	}
	if _, ok := body["pool"]; ok {
		t.Error("expected no pool stats for sqlite")
	}
}

func TestHealthHandler_Closed(t *testing.T) {
	store := openTestSQLite(t)
	store.Close()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := HealthHandler(store)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestTranslatePG_PassesThroughOtherErrors(t *testing.T) {
	base := errors.New("boom")
	if got := translatePG(base); got != base {
		t.Errorf("expected error unchanged, got %v", got)
	}
	if translatePG(nil) != nil {
		t.Error("expected nil for nil")
	}
}
