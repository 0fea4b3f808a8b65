package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ehr/hms/internal/platform/persistence"
)

func init() {
	// SQLite's built-in lower() folds ASCII only. Replace it so LOWER(col)
	// folds the same way persistence filters fold their arguments.
	if err := sqlite.RegisterDeterministicScalarFunction("lower", 1, unicodeLower); err != nil {
		panic(fmt.Sprintf("register sqlite lower: %v", err))
	}
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// SQLiteStore is the embedded store used for local development and tests.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database file at path with
// foreign keys on and a busy timeout so concurrent sessions wait for the
// write lock instead of failing.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "hms.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Dialect() persistence.Dialect { return persistence.SQLite }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() { _ = s.db.Close() }

func (s *SQLiteStore) Acquire(ctx context.Context) (persistence.Conn, error) {
	c, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &sqliteConn{c: c}, nil
}

type sqliteConn struct {
	c *sql.Conn
}

func (c *sqliteConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return sqliteExec(c.c.ExecContext(ctx, query, args...))
}

func (c *sqliteConn) Query(ctx context.Context, query string, args ...any) (persistence.Rows, error) {
	return sqliteQuery(c.c.QueryContext(ctx, query, args...))
}

func (c *sqliteConn) Begin(ctx context.Context) (persistence.Tx, error) {
	tx, err := c.c.BeginTx(ctx, nil)
	if err != nil {
		return nil, translateSQLite(err)
	}
	return &sqliteTx{tx: tx}, nil
}

func (c *sqliteConn) Release() { _ = c.c.Close() }

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return sqliteExec(t.tx.ExecContext(ctx, query, args...))
}

func (t *sqliteTx) Query(ctx context.Context, query string, args ...any) (persistence.Rows, error) {
	return sqliteQuery(t.tx.QueryContext(ctx, query, args...))
}

func (t *sqliteTx) Commit(context.Context) error { return translateSQLite(t.tx.Commit()) }

func (t *sqliteTx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func sqliteExec(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, translateSQLite(err)
	}
	return res.RowsAffected()
}

func sqliteQuery(rows *sql.Rows, err error) (persistence.Rows, error) {
	if err != nil {
		return nil, translateSQLite(err)
	}
	return &sqliteRows{rows: rows}, nil
}

type sqliteRows struct {
	rows *sql.Rows
}

func (r *sqliteRows) Next() bool             { return r.rows.Next() }
func (r *sqliteRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *sqliteRows) Err() error             { return translateSQLite(r.rows.Err()) }
func (r *sqliteRows) Close()                 { _ = r.rows.Close() }

func translateSQLite(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %w", persistence.ErrConstraint, err)
	}
	return err
}
