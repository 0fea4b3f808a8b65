package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/hms/internal/platform/persistence"
)

// NewPool opens and pings a pgx connection pool.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// PGStore is the PostgreSQL store. Each session holds one pooled connection.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// OpenPostgres opens a pool and wraps it.
func OpenPostgres(ctx context.Context, databaseURL string, maxConns, minConns int32) (*PGStore, error) {
	pool, err := NewPool(ctx, databaseURL, maxConns, minConns)
	if err != nil {
		return nil, err
	}
	return NewPGStore(pool), nil
}

func (s *PGStore) Pool() *pgxpool.Pool { return s.pool }

func (s *PGStore) Dialect() persistence.Dialect { return persistence.Postgres }

func (s *PGStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PGStore) Close() { s.pool.Close() }

func (s *PGStore) Acquire(ctx context.Context) (persistence.Conn, error) {
	c, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pgConn{c: c}, nil
}

type pgConn struct {
	c *pgxpool.Conn
}

func (c *pgConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return pgExec(ctx, c.c, query, args...)
}

func (c *pgConn) Query(ctx context.Context, query string, args ...any) (persistence.Rows, error) {
	return pgQuery(ctx, c.c, query, args...)
}

func (c *pgConn) Begin(ctx context.Context) (persistence.Tx, error) {
	tx, err := c.c.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

func (c *pgConn) Release() { c.c.Release() }

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return pgExec(ctx, t.tx, query, args...)
}

func (t *pgTx) Query(ctx context.Context, query string, args ...any) (persistence.Rows, error) {
	return pgQuery(ctx, t.tx, query, args...)
}

func (t *pgTx) Commit(ctx context.Context) error { return translatePG(t.tx.Commit(ctx)) }

func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

// queryable is the subset of pgx shared by pooled connections and transactions.
type queryable interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func pgExec(ctx context.Context, q queryable, query string, args ...any) (int64, error) {
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, translatePG(err)
	}
	return tag.RowsAffected(), nil
}

func pgQuery(ctx context.Context, q queryable, query string, args ...any) (persistence.Rows, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, translatePG(err)
	}
	return &pgRows{rows: rows}, nil
}

type pgRows struct {
	rows pgx.Rows
}

func (r *pgRows) Next() bool             { return r.rows.Next() }
func (r *pgRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgRows) Err() error             { return translatePG(r.rows.Err()) }
func (r *pgRows) Close()                 { r.rows.Close() }

// translatePG marks integrity violations (SQLSTATE class 23) as
// persistence.ErrConstraint while keeping the driver error in the chain.
func translatePG(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "23" {
		return fmt.Errorf("%w: %s: %w", persistence.ErrConstraint, pgErr.ConstraintName, err)
	}
	return err
}
