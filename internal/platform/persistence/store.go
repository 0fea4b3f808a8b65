package persistence

import (
	"context"
	"strconv"
	"strings"
)

// Rows is a forward-only result cursor.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Querier is satisfied by both a plain connection and an open transaction.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Tx is an open storage transaction.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Conn is a connection checked out of the store for the lifetime of one
// session.
type Conn interface {
	Querier
	Begin(ctx context.Context) (Tx, error)
	Release()
}

// Store is the storage engine boundary. Implementations live in
// internal/platform/db.
type Store interface {
	Acquire(ctx context.Context) (Conn, error)
	Dialect() Dialect
	Ping(ctx context.Context) error
	Close()
}

// Dialect selects the placeholder syntax of the engine. Every statement in
// this package is written with "?" markers and rebound before execution.
type Dialect int

const (
	Postgres Dialect = iota + 1
	SQLite
)

func (d Dialect) String() string {
	switch d {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "unknown"
	}
}

// Rebind rewrites "?" markers into the dialect's placeholder form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
