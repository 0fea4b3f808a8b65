package persistence

import (
	"context"
	"fmt"
)

// Repository gives typed access to one table through a session. Every read
// sees live rows only; writes are staged until the session completes.
type Repository[T any] struct {
	s     *Session
	table *Table[T]
}

// NewRepository binds table to session s.
func NewRepository[T any](s *Session, table *Table[T]) *Repository[T] {
	return &Repository[T]{s: s, table: table}
}

// GetByID returns the live row with the given id, or ErrNotFound.
func (r *Repository[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	rows, err := r.load(ctx, newSelect(r.table.Name(), r.table.selectColumns()).filter(Eq("id", id)).page(1, 0))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s %d: %w", r.table.EntityName(), id, ErrNotFound)
	}
	return rows[0], nil
}

// GetAll returns every live row in storage order.
func (r *Repository[T]) GetAll(ctx context.Context) ([]*T, error) {
	return r.Find(ctx)
}

// Find returns live rows matching all filters.
func (r *Repository[T]) Find(ctx context.Context, filters ...Filter) ([]*T, error) {
	return r.load(ctx, newSelect(r.table.Name(), r.table.selectColumns()).filter(filters...))
}

// FindPage returns one ordered page of live rows matching p.Filters, plus the
// total number of matches.
func (r *Repository[T]) FindPage(ctx context.Context, p Page) ([]*T, int, error) {
	q, err := r.s.reader(ctx)
	if err != nil {
		return nil, 0, err
	}
	sq := newSelect(r.table.Name(), r.table.selectColumns()).filter(p.Filters...)
	if err := sq.order(r.table.hasColumn, p.OrderBy...); err != nil {
		return nil, 0, err
	}
	total, err := countRows(ctx, q, r.s.store.Dialect(), sq)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.load(ctx, sq.page(p.Limit, p.Offset))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// FindOrdered is Find with an ORDER BY.
func (r *Repository[T]) FindOrdered(ctx context.Context, orderBy []string, filters ...Filter) ([]*T, error) {
	sq := newSelect(r.table.Name(), r.table.selectColumns()).filter(filters...)
	if err := sq.order(r.table.hasColumn, orderBy...); err != nil {
		return nil, err
	}
	return r.load(ctx, sq)
}

// Count returns the number of live rows matching all filters.
func (r *Repository[T]) Count(ctx context.Context, filters ...Filter) (int, error) {
	q, err := r.s.reader(ctx)
	if err != nil {
		return 0, err
	}
	return countRows(ctx, q, r.s.store.Dialect(), newSelect(r.table.Name(), nil).filter(filters...))
}

// Any reports whether a live row matches all filters.
func (r *Repository[T]) Any(ctx context.Context, filters ...Filter) (bool, error) {
	q, err := r.s.reader(ctx)
	if err != nil {
		return false, err
	}
	sql, args := newSelect(r.table.Name(), []string{"1"}).filter(filters...).page(1, 0).sql(r.s.store.Dialect())
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return false, storageErr("query "+r.table.Name(), err)
	}
	defer rows.Close()
	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, storageErr("query "+r.table.Name(), err)
	}
	return found, nil
}

// Add stages entity for insertion. Its ID is assigned by Complete.
func (r *Repository[T]) Add(entity *T) {
	r.s.stageAdd(r.table, entity)
}

// Update stages changes made to an entity this session tracks. Entities
// with no changed values are skipped at commit.
func (r *Repository[T]) Update(entity *T) error {
	return r.s.stageUpdate(r.table, entity)
}

// Delete stages physical removal of a tracked entity.
func (r *Repository[T]) Delete(entity *T) error {
	return r.s.stageDelete(r.table, entity)
}

// SoftDelete marks the row deleted and stages the update. Rows already
// marked deleted are marked again, so every call yields its own Modified
// audit record.
func (r *Repository[T]) SoftDelete(ctx context.Context, id int64) error {
	rows, err := r.load(ctx, newUnscopedSelect(r.table.Name(), r.table.selectColumns()).filter(Eq("id", id)).page(1, 0))
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s %d: %w", r.table.EntityName(), id, ErrNotFound)
	}
	b := r.table.base(rows[0])
	now := r.s.now()
	b.IsDeleted = true
	b.ModifiedAt = &now
	return r.s.stageUpdate(r.table, rows[0])
}

func (r *Repository[T]) load(ctx context.Context, sq *selectQuery) ([]*T, error) {
	q, err := r.s.reader(ctx)
	if err != nil {
		return nil, err
	}
	sql, args := sq.sql(r.s.store.Dialect())
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, storageErr("query "+r.table.Name(), err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		e, dest := r.table.scanTarget()
		if err := rows.Scan(dest...); err != nil {
			return nil, storageErr("scan "+r.table.Name(), err)
		}
		out = append(out, r.s.attach(r.table, e).(*T))
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate "+r.table.Name(), err)
	}
	return out, nil
}

func countRows(ctx context.Context, q Querier, d Dialect, sq *selectQuery) (int, error) {
	sql, args := sq.countSQL(d)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return 0, storageErr("count "+sq.table, err)
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, storageErr("count "+sq.table, err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, storageErr("count "+sq.table, err)
	}
	return int(n), nil
}
