package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type state int

const (
	stateUnchanged state = iota
	stateAdded
	stateModified
	stateDeleted
)

// tracked is one entity known to a session. original holds the column
// values as last loaded or committed, in table column order.
type tracked struct {
	meta     tableMeta
	entity   any
	state    state
	original []any
}

type trackKey struct {
	table string
	id    int64
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the commit clock.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithMetrics records commit outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// Session is the unit of work: it owns one storage connection, tracks the
// entities its repositories load, buffers staged changes and writes them,
// together with their audit records, in a single atomic commit.
//
// A Session is not safe for concurrent use. Create one per request and
// Close it when done.
type Session struct {
	store     Store
	principal string
	now       func() time.Time
	metrics   *Metrics

	conn    Conn
	tx      Tx
	index   map[trackKey]*tracked
	pending []*tracked
	closed  bool
}

// NewSession starts a unit of work attributed to principal. No connection
// is taken from the store until the first read or commit.
func NewSession(store Store, principal string, opts ...Option) *Session {
	if principal == "" {
		principal = SystemPrincipal
	}
	s := &Session{
		store:     store,
		principal: principal,
		now:       Now,
		index:     make(map[trackKey]*tracked),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Principal returns the identity recorded as changedBy.
func (s *Session) Principal() string { return s.principal }

// AuditTrail returns a reader over committed audit records.
func (s *Session) AuditTrail() *AuditTrail { return &AuditTrail{s: s} }

// InTransaction reports whether an explicit transaction is open.
func (s *Session) InTransaction() bool { return s.tx != nil }

// HasChanges reports whether anything is staged.
func (s *Session) HasChanges() bool { return len(s.pending) > 0 }

func (s *Session) connection(ctx context.Context) (Conn, error) {
	if s.conn != nil {
		return s.conn, nil
	}
	conn, err := s.store.Acquire(ctx)
	if err != nil {
		return nil, storageErr("acquire connection", err)
	}
	s.conn = conn
	return conn, nil
}

// reader returns the querier reads must go through: the open transaction
// if there is one, otherwise the session connection.
func (s *Session) reader(ctx context.Context) (Querier, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.tx != nil {
		return s.tx, nil
	}
	return s.connection(ctx)
}

// attach registers a freshly scanned entity, or returns the instance the
// session already tracks for the same row.
func (s *Session) attach(meta tableMeta, fresh any) any {
	key := trackKey{meta.Name(), meta.identity(fresh).ID}
	if tr, ok := s.index[key]; ok {
		return tr.entity
	}
	s.index[key] = &tracked{meta: meta, entity: fresh, original: meta.values(fresh)}
	return fresh
}

func (s *Session) lookup(meta tableMeta, entity any) *tracked {
	if id := meta.identity(entity).ID; id != 0 {
		if tr, ok := s.index[trackKey{meta.Name(), id}]; ok && tr.entity == entity {
			return tr
		}
	}
	for _, tr := range s.pending {
		if tr.entity == entity {
			return tr
		}
	}
	return nil
}

func (s *Session) stageAdd(meta tableMeta, entity any) {
	if s.lookup(meta, entity) != nil {
		return
	}
	s.pending = append(s.pending, &tracked{meta: meta, entity: entity, state: stateAdded})
}

func (s *Session) stageUpdate(meta tableMeta, entity any) error {
	tr := s.lookup(meta, entity)
	if tr == nil {
		return fmt.Errorf("update %s: %w", meta.EntityName(), ErrDetached)
	}
	if tr.state == stateUnchanged {
		tr.state = stateModified
		s.pending = append(s.pending, tr)
	}
	return nil
}

func (s *Session) stageDelete(meta tableMeta, entity any) error {
	tr := s.lookup(meta, entity)
	if tr == nil {
		return fmt.Errorf("delete %s: %w", meta.EntityName(), ErrDetached)
	}
	switch tr.state {
	case stateAdded:
		s.unstage(tr)
	case stateUnchanged:
		tr.state = stateDeleted
		s.pending = append(s.pending, tr)
	case stateModified:
		tr.state = stateDeleted
	}
	return nil
}

func (s *Session) unstage(tr *tracked) {
	for i, p := range s.pending {
		if p == tr {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// Complete writes every staged change and the audit records describing
// them as one atomic operation and returns the number of rows written.
// Inside an explicit transaction the writes become durable when
// CommitTransaction succeeds. On failure nothing from this call is applied
// and identities assigned during the attempt are reset.
//
// Once started, the write is not cancelled by ctx.
func (s *Session) Complete(ctx context.Context) (int64, error) {
	if s.closed {
		return 0, ErrClosed
	}
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	n, changes, err := s.complete(ctx)
	s.metrics.ObserveCommit(start, err)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("principal", s.principal).
			Bool("in_transaction", s.tx != nil).
			Msg("unit of work commit failed")
		return 0, err
	}
	for _, c := range changes {
		s.metrics.IncAuditRecords(c.action)
	}
	if len(changes) > 0 {
		zerolog.Ctx(ctx).Debug().
			Int64("rows", n).
			Int("changes", len(changes)).
			Str("principal", s.principal).
			Msg("unit of work committed")
	}
	return n, nil
}

func (s *Session) complete(ctx context.Context) (int64, []*change, error) {
	if len(s.pending) == 0 {
		return 0, nil, nil
	}

	changes, err := captureChanges(s.pending, s.principal, s.now())
	if err != nil {
		return 0, nil, storageErr("capture audit", err)
	}
	if len(changes) == 0 {
		s.accept()
		return 0, nil, nil
	}

	conn, err := s.connection(ctx)
	if err != nil {
		for _, c := range changes {
			c.restore()
		}
		return 0, nil, err
	}

	var n int64
	if s.tx != nil {
		n, err = s.applyInSavepoint(ctx, changes)
	} else {
		n, err = s.applyInTx(ctx, conn, changes)
	}
	if err != nil {
		for _, c := range changes {
			c.restore()
		}
		return 0, nil, err
	}
	s.accept()
	return n, changes, nil
}

func (s *Session) applyInTx(ctx context.Context, conn Conn, changes []*change) (int64, error) {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, storageErr("begin", err)
	}
	n, err := s.apply(ctx, tx, changes)
	if err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		return 0, storageErr("complete", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, storageErr("commit", err)
	}
	return n, nil
}

const savepoint = "uow_complete"

func (s *Session) applyInSavepoint(ctx context.Context, changes []*change) (int64, error) {
	if _, err := s.tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
		return 0, storageErr("savepoint", err)
	}
	n, err := s.apply(ctx, s.tx, changes)
	if err != nil {
		if _, rbErr := s.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		return 0, storageErr("complete", err)
	}
	if _, err := s.tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		return 0, storageErr("release savepoint", err)
	}
	return n, nil
}

// apply writes entity rows first so inserted records have their identity
// before their Created audit rows are sent.
func (s *Session) apply(ctx context.Context, q Querier, changes []*change) (int64, error) {
	d := s.store.Dialect()
	var total int64
	for _, c := range changes {
		n, err := writeChange(ctx, q, d, c)
		if err != nil {
			return 0, err
		}
		total += n
	}
	for _, c := range changes {
		if c.action == ActionCreated {
			c.record.EntityID = c.entry.meta.identity(c.entry.entity).ID
		}
		n, err := insertAudit(ctx, q, d, c.record, c.oldJSON, c.newJSON)
		if err != nil {
			return 0, fmt.Errorf("insert audit record for %s %d: %w", c.record.EntityName, c.record.EntityID, err)
		}
		total += n
	}
	return total, nil
}

func writeChange(ctx context.Context, q Querier, d Dialect, c *change) (int64, error) {
	meta := c.entry.meta
	b := meta.identity(c.entry.entity)
	cols := meta.columnNames()
	vals := meta.values(c.entry.entity)

	switch c.action {
	case ActionCreated:
		names := make([]string, len(c.set))
		marks := make([]string, len(c.set))
		args := make([]any, len(c.set))
		for i, pos := range c.set {
			names[i], marks[i], args[i] = cols[pos], "?", vals[pos]
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
			meta.Name(), strings.Join(names, ", "), strings.Join(marks, ", "))
		rows, err := q.Query(ctx, d.Rebind(query), args...)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", meta.EntityName(), err)
		}
		if !rows.Next() {
			rows.Close()
			if err := rows.Err(); err != nil {
				return 0, fmt.Errorf("insert %s: %w", meta.EntityName(), err)
			}
			return 0, fmt.Errorf("insert %s: no identity returned", meta.EntityName())
		}
		if err := rows.Scan(&b.ID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("insert %s: scan identity: %w", meta.EntityName(), err)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("insert %s: %w", meta.EntityName(), err)
		}
		return 1, nil

	case ActionModified:
		sets := make([]string, len(c.set))
		args := make([]any, 0, len(c.set)+1)
		for i, pos := range c.set {
			sets[i] = cols[pos] + " = ?"
			args = append(args, vals[pos])
		}
		args = append(args, b.ID)
		query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", meta.Name(), strings.Join(sets, ", "))
		n, err := q.Exec(ctx, d.Rebind(query), args...)
		if err != nil {
			return 0, fmt.Errorf("update %s %d: %w", meta.EntityName(), b.ID, err)
		}
		if n == 0 {
			return 0, fmt.Errorf("update %s %d: %w", meta.EntityName(), b.ID, ErrNotFound)
		}
		return n, nil

	case ActionDeleted:
		n, err := q.Exec(ctx, d.Rebind("DELETE FROM "+meta.Name()+" WHERE id = ?"), b.ID)
		if err != nil {
			return 0, fmt.Errorf("delete %s %d: %w", meta.EntityName(), b.ID, err)
		}
		if n == 0 {
			return 0, fmt.Errorf("delete %s %d: %w", meta.EntityName(), b.ID, ErrNotFound)
		}
		return n, nil
	}
	return 0, nil
}

// accept folds a successful write back into the tracking state.
func (s *Session) accept() {
	for _, tr := range s.pending {
		key := trackKey{tr.meta.Name(), tr.meta.identity(tr.entity).ID}
		if tr.state == stateDeleted {
			delete(s.index, key)
			continue
		}
		tr.state = stateUnchanged
		tr.original = tr.meta.values(tr.entity)
		s.index[key] = tr
	}
	s.pending = nil
}

func (s *Session) reset() {
	s.index = make(map[trackKey]*tracked)
	s.pending = nil
}

// BeginTransaction opens an explicit transaction so several Complete calls
// become durable together. Nested transactions are rejected.
func (s *Session) BeginTransaction(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.tx != nil {
		return ErrTransactionInProgress
	}
	conn, err := s.connection(ctx)
	if err != nil {
		return err
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return storageErr("begin transaction", err)
	}
	s.tx = tx
	return nil
}

// CommitTransaction completes staged changes and commits the explicit
// transaction. Any failure rolls the whole transaction back.
func (s *Session) CommitTransaction(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if s.tx == nil {
		return ErrNoTransaction
	}
	if _, err := s.Complete(ctx); err != nil {
		if rbErr := s.RollbackTransaction(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(context.WithoutCancel(ctx)); err != nil {
		s.reset()
		return storageErr("commit transaction", err)
	}
	return nil
}

// RollbackTransaction discards the explicit transaction. Tracked entities
// are detached because their state may no longer match storage.
func (s *Session) RollbackTransaction(ctx context.Context) error {
	if s.tx == nil {
		return ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	s.reset()
	return storageErr("rollback transaction", tx.Rollback(context.WithoutCancel(ctx)))
}

// Close rolls back an open transaction and returns the connection to the
// store. Closing twice is a no-op.
func (s *Session) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.tx != nil {
		err = s.tx.Rollback(context.WithoutCancel(ctx))
		s.tx = nil
	}
	if s.conn != nil {
		s.conn.Release()
		s.conn = nil
	}
	s.reset()
	return storageErr("close", err)
}
