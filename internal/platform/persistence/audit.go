package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

type Action string

const (
	ActionCreated  Action = "Created"
	ActionModified Action = "Modified"
	ActionDeleted  Action = "Deleted"
)

// AuditRecord is one committed mutation. OldValues is set for Modified and
// Deleted, NewValues for Created and Modified.
type AuditRecord struct {
	ID         int64          `json:"id"`
	EntityName string         `json:"entityName"`
	EntityID   int64          `json:"entityId"`
	Action     Action         `json:"action"`
	ChangedBy  string         `json:"changedBy"`
	ChangedAt  time.Time      `json:"changedAt"`
	OldValues  map[string]any `json:"oldValues,omitempty"`
	NewValues  map[string]any `json:"newValues,omitempty"`
}

const auditTable = "audit_logs"

var auditColumns = []string{
	"id", "entity_name", "entity_id", "action", "changed_by", "changed_at", "old_values", "new_values",
}

// change is a staged mutation together with the audit row captured for it.
type change struct {
	entry   *tracked
	action  Action
	set     []int
	record  AuditRecord
	oldJSON *string
	newJSON *string
	restore func()
}

// captureChanges is the pre-commit step: it stamps bookkeeping columns and
// builds one audit record per pending entry, in staging order. Entries
// whose values did not change produce nothing. On error every stamp already
// applied is undone.
func captureChanges(pending []*tracked, principal string, now time.Time) ([]*change, error) {
	out := make([]*change, 0, len(pending))
	for _, tr := range pending {
		c, err := captureOne(tr, principal, now)
		if err != nil {
			for _, done := range out {
				done.restore()
			}
			return nil, err
		}
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func captureOne(tr *tracked, principal string, now time.Time) (*change, error) {
	meta := tr.meta
	fields := meta.fieldNames()
	b := meta.identity(tr.entity)
	c := &change{entry: tr, restore: func() {}}

	switch tr.state {
	case stateAdded:
		prevBy, prevAt := b.CreatedBy, b.CreatedAt
		if b.CreatedBy == "" {
			b.CreatedBy = principal
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		c.restore = func() { b.CreatedBy, b.CreatedAt, b.ID = prevBy, prevAt, 0 }
		cur := meta.values(tr.entity)
		c.action = ActionCreated
		c.record.NewValues = make(map[string]any, len(cur))
		for i, v := range cur {
			c.record.NewValues[fields[i]] = auditValue(meta, i, v)
			c.set = append(c.set, i)
		}

	case stateDeleted:
		c.action = ActionDeleted
		c.record.OldValues = make(map[string]any, len(tr.original))
		for i, v := range tr.original {
			c.record.OldValues[fields[i]] = auditValue(meta, i, v)
		}

	case stateModified:
		cur := meta.values(tr.entity)
		var changed []int
		for i := range cur {
			if !sameValue(tr.original[i], cur[i]) {
				changed = append(changed, i)
			}
		}
		if len(changed) == 0 {
			return nil, nil
		}
		c.action = ActionModified
		c.record.OldValues = make(map[string]any, len(changed))
		c.record.NewValues = make(map[string]any, len(changed))
		for _, i := range changed {
			c.record.OldValues[fields[i]] = auditValue(meta, i, tr.original[i])
			c.record.NewValues[fields[i]] = auditValue(meta, i, cur[i])
		}

		// Stamps the caller did not set explicitly are bookkeeping: they are
		// written but equal ChangedBy/ChangedAt, so they stay out of the delta.
		prevBy, prevAt := b.ModifiedBy, b.ModifiedAt
		c.set = changed
		if !containsInt(changed, colModifiedBy) {
			p := principal
			b.ModifiedBy = &p
			c.set = append(c.set, colModifiedBy)
		}
		if !containsInt(changed, colModifiedAt) {
			t := now
			b.ModifiedAt = &t
			c.set = append(c.set, colModifiedAt)
		}
		c.restore = func() { b.ModifiedBy, b.ModifiedAt = prevBy, prevAt }

	default:
		return nil, nil
	}

	c.record.EntityName = meta.EntityName()
	c.record.EntityID = b.ID
	c.record.Action = c.action
	c.record.ChangedBy = principal
	c.record.ChangedAt = now

	var err error
	if c.oldJSON, err = encodeValues(c.record.OldValues); err != nil {
		c.restore()
		return nil, fmt.Errorf("encode old values of %s %d: %w", meta.EntityName(), b.ID, err)
	}
	if c.newJSON, err = encodeValues(c.record.NewValues); err != nil {
		c.restore()
		return nil, fmt.Errorf("encode new values of %s %d: %w", meta.EntityName(), b.ID, err)
	}
	return c, nil
}

func auditValue(meta tableMeta, i int, v any) any {
	if meta.sensitiveAt(i) {
		return RedactedValue
	}
	return v
}

func encodeValues(values map[string]any) (*string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}

func sameValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func insertAudit(ctx context.Context, q Querier, d Dialect, r AuditRecord, oldJSON, newJSON *string) (int64, error) {
	return q.Exec(ctx, d.Rebind(`INSERT INTO audit_logs
		(entity_name, entity_id, action, changed_by, changed_at, old_values, new_values)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		r.EntityName, r.EntityID, string(r.Action), r.ChangedBy, r.ChangedAt, oldJSON, newJSON)
}

// AuditQuery filters the audit trail. Zero fields are ignored.
type AuditQuery struct {
	EntityName string
	EntityID   int64
	Action     Action
	Limit      int
	Offset     int
}

// AuditTrail reads committed audit records. Audit rows are never soft
// deleted, so its queries are unscoped.
type AuditTrail struct {
	s *Session
}

// Find returns matching records newest first, plus the total match count.
func (a *AuditTrail) Find(ctx context.Context, aq AuditQuery) ([]AuditRecord, int, error) {
	q, err := a.s.reader(ctx)
	if err != nil {
		return nil, 0, err
	}
	d := a.s.store.Dialect()

	sq := newUnscopedSelect(auditTable, auditColumns)
	if aq.EntityName != "" {
		sq.filter(Eq("entity_name", aq.EntityName))
	}
	if aq.EntityID != 0 {
		sq.filter(Eq("entity_id", aq.EntityID))
	}
	if aq.Action != "" {
		sq.filter(Eq("action", string(aq.Action)))
	}

	total, err := countRows(ctx, q, d, sq)
	if err != nil {
		return nil, 0, err
	}

	sq.orderBy = "changed_at DESC, id DESC"
	sql, args := sq.page(aq.Limit, aq.Offset).sql(d)
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, storageErr("query audit trail", err)
	}
	defer rows.Close()

	var out []AuditRecord
	for rows.Next() {
		var r AuditRecord
		var action string
		var oldJSON, newJSON *string
		if err := rows.Scan(&r.ID, &r.EntityName, &r.EntityID, &action, &r.ChangedBy, &r.ChangedAt, &oldJSON, &newJSON); err != nil {
			return nil, 0, storageErr("scan audit record", err)
		}
		r.Action = Action(action)
		if r.OldValues, err = decodeValues(oldJSON); err != nil {
			return nil, 0, storageErr("decode audit record", err)
		}
		if r.NewValues, err = decodeValues(newJSON); err != nil {
			return nil, 0, storageErr("decode audit record", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storageErr("iterate audit trail", err)
	}
	return out, total, nil
}

func decodeValues(raw *string) (map[string]any, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(*raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}
