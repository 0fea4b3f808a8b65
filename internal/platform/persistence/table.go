package persistence

import (
	"fmt"
	"time"
)

// Column maps one struct field to one SQL column. Field is the JSON name
// used as the key in audit value maps.
type Column[T any] struct {
	Name      string
	Field     string
	sensitive bool
	value     func(*T) any
	ref       func(*T) any
}

// Field declares a non-nullable column backed by the field ptr returns.
func Field[T, V any](name, field string, ptr func(*T) *V) Column[T] {
	return Column[T]{
		Name:  name,
		Field: field,
		value: func(t *T) any { return *ptr(t) },
		ref:   func(t *T) any { return ptr(t) },
	}
}

// NullableField declares a column backed by a pointer field; nil maps to NULL.
func NullableField[T, V any](name, field string, ptr func(*T) **V) Column[T] {
	return Column[T]{
		Name:  name,
		Field: field,
		value: func(t *T) any {
			p := *ptr(t)
			if p == nil {
				return nil
			}
			return *p
		},
		ref: func(t *T) any { return ptr(t) },
	}
}

// Sensitive marks the column so audit records carry a redaction marker
// instead of its value.
func (c Column[T]) Sensitive() Column[T] {
	c.sensitive = true
	return c
}

// RedactedValue replaces sensitive column values in audit records.
const RedactedValue = "[redacted]"

// positions of the bookkeeping columns every table starts with
const (
	colCreatedBy = iota
	colCreatedAt
	colModifiedBy
	colModifiedAt
	colIsDeleted
)

// Table describes how records of type T are stored. Base columns are
// prepended automatically; the "id" column is handled separately.
type Table[T any] struct {
	name    string
	entity  string
	base    func(*T) *Base
	columns []Column[T]
	known   map[string]bool
}

// NewTable builds the descriptor for T. P is inferred as *T.
func NewTable[T any, P interface {
	*T
	Entity
}](name, entity string, columns ...Column[T]) *Table[T] {
	base := func(t *T) *Base { return P(t).EntityBase() }
	cols := []Column[T]{
		Field("created_by", "createdBy", func(t *T) *string { return &base(t).CreatedBy }),
		Field("created_at", "createdAt", func(t *T) *time.Time { return &base(t).CreatedAt }),
		NullableField("modified_by", "modifiedBy", func(t *T) **string { return &base(t).ModifiedBy }),
		NullableField("modified_at", "modifiedAt", func(t *T) **time.Time { return &base(t).ModifiedAt }),
		Field("is_deleted", "isDeleted", func(t *T) *bool { return &base(t).IsDeleted }),
	}
	cols = append(cols, columns...)

	known := map[string]bool{"id": true}
	for _, c := range cols {
		if known[c.Name] {
			panic(fmt.Sprintf("persistence: duplicate column %q in table %s", c.Name, name))
		}
		known[c.Name] = true
	}
	return &Table[T]{name: name, entity: entity, base: base, columns: cols, known: known}
}

// Name returns the SQL table name.
func (t *Table[T]) Name() string { return t.name }

// EntityName returns the logical type recorded in audit rows.
func (t *Table[T]) EntityName() string { return t.entity }

func (t *Table[T]) hasColumn(name string) bool { return t.known[name] }

func (t *Table[T]) selectColumns() []string {
	out := make([]string, 0, len(t.columns)+1)
	out = append(out, "id")
	for _, c := range t.columns {
		out = append(out, c.Name)
	}
	return out
}

// scanTarget allocates a fresh record and the scan destinations matching
// selectColumns.
func (t *Table[T]) scanTarget() (*T, []any) {
	e := new(T)
	dest := make([]any, 0, len(t.columns)+1)
	dest = append(dest, &t.base(e).ID)
	for _, c := range t.columns {
		dest = append(dest, c.ref(e))
	}
	return e, dest
}

func (t *Table[T]) columnNames() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

func (t *Table[T]) fieldNames() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Field
	}
	return out
}

func (t *Table[T]) sensitiveAt(i int) bool { return t.columns[i].sensitive }

func (t *Table[T]) identity(entity any) *Base { return t.base(entity.(*T)) }

func (t *Table[T]) values(entity any) []any {
	e := entity.(*T)
	out := make([]any, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.value(e)
	}
	return out
}

// tableMeta is the untyped view of a Table the session works with.
type tableMeta interface {
	Name() string
	EntityName() string
	columnNames() []string
	fieldNames() []string
	sensitiveAt(i int) bool
	identity(entity any) *Base
	values(entity any) []any
}

var _ tableMeta = (*Table[struct{ Base }])(nil)
