package persistence

import (
	"fmt"
	"strings"
)

// Filter is a composable SQL predicate written with "?" markers. Column
// names come from code, never from request input.
type Filter struct {
	clause string
	args   []any
}

// Where builds a raw predicate for anything the helpers below do not cover.
func Where(clause string, args ...any) Filter {
	return Filter{clause: clause, args: args}
}

func Eq(col string, v any) Filter  { return Filter{col + " = ?", []any{v}} }
func Ne(col string, v any) Filter  { return Filter{col + " <> ?", []any{v}} }
func Gt(col string, v any) Filter  { return Filter{col + " > ?", []any{v}} }
func Gte(col string, v any) Filter { return Filter{col + " >= ?", []any{v}} }
func Lt(col string, v any) Filter  { return Filter{col + " < ?", []any{v}} }
func Lte(col string, v any) Filter { return Filter{col + " <= ?", []any{v}} }

// EqualFold matches col case-insensitively. The store's LOWER must fold
// Unicode the way strings.ToLower does; the SQLite store installs one.
func EqualFold(col, v string) Filter {
	return Filter{"LOWER(" + col + ") = ?", []any{strings.ToLower(v)}}
}

// Contains matches col containing term, case-insensitively. Wildcards in
// term match literally.
func Contains(col, term string) Filter {
	return Filter{"LOWER(" + col + ") LIKE ? ESCAPE '\\'", []any{ContainsPattern(term)}}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern is the lowercased LIKE pattern Contains binds, for
// predicates written with Where. Pair it with ESCAPE '\'.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

// Or joins filters with OR. An empty Or matches nothing.
func Or(fs ...Filter) Filter { return join(" OR ", "1=0", fs) }

// And joins filters with AND. An empty And matches everything.
func And(fs ...Filter) Filter { return join(" AND ", "1=1", fs) }

func join(sep, empty string, fs []Filter) Filter {
	if len(fs) == 0 {
		return Filter{clause: empty}
	}
	parts := make([]string, len(fs))
	var args []any
	for i, f := range fs {
		parts[i] = "(" + f.clause + ")"
		args = append(args, f.args...)
	}
	return Filter{clause: strings.Join(parts, sep), args: args}
}

// Page selects one ordered slice of a filtered result. OrderBy entries are
// column names with an optional ASC or DESC suffix.
type Page struct {
	Filters []Filter
	OrderBy []string
	Limit   int
	Offset  int
}

// selectQuery renders SELECT and COUNT statements for one table. Queries
// built with newSelect carry the live-row predicate from the start, so every
// filter, count and page composes with it.
type selectQuery struct {
	table   string
	cols    []string
	where   []string
	args    []any
	orderBy string
	limit   int
	offset  int
}

func newSelect(table string, cols []string) *selectQuery {
	q := newUnscopedSelect(table, cols)
	q.where = append(q.where, "is_deleted = FALSE")
	return q
}

// newUnscopedSelect skips the live-row predicate. Used by the soft-delete
// path and for audit rows, which have no deleted state.
func newUnscopedSelect(table string, cols []string) *selectQuery {
	return &selectQuery{table: table, cols: cols}
}

func (q *selectQuery) filter(fs ...Filter) *selectQuery {
	for _, f := range fs {
		q.where = append(q.where, "("+f.clause+")")
		q.args = append(q.args, f.args...)
	}
	return q
}

// order validates each entry against known before accepting it.
func (q *selectQuery) order(known func(string) bool, entries ...string) error {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		fields := strings.Fields(e)
		if len(fields) == 0 || len(fields) > 2 || !known(fields[0]) {
			return fmt.Errorf("%w: order by %q", ErrInvalid, e)
		}
		dir := "ASC"
		if len(fields) == 2 {
			dir = strings.ToUpper(fields[1])
			if dir != "ASC" && dir != "DESC" {
				return fmt.Errorf("%w: order by %q", ErrInvalid, e)
			}
		}
		parts = append(parts, fields[0]+" "+dir)
	}
	q.orderBy = strings.Join(parts, ", ")
	return nil
}

func (q *selectQuery) page(limit, offset int) *selectQuery {
	q.limit = limit
	q.offset = offset
	return q
}

func (q *selectQuery) whereSQL() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

func (q *selectQuery) sql(d Dialect) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.table)
	b.WriteString(q.whereSQL())
	if q.orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.orderBy)
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.limit)
		if q.offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", q.offset)
		}
	}
	return d.Rebind(b.String()), q.args
}

func (q *selectQuery) countSQL(d Dialect) (string, []any) {
	return d.Rebind("SELECT COUNT(*) FROM " + q.table + q.whereSQL()), q.args
}
