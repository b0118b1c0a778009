package querybuilder

import (
	"errors"
	"strconv"
	"strings"
)

type SelectBuilder struct {
	columns   []string
	table     string
	where     []Condition
	orderBy   []string
	limit     int
	forUpdate bool
}

func Select(columns ...string) *SelectBuilder {
	return &SelectBuilder{columns: append([]string(nil), columns...)}
}

func (b *SelectBuilder) From(table string) *SelectBuilder {
	b.table = table
	return b
}

func (b *SelectBuilder) Where(conditions ...Condition) *SelectBuilder {
	b.where = append(b.where, conditions...)
	return b
}

func (b *SelectBuilder) OrderBy(parts ...string) *SelectBuilder {
	b.orderBy = append(b.orderBy, parts...)
	return b
}

func (b *SelectBuilder) Limit(limit int) *SelectBuilder {
	b.limit = limit
	return b
}

// ForUpdate locks the selected rows until the surrounding transaction ends.
func (b *SelectBuilder) ForUpdate() *SelectBuilder {
	b.forUpdate = true
	return b
}

func (b *SelectBuilder) ToSQL() (string, []any, error) {
	if len(b.columns) == 0 {
		return "", nil, errors.New("select columns are required")
	}
	if strings.TrimSpace(b.table) == "" {
		return "", nil, errors.New("select table is required")
	}

	w := &writer{}
	w.WriteString("SELECT ")
	w.WriteString(strings.Join(b.columns, ", "))
	w.WriteString(" FROM ")
	w.WriteString(b.table)
	w.where(b.where)
	if len(b.orderBy) > 0 {
		w.WriteString(" ORDER BY ")
		w.WriteString(strings.Join(b.orderBy, ", "))
	}
	if b.limit > 0 {
		w.WriteString(" LIMIT ")
		w.WriteString(strconv.Itoa(b.limit))
	}
	if b.forUpdate {
		w.WriteString(" FOR UPDATE")
	}
	return w.result()
}
