package querybuilder

import (
	"errors"
	"strings"
)

type assignment struct {
	column string
	value  Condition
}

type UpdateBuilder struct {
	table string
	sets  []assignment
	where []Condition
}

func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.sets = append(b.sets, assignment{column: column, value: bound{value: value}})
	return b
}

// SetExpr assigns raw SQL such as NOW(). "?" binds args like Expr.
func (b *UpdateBuilder) SetExpr(column, sql string, args ...any) *UpdateBuilder {
	b.sets = append(b.sets, assignment{column: column, value: Expr(sql, args...)})
	return b
}

func (b *UpdateBuilder) Where(conditions ...Condition) *UpdateBuilder {
	b.where = append(b.where, conditions...)
	return b
}

func (b *UpdateBuilder) ToSQL() (string, []any, error) {
	if strings.TrimSpace(b.table) == "" {
		return "", nil, errors.New("update table is required")
	}
	if len(b.sets) == 0 {
		return "", nil, errors.New("update sets are required")
	}
	if len(b.where) == 0 {
		return "", nil, errors.New("update without where is not allowed")
	}

	w := &writer{}
	w.WriteString("UPDATE ")
	w.WriteString(b.table)
	w.WriteString(" SET ")
	for i, s := range b.sets {
		if i > 0 {
			w.WriteString(", ")
		}
		w.WriteString(s.column)
		w.WriteString(" = ")
		s.value.render(w)
	}
	w.where(b.where)
	return w.result()
}

type bound struct {
	value any
}

func (c bound) render(w *writer) {
	w.bind(c.value)
}
