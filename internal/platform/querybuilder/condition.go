package querybuilder

import (
	"strconv"
	"strings"
)

// Condition renders one predicate of a WHERE clause. Placeholders are
// numbered in the order conditions are appended.
type Condition interface {
	render(w *writer)
}

type eq struct {
	column string
	value  any
}

// Eq binds value to column.
func Eq(column string, value any) Condition {
	return eq{column: column, value: value}
}

func (c eq) render(w *writer) {
	w.WriteString(c.column)
	w.WriteString(" = ")
	w.bind(c.value)
}

type expr struct {
	sql  string
	args []any
}

// Expr inserts raw SQL. Each "?" is replaced by the next bound arg.
func Expr(sql string, args ...any) Condition {
	return expr{sql: sql, args: args}
}

func (c expr) render(w *writer) {
	if len(c.args) == 0 {
		w.WriteString(c.sql)
		return
	}
	next := 0
	for i := 0; i < len(c.sql); i++ {
		if c.sql[i] == '?' && next < len(c.args) {
			w.bind(c.args[next])
			next++
			continue
		}
		w.WriteByte(c.sql[i])
	}
}

// writer accumulates SQL text and the args for its $n placeholders.
type writer struct {
	strings.Builder
	args []any
}

func (w *writer) bind(value any) {
	w.args = append(w.args, value)
	w.WriteByte('$')
	w.WriteString(strconv.Itoa(len(w.args)))
}

func (w *writer) where(conditions []Condition) {
	for i, c := range conditions {
		if i == 0 {
			w.WriteString(" WHERE ")
		} else {
			w.WriteString(" AND ")
		}
		c.render(w)
	}
}

func (w *writer) result() (string, []any, error) {
	return w.String(), w.args, nil
}
