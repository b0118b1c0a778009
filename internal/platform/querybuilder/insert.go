package querybuilder

import (
	"fmt"
	"strings"
)

type InsertBuilder struct {
	table      string
	columns    []string
	rows       [][]any
	onConflict string
}

func InsertInto(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

func (b *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	b.columns = append([]string(nil), columns...)
	return b
}

// Values appends one row. Call it once per row for multi-row inserts.
func (b *InsertBuilder) Values(values ...any) *InsertBuilder {
	b.rows = append(b.rows, append([]any(nil), values...))
	return b
}

// OnConflict appends a raw ON CONFLICT clause. It must not bind args.
func (b *InsertBuilder) OnConflict(clause string) *InsertBuilder {
	b.onConflict = strings.TrimSpace(clause)
	return b
}

func (b *InsertBuilder) ToSQL() (string, []any, error) {
	if strings.TrimSpace(b.table) == "" {
		return "", nil, fmt.Errorf("insert table is required")
	}
	if len(b.columns) == 0 {
		return "", nil, fmt.Errorf("insert columns are required")
	}
	if len(b.rows) == 0 {
		return "", nil, fmt.Errorf("insert values are required")
	}

	w := &writer{}
	w.args = make([]any, 0, len(b.rows)*len(b.columns))
	w.WriteString("INSERT INTO ")
	w.WriteString(b.table)
	w.WriteString(" (")
	w.WriteString(strings.Join(b.columns, ", "))
	w.WriteString(") VALUES ")

	for rowIdx, row := range b.rows {
		if len(row) != len(b.columns) {
			return "", nil, fmt.Errorf("insert row %d has %d values, expected %d", rowIdx, len(row), len(b.columns))
		}
		if rowIdx > 0 {
			w.WriteString(", ")
		}
		w.WriteByte('(')
		for colIdx, value := range row {
			if colIdx > 0 {
				w.WriteString(", ")
			}
			w.bind(value)
		}
		w.WriteByte(')')
	}

	if b.onConflict != "" {
		w.WriteByte(' ')
		w.WriteString(b.onConflict)
	}
	return w.result()
}
