package querybuilder

import (
	"fmt"
	"reflect"
	"strings"
)

// InsertModel builds a single-row insert from the db tags of model.
func InsertModel(table string, model any, onConflict string) (string, []any, error) {
	return InsertModels(table, []any{model}, onConflict)
}

// InsertModels builds one multi-row insert. Every model must share the
// same db-tagged columns.
func InsertModels[T any](table string, models []T, onConflict string) (string, []any, error) {
	if len(models) == 0 {
		return "", nil, fmt.Errorf("insert models are required")
	}

	b := InsertInto(table).OnConflict(onConflict)
	var columns []string
	for i, model := range models {
		cols, vals, err := dbColumns(model)
		if err != nil {
			return "", nil, fmt.Errorf("model %d: %w", i, err)
		}
		if i == 0 {
			columns = cols
			b.Columns(cols...)
		} else if strings.Join(cols, ",") != strings.Join(columns, ",") {
			return "", nil, fmt.Errorf("model %d columns differ from model 0", i)
		}
		b.Values(vals...)
	}
	return b.ToSQL()
}

func dbColumns(model any) ([]string, []any, error) {
	value := reflect.ValueOf(model)
	for value.Kind() == reflect.Pointer || value.Kind() == reflect.Interface {
		if value.IsNil() {
			return nil, nil, fmt.Errorf("model cannot be nil")
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf("model must be struct, got %s", value.Kind())
	}

	typ := value.Type()
	cols := make([]string, 0, typ.NumField())
	vals := make([]any, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(field.Tag.Get("db"), ",")
		name = strings.TrimSpace(name)
		if name == "" || name == "-" {
			continue
		}
		cols = append(cols, name)
		vals = append(vals, value.Field(i).Interface())
	}

	if len(cols) == 0 {
		return nil, nil, fmt.Errorf("model has no db columns")
	}
	return cols, vals, nil
}
