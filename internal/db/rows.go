package db

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/stacklok/device-registry-server/internal/registry"
)

// Dialect captures the SQL differences between the relational stores
type Dialect struct {
	// Placeholder returns the bind parameter for the n-th argument, starting at 1
	Placeholder func(n int) string

	// TextCast wraps a column expression so it is read back as text
	TextCast func(column string) string
}

// Postgres is the PostgreSQL dialect
var Postgres = Dialect{
	Placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	TextCast:    func(column string) string { return column + "::text" },
}

// SQLite is the SQLite dialect
var SQLite = Dialect{
	Placeholder: func(int) string { return "?" },
	TextCast:    func(column string) string { return "CAST(" + column + " AS TEXT)" },
}

// Scanner is implemented by the row types of pgx and database/sql
type Scanner interface {
	Scan(dest ...any) error
}

// selectColumns returns the column list of a schema with integer columns cast to text
func (d Dialect) selectColumns(schema registry.Schema) string {
	cols := make([]string, len(schema.Fields))
	for i, name := range schema.Fields {
		if schema.IsInteger(name) {
			cols[i] = d.TextCast(name)
			continue
		}
		cols[i] = name
	}
	return strings.Join(cols, ", ")
}

// LookupQuery returns the query selecting the records of a registry whose
// device name matches the single bind parameter ignoring case. Rows are
// ordered by tie-break key.
func (d Dialect) LookupQuery(schema registry.Schema) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE LOWER(device_name) = LOWER(%s) ORDER BY %s",
		d.selectColumns(schema), schema.Table, d.Placeholder(1), schema.TieBreakKey)
}

// InsertQuery returns the statement inserting one full record of a registry
func (d Dialect) InsertQuery(schema registry.Schema) string {
	params := make([]string, len(schema.Fields))
	for i := range schema.Fields {
		params[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.Table, strings.Join(schema.Fields, ", "), strings.Join(params, ", "))
}

// CountQuery returns the query counting the records of a registry
func CountQuery(schema registry.Schema) string {
	return "SELECT COUNT(*) FROM " + schema.Table
}

// DeleteQuery returns the statement removing every record of a registry
func DeleteQuery(schema registry.Schema) string {
	return "DELETE FROM " + schema.Table
}

// ScanRecord reads one row selected by LookupQuery into a record
func ScanRecord(schema registry.Schema, row Scanner) (registry.Record, error) {
	values := make([]registry.Value, len(schema.Fields))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := row.Scan(dest...); err != nil {
		return registry.Record{}, err
	}

	fields := make([]registry.Field, len(schema.Fields))
	for i, name := range schema.Fields {
		fields[i] = registry.Field{Name: name, Value: values[i]}
	}
	return registry.NewRecord(fields...), nil
}

// RowValues returns the arguments for InsertQuery or a bulk copy of rec, in
// schema order. Nulls become nil and integer columns are parsed.
func RowValues(schema registry.Schema, rec registry.Record) ([]any, error) {
	args := make([]any, len(schema.Fields))
	for i, name := range schema.Fields {
		v, _ := rec.Get(name)
		if !v.Valid {
			continue
		}
		if !schema.IsInteger(name) {
			args[i] = v.Str
			continue
		}
		n, err := strconv.ParseInt(v.Str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s field %q: %w", schema.ID, name, err)
		}
		args[i] = n
	}
	return args, nil
}
