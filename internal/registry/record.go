package registry

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// Value is a nullable field value. The zero Value is null.
type Value struct {
	Str   string
	Valid bool
}

// String returns a valid Value holding s
func String(s string) Value {
	return Value{Str: s, Valid: true}
}

// Null returns the null Value
func Null() Value {
	return Value{}
}

// OrEmpty returns the string held by v, or "" when v is null
func (v Value) OrEmpty() string {
	if !v.Valid {
		return ""
	}
	return v.Str
}

// Scan implements sql.Scanner so that values can be read straight from
// database/sql and pgx rows.
func (v *Value) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v = Null()
	case string:
		*v = String(s)
	case []byte:
		*v = String(string(s))
	case int64:
		*v = String(strconv.FormatInt(s, 10))
	case int32:
		*v = String(strconv.FormatInt(int64(s), 10))
	case float64:
		*v = String(strconv.FormatFloat(s, 'f', -1, 64))
	case bool:
		*v = String(strconv.FormatBool(s))
	case time.Time:
		*v = String(s.Format(time.RFC3339))
	default:
		return fmt.Errorf("unsupported value type %T", src)
	}
	return nil
}

// Value implements driver.Valuer
func (v Value) Value() (driver.Value, error) {
	if !v.Valid {
		return nil, nil
	}
	return v.Str, nil
}

// MarshalJSON encodes v as a JSON string or null
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Str)
}

// Field is a single named value inside a Record
type Field struct {
	Name  string
	Value Value
}

// F is shorthand for a field holding a non-null string
func F(name, value string) Field {
	return Field{Name: name, Value: String(value)}
}

// NullField is shorthand for a field holding null
func NullField(name string) Field {
	return Field{Name: name, Value: Null()}
}

// Record is an immutable, ordered mapping of field names to values.
// Field names are unique; building a record with a repeated name keeps the
// first position and the last value.
type Record struct {
	fields []Field
}

// NewRecord builds a record from the given fields
func NewRecord(fields ...Field) Record {
	r := Record{fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		r.fields = setField(r.fields, f)
	}
	return r
}

func setField(fields []Field, f Field) []Field {
	for i := range fields {
		if fields[i].Name == f.Name {
			fields[i].Value = f.Value
			return fields
		}
	}
	return append(fields, f)
}

// Len returns the number of fields in the record
func (r Record) Len() int {
	return len(r.fields)
}

// Fields returns a copy of the record's fields in order
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Names returns the record's field names in order
func (r Record) Names() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

// Get returns the value of the named field and whether the field is present
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Null(), false
}

// GetString returns the string value of the named field. Absent and null
// fields both yield "".
func (r Record) GetString(name string) string {
	v, _ := r.Get(name)
	return v.OrEmpty()
}

// Union returns a new record holding r's fields followed by the fields of
// other that r lacks. On a name collision other's value wins while r's
// position is kept.
func (r Record) Union(other Record) Record {
	out := Record{fields: make([]Field, len(r.fields), len(r.fields)+len(other.fields))}
	copy(out.fields, r.fields)
	for _, f := range other.fields {
		out.fields = setField(out.fields, f)
	}
	return out
}

// Equal reports whether both records hold the same fields in the same order
func (r Record) Equal(other Record) bool {
	if len(r.fields) != len(other.fields) {
		return false
	}
	for i := range r.fields {
		if r.fields[i] != other.fields[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the record as a JSON object in field order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object keeping its key order. String and
// number values are stored as text, null as Null.
func (r *Record) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid JSON record")
	}
	res := gjson.ParseBytes(data)
	if !res.IsObject() {
		return fmt.Errorf("record must be a JSON object, got %s", res.Type)
	}
	rec, err := recordFromResult(res)
	if err != nil {
		return err
	}
	*r = rec
	return nil
}

// recordFromResult converts a parsed gjson object into a Record
func recordFromResult(res gjson.Result) (Record, error) {
	var (
		fields []Field
		err    error
	)
	res.ForEach(func(key, value gjson.Result) bool {
		var v Value
		v, err = valueFromResult(value)
		if err != nil {
			err = fmt.Errorf("field %q: %w", key.String(), err)
			return false
		}
		fields = append(fields, Field{Name: key.String(), Value: v})
		return true
	})
	if err != nil {
		return Record{}, err
	}
	return NewRecord(fields...), nil
}

func valueFromResult(value gjson.Result) (Value, error) {
	switch value.Type {
	case gjson.Null:
		return Null(), nil
	case gjson.String:
		return String(value.Str), nil
	case gjson.Number:
		// Raw keeps the number exactly as written, e.g. "3" rather than "3.000000"
		return String(value.Raw), nil
	case gjson.True, gjson.False:
		return String(strconv.FormatBool(value.Bool())), nil
	default:
		return Null(), fmt.Errorf("unsupported JSON value %s", value.Raw)
	}
}
