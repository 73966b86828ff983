package registry

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ID identifies one of the two reference registries
type ID string

const (
	// FDA is registry A, the US 510(k) clearance registry
	FDA ID = "fda"

	// EUDAMED is registry B, the European device registry
	EUDAMED ID = "eudamed"
)

const (
	// FieldManufacturerName is the field every record carries for matching
	FieldManufacturerName = "manufacturer_name"

	// FieldDeviceName is the field used for lookups
	FieldDeviceName = "device_name"
)

// ErrUnknownRegistry is returned when a registry identifier is not recognized
var ErrUnknownRegistry = errors.New("unknown registry")

// Schema describes the fixed field layout of a registry
type Schema struct {
	// ID is the registry identifier
	ID ID

	// Table is the relational table holding the registry's records
	Table string

	// TieBreakKey is the field used to pick the canonical record among
	// duplicates of one manufacturer. It is also the table's primary key.
	TieBreakKey string

	// Fields lists every field in serialization order
	Fields []string

	// IntegerFields lists the fields stored as integers in relational stores
	IntegerFields []string
}

var fdaSchema = Schema{
	ID:          FDA,
	Table:       "fda_data",
	TieBreakKey: "k_number",
	Fields: []string{
		"k_number",
		"manufacturer_name",
		"contact",
		"address1",
		"address2",
		"city",
		"state",
		"country_code",
		"zip_code",
		"postal_code",
		"date_received",
		"decision_date",
		"decision_description",
		"product_code",
		"statement_or_summary",
		"clearance_type",
		"third_party_flag",
		"expedited_review_flag",
		"device_name",
		"url",
		"device_description",
		"medical_specialty_description",
		"device_class",
		"regulation_number",
		"submission_type_id",
	},
}

var eudamedSchema = Schema{
	ID:          EUDAMED,
	Table:       "eudamed_data",
	TieBreakKey: "primary_di",
	Fields: []string{
		"basic_udi",
		"primary_di",
		"uuid",
		"ulid",
		"basic_udi_di_data_ulid",
		"risk_class",
		"device_name",
		"manufacturer_name",
		"manufacturer_srn",
		"device_status_type",
		"manufacturer_status",
		"latest_version",
		"version_number",
		"reference",
		"basic_udi_data_version_number",
		"container_package_count",
		"authorised_representative_srn",
		"authorised_representative_name",
	},
	IntegerFields: []string{
		"latest_version",
		"version_number",
		"basic_udi_data_version_number",
		"container_package_count",
	},
}

// IDs returns the registry identifiers in their canonical order (A, then B)
func IDs() []ID {
	return []ID{FDA, EUDAMED}
}

// ParseID converts a string into a registry identifier
func ParseID(s string) (ID, error) {
	switch ID(s) {
	case FDA, EUDAMED:
		return ID(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRegistry, s)
	}
}

// SchemaFor returns the schema of the given registry. It panics on an unknown
// identifier; use ParseID to validate external input first.
func SchemaFor(id ID) Schema {
	switch id {
	case FDA:
		return fdaSchema
	case EUDAMED:
		return eudamedSchema
	default:
		panic(fmt.Sprintf("no schema for registry %q", id))
	}
}

// HasField reports whether the schema declares the named field
func (s Schema) HasField(name string) bool {
	return slices.Contains(s.Fields, name)
}

// IsInteger reports whether the named field is stored as an integer
func (s Schema) IsInteger(name string) bool {
	return slices.Contains(s.IntegerFields, name)
}

// Project returns a record holding exactly the schema's fields in schema
// order. Fields missing from rec become null and unknown fields are dropped.
func (s Schema) Project(rec Record) Record {
	fields := make([]Field, len(s.Fields))
	for i, name := range s.Fields {
		v, _ := rec.Get(name)
		fields[i] = Field{Name: name, Value: v}
	}
	return NewRecord(fields...)
}

// Validate checks that rec only uses declared fields, that integer fields
// hold integers and that it carries a non-empty tie-break key.
func (s Schema) Validate(rec Record) error {
	for _, f := range rec.Fields() {
		if !s.HasField(f.Name) {
			return fmt.Errorf("unknown %s field %q", s.ID, f.Name)
		}
		if f.Value.Valid && s.IsInteger(f.Name) {
			if _, err := strconv.ParseInt(f.Value.Str, 10, 64); err != nil {
				return fmt.Errorf("%s field %q must be an integer, got %q", s.ID, f.Name, f.Value.Str)
			}
		}
	}
	if rec.GetString(s.TieBreakKey) == "" {
		return fmt.Errorf("%s record is missing %s", s.ID, s.TieBreakKey)
	}
	return nil
}

// DeviceNameKey returns the case-folded form of a device name used for
// case-insensitive lookups. Stores without a native case-insensitive
// comparison index records under this key.
func DeviceNameKey(name string) string {
	return cases.Lower(language.Und).String(name)
}
