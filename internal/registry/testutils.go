package registry

// RecordOption is a function that configures a test record
type RecordOption func(*[]Field)

// NewTestRecord creates a record for testing. The record starts with the
// registry's tie-break key set to key and applies any provided options.
func NewTestRecord(id ID, key string, opts ...RecordOption) Record {
	fields := []Field{F(SchemaFor(id).TieBreakKey, key)}
	for _, opt := range opts {
		opt(&fields)
	}
	return NewRecord(fields...)
}

// WithManufacturer sets the manufacturer name of a test record
func WithManufacturer(name string) RecordOption {
	return WithField(FieldManufacturerName, name)
}

// WithDeviceName sets the device name of a test record
func WithDeviceName(name string) RecordOption {
	return WithField(FieldDeviceName, name)
}

// WithField sets an arbitrary string field of a test record
func WithField(name, value string) RecordOption {
	return func(fields *[]Field) {
		*fields = append(*fields, F(name, value))
	}
}

// WithNullField sets an arbitrary field of a test record to null
func WithNullField(name string) RecordOption {
	return func(fields *[]Field) {
		*fields = append(*fields, NullField(name))
	}
}

// SnapshotOption is a function that configures a test snapshot
type SnapshotOption func(version *string, records map[ID][]Record)

// NewTestSnapshot creates a snapshot for testing and panics if the resulting
// data is invalid
func NewTestSnapshot(opts ...SnapshotOption) *Snapshot {
	version := "1.0.0"
	records := make(map[ID][]Record)
	for _, opt := range opts {
		opt(&version, records)
	}
	snap, err := NewSnapshot(version, records)
	if err != nil {
		panic(err)
	}
	return snap
}

// WithSnapshotVersion sets the version of a test snapshot
func WithSnapshotVersion(v string) SnapshotOption {
	return func(version *string, _ map[ID][]Record) {
		*version = v
	}
}

// WithRecords appends records of the given registry to a test snapshot
func WithRecords(id ID, recs ...Record) SnapshotOption {
	return func(_ *string, records map[ID][]Record) {
		records[id] = append(records[id], recs...)
	}
}

// ReferenceFixture returns the reference data set used to validate lookups
// end to end. TestDevice1 exists in both registries with punctuation
// variants of the same manufacturer, TestDevice2 only in FDA and
// TestDevice3 only in EUDAMED.
func ReferenceFixture() *Snapshot {
	return NewTestSnapshot(
		WithRecords(FDA,
			NewTestRecord(FDA, "999999", WithDeviceName("TestDevice1"), WithManufacturer("ManufacturerA")),
			NewTestRecord(FDA, "989898", WithDeviceName("TestDevice1"), WithManufacturer("Manufacturer.A")),
			NewTestRecord(FDA, "777777", WithDeviceName("TestDevice2"), WithManufacturer("ManufacturerB")),
		),
		WithRecords(EUDAMED,
			NewTestRecord(EUDAMED, "888888", WithDeviceName("TestDevice1"), WithManufacturer("ManufacturerA")),
			NewTestRecord(EUDAMED, "878787", WithDeviceName("TestDevice1"), WithManufacturer("Manufacturer__A")),
			NewTestRecord(EUDAMED, "666666", WithDeviceName("TestDevice3"), WithManufacturer("ManufacturerA")),
		),
	)
}
