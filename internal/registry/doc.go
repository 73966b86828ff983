// Package registry defines the data model shared by every part of the device
// registry server: nullable field values, ordered records, the fixed schemas of
// the two reference registries and the snapshot format used to load them.
//
// # Registries
//
// Two registries are served. Registry A ([FDA]) holds US clearance records keyed
// by "k_number". Registry B ([EUDAMED]) holds EU device records keyed by
// "primary_di". Both carry "manufacturer_name" and "device_name":
//
//	schema := registry.SchemaFor(registry.FDA)
//	schema.TieBreakKey // "k_number"
//
// # Records
//
// A Record is an immutable, ordered mapping of field name to Value. Records keep
// the order in which their fields were built or decoded, and marshal to JSON
// objects in that order with null for invalid values:
//
//	rec := registry.NewRecord(
//	    registry.F("k_number", "K999999"),
//	    registry.F("manufacturer_name", "Acme Corp."),
//	)
//	merged := rec.Union(other) // other's values win on collision
//
// # Snapshots
//
// A Snapshot bundles the reference data of both registries. Snapshots are
// decoded from JSON or YAML with field order preserved and validated against the
// registry schemas:
//
//	snap, err := registry.DecodeSnapshot(data, registry.FormatJSON)
//
// # Test Utilities
//
// NewTestRecord and NewTestSnapshot build records and snapshots with the options
// pattern, and ReferenceFixture returns the reference data set used by the
// end-to-end lookups.
package registry
