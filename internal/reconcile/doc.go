// Package reconcile implements cross-registry reconciliation of device
// records.
//
// Records from one registry are first collapsed to a single canonical record
// per manufacturer by Deduplicate, which keeps the record with the greatest
// tie-break value (compared as strings). Merge then pairs records of the two
// registries whose manufacturer names normalize to the same key, merging the
// fields of each pair and keeping every unmatched record.
//
// Manufacturer names are compared by their normalized key: punctuation is
// removed and the name is lowercased, so "Manufacturer.A", "Manufacturer__A"
// and "manufacturera" all name the same manufacturer.
//
// All functions are pure and never modify their inputs.
package reconcile
