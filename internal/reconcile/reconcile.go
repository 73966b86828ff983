package reconcile

import (
	"github.com/stacklok/device-registry-server/internal/registry"
)

// Reconciler deduplicates and merges registry records using a configurable
// manufacturer key function
type Reconciler struct {
	key KeyFunc
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithKeyFunc replaces the manufacturer key function. A nil function is ignored.
func WithKeyFunc(fn KeyFunc) Option {
	return func(r *Reconciler) {
		if fn != nil {
			r.key = fn
		}
	}
}

// New creates a Reconciler. Without options it uses NormalizeManufacturer.
func New(opts ...Option) *Reconciler {
	r := &Reconciler{key: NormalizeManufacturer}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultReconciler = New()

// Deduplicate collapses records to one per normalized manufacturer key using
// the default key function. See Reconciler.Deduplicate.
func Deduplicate(records []registry.Record, tieBreakKey string) []registry.Record {
	return defaultReconciler.Deduplicate(records, tieBreakKey)
}

// Merge pairs records across registries using the default key function. See
// Reconciler.Merge.
func Merge(sideA, sideB []registry.Record) []registry.Record {
	return defaultReconciler.Merge(sideA, sideB)
}

// Deduplicate keeps one record per normalized manufacturer key: the record
// whose tieBreakKey value is the greatest under string comparison. Ties keep
// the record seen first, and records without a manufacturer share the empty
// key. Keys appear in the output in the order they were first seen.
func (r *Reconciler) Deduplicate(records []registry.Record, tieBreakKey string) []registry.Record {
	order := make([]string, 0, len(records))
	best := make(map[string]registry.Record, len(records))

	for _, rec := range records {
		key := r.manufacturerKey(rec)
		current, seen := best[key]
		if !seen {
			order = append(order, key)
			best[key] = rec
			continue
		}
		if rec.GetString(tieBreakKey) > current.GetString(tieBreakKey) {
			best[key] = rec
		}
	}

	out := make([]registry.Record, len(order))
	for i, key := range order {
		out[i] = best[key]
	}
	return out
}

// Merge pairs every record of sideA with the first record of sideB sharing
// its normalized manufacturer key. The scan always starts over sideB's full
// list, so when an earlier sideA record already claimed that first record the
// later one stays unmatched, even if another sideB record shares the key.
// A pair becomes the union of both records, sideB's values winning on field
// collisions.
//
// The result holds the merged pairs in sideA order, then the unmatched sideA
// records, then the unmatched sideB records in sideB order. Every input record
// appears in the result exactly once.
func (r *Reconciler) Merge(sideA, sideB []registry.Record) []registry.Record {
	keysB := make([]string, len(sideB))
	for i, rec := range sideB {
		keysB[i] = r.manufacturerKey(rec)
	}
	consumed := make([]bool, len(sideB))

	merged := make([]registry.Record, 0, len(sideA)+len(sideB))
	var unmatchedA []registry.Record

	for _, a := range sideA {
		keyA := r.manufacturerKey(a)
		match := -1
		for j, keyB := range keysB {
			if keyB == keyA {
				match = j
				break
			}
		}
		if match < 0 || consumed[match] {
			unmatchedA = append(unmatchedA, a)
			continue
		}
		consumed[match] = true
		merged = append(merged, a.Union(sideB[match]))
	}

	merged = append(merged, unmatchedA...)
	for j, b := range sideB {
		if !consumed[j] {
			merged = append(merged, b)
		}
	}
	return merged
}

// Result is the outcome of combining the records of both registries
type Result struct {
	// Records holds the merged pairs followed by the unmatched records
	Records []registry.Record

	// Matched is the number of merged pairs
	Matched int

	// UnmatchedA and UnmatchedB count records carried through unmatched
	UnmatchedA int
	UnmatchedB int
}

// Combine deduplicates both sides with their registry's tie-break key and
// merges them
func (r *Reconciler) Combine(sideA, sideB []registry.Record) Result {
	dedupA := r.Deduplicate(sideA, registry.SchemaFor(registry.FDA).TieBreakKey)
	dedupB := r.Deduplicate(sideB, registry.SchemaFor(registry.EUDAMED).TieBreakKey)

	records := r.Merge(dedupA, dedupB)

	// merged pairs shrink the output by one record each
	matched := len(dedupA) + len(dedupB) - len(records)
	return Result{
		Records:    records,
		Matched:    matched,
		UnmatchedA: len(dedupA) - matched,
		UnmatchedB: len(dedupB) - matched,
	}
}

func (r *Reconciler) manufacturerKey(rec registry.Record) string {
	return r.key(rec.GetString(registry.FieldManufacturerName))
}
