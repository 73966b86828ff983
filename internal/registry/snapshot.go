package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ErrInvalidSnapshot is returned when snapshot data cannot be decoded or fails validation
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Format is the encoding of a snapshot file
type Format string

const (
	// FormatJSON is the JSON snapshot encoding
	FormatJSON Format = "json"

	// FormatYAML is the YAML snapshot encoding
	FormatYAML Format = "yaml"
)

// snapshotKeys maps each registry to its top-level snapshot key
var snapshotKeys = map[ID]string{
	FDA:     "fda_data",
	EUDAMED: "eudamed_data",
}

// Snapshot is a complete, validated data set for both registries
type Snapshot struct {
	// ID uniquely identifies this load of the snapshot
	ID string

	// Version is the optional semantic version declared by the snapshot
	Version string

	// Hash is the hex SHA-256 of the encoded snapshot
	Hash string

	records map[ID][]Record
}

// Records returns the records of the given registry in snapshot order
func (s *Snapshot) Records(id ID) []Record {
	if s == nil {
		return nil
	}
	return s.records[id]
}

// Count returns the number of records held for the given registry
func (s *Snapshot) Count(id ID) int {
	return len(s.Records(id))
}

// NewSnapshot builds a validated snapshot from in-memory records. Records are
// projected onto their registry schema.
func NewSnapshot(version string, records map[ID][]Record) (*Snapshot, error) {
	snap := &Snapshot{
		ID:      uuid.NewString(),
		Version: version,
		records: make(map[ID][]Record, len(records)),
	}
	for id, recs := range records {
		if _, err := ParseID(string(id)); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
		snap.records[id] = recs
	}
	if err := snap.validate(); err != nil {
		return nil, err
	}
	for id, recs := range snap.records {
		schema := SchemaFor(id)
		projected := make([]Record, len(recs))
		for i, rec := range recs {
			projected[i] = schema.Project(rec)
		}
		snap.records[id] = projected
	}
	return snap, nil
}

// FormatFromPath infers the snapshot format from a file extension
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ReadSnapshotFile reads and decodes the snapshot stored at path
func ReadSnapshotFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	return DecodeSnapshot(data, FormatFromPath(path))
}

// DecodeSnapshot decodes and validates a snapshot in the given format
func DecodeSnapshot(data []byte, format Format) (*Snapshot, error) {
	var (
		version string
		records map[ID][]Record
		err     error
	)

	switch format {
	case FormatJSON:
		version, records, err = decodeJSONSnapshot(data)
	case FormatYAML:
		version, records, err = decodeYAMLSnapshot(data)
	default:
		err = fmt.Errorf("unsupported snapshot format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	snap, err := NewSnapshot(version, records)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	snap.Hash = hex.EncodeToString(sum[:])
	return snap, nil
}

func decodeJSONSnapshot(data []byte) (string, map[ID][]Record, error) {
	if !gjson.ValidBytes(data) {
		return "", nil, fmt.Errorf("malformed JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return "", nil, fmt.Errorf("snapshot must be an object")
	}

	version := root.Get("version")
	if version.Exists() && version.Type != gjson.String && version.Type != gjson.Null {
		return "", nil, fmt.Errorf("version must be a string")
	}

	records := make(map[ID][]Record, len(snapshotKeys))
	for id, key := range snapshotKeys {
		list := root.Get(key)
		if !list.Exists() || list.Type == gjson.Null {
			continue
		}
		if !list.IsArray() {
			return "", nil, fmt.Errorf("%s must be an array", key)
		}
		var err error
		list.ForEach(func(idx, item gjson.Result) bool {
			if !item.IsObject() {
				err = fmt.Errorf("%s[%d] must be an object", key, idx.Int())
				return false
			}
			var rec Record
			rec, err = recordFromResult(item)
			if err != nil {
				err = fmt.Errorf("%s[%d]: %w", key, idx.Int(), err)
				return false
			}
			records[id] = append(records[id], rec)
			return true
		})
		if err != nil {
			return "", nil, err
		}
	}

	return version.String(), records, nil
}

func decodeYAMLSnapshot(data []byte) (string, map[ID][]Record, error) {
	var root yaml.MapSlice
	if err := yaml.UnmarshalWithOptions(data, &root, yaml.UseOrderedMap()); err != nil {
		return "", nil, fmt.Errorf("malformed YAML: %w", err)
	}

	var version string
	records := make(map[ID][]Record, len(snapshotKeys))
	for _, item := range root {
		key, ok := item.Key.(string)
		if !ok {
			return "", nil, fmt.Errorf("snapshot keys must be strings")
		}
		if key == "version" {
			if item.Value == nil {
				continue
			}
			v, ok := item.Value.(string)
			if !ok {
				return "", nil, fmt.Errorf("version must be a string")
			}
			version = v
			continue
		}
		id, known := idForSnapshotKey(key)
		if !known || item.Value == nil {
			continue
		}
		list, ok := item.Value.([]any)
		if !ok {
			return "", nil, fmt.Errorf("%s must be a sequence", key)
		}
		for idx, entry := range list {
			rec, err := yamlRecord(entry)
			if err != nil {
				return "", nil, fmt.Errorf("%s[%d]: %w", key, idx, err)
			}
			records[id] = append(records[id], rec)
		}
	}

	return version, records, nil
}

func idForSnapshotKey(key string) (ID, bool) {
	for id, k := range snapshotKeys {
		if k == key {
			return id, true
		}
	}
	return "", false
}

func yamlRecord(entry any) (Record, error) {
	mapping, ok := entry.(yaml.MapSlice)
	if !ok {
		return Record{}, fmt.Errorf("must be a mapping")
	}
	fields := make([]Field, 0, len(mapping))
	for _, item := range mapping {
		name, ok := item.Key.(string)
		if !ok {
			return Record{}, fmt.Errorf("field names must be strings")
		}
		v, err := yamlScalar(item.Value)
		if err != nil {
			return Record{}, fmt.Errorf("field %q: %w", name, err)
		}
		fields = append(fields, Field{Name: name, Value: v})
	}
	return NewRecord(fields...), nil
}

func yamlScalar(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(v), nil
	case bool:
		return String(strconv.FormatBool(v)), nil
	case int:
		return String(strconv.Itoa(v)), nil
	case int64:
		return String(strconv.FormatInt(v, 10)), nil
	case uint64:
		return String(strconv.FormatUint(v, 10)), nil
	case float64:
		return String(strconv.FormatFloat(v, 'f', -1, 64)), nil
	default:
		return Null(), fmt.Errorf("unsupported YAML value of type %T", raw)
	}
}

// validate checks every record against its schema and rejects duplicate
// tie-break keys within a registry
func (s *Snapshot) validate() error {
	if s.Version != "" {
		if _, err := semver.NewVersion(s.Version); err != nil {
			return fmt.Errorf("%w: version %q is not a semantic version: %w", ErrInvalidSnapshot, s.Version, err)
		}
	}

	var errs []error
	for _, id := range IDs() {
		schema := SchemaFor(id)
		seen := make(map[string]int)
		for i, rec := range s.records[id] {
			if err := schema.Validate(rec); err != nil {
				errs = append(errs, fmt.Errorf("%s[%d]: %w", snapshotKeys[id], i, err))
				continue
			}
			key := rec.GetString(schema.TieBreakKey)
			if prev, dup := seen[key]; dup {
				errs = append(errs, fmt.Errorf("%s[%d]: duplicate %s %q (first at index %d)",
					snapshotKeys[id], i, schema.TieBreakKey, key, prev))
				continue
			}
			seen[key] = i
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, errors.Join(errs...))
	}
	return nil
}
