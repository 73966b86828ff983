// Package redis provides a Redis-backed RegistryStore shared by several
// server replicas.
//
// Records are grouped by registry and lowercased device name and stored as
// JSON arrays under generation-scoped keys:
//
//	{prefix}:{generation}:{registry}:{device name key}
//
// The hash {prefix}:meta names the live generation together with the
// snapshot metadata. Replace writes a new generation, switches the hash to it
// in a single transaction and then removes the keys of the old generation.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/internal/service"
)

// BackendName is the storage type reported by the Redis store
const BackendName = "redis"

// DefaultKeyPrefix is used when no key prefix is configured
const DefaultKeyPrefix = "devreg"

// ErrInvalidURL is returned by Connect when the connection URL cannot be parsed
var ErrInvalidURL = errors.New("invalid redis URL")

const (
	metaGeneration = "generation"
	metaVersion    = "version"
	metaSnapshotID = "snapshot_id"
	metaLoadedAt   = "loaded_at"
	metaCountField = "count:"

	scanBatchSize = 500
)

// Config contains the Redis connection options
type Config struct {
	// URL is a redis:// or rediss:// connection URL
	URL string

	// PoolSize overrides the client connection pool size when positive
	PoolSize int

	// KeyPrefix namespaces every key written by the store
	KeyPrefix string
}

// Store implements service.RegistryStore and service.SnapshotWriter on Redis
type Store struct {
	client *goredis.Client
	prefix string
	owned  bool
	now    func() time.Time
}

var (
	_ service.RegistryStore  = (*Store)(nil)
	_ service.SnapshotWriter = (*Store)(nil)
)

// Option configures a Store
type Option func(*Store)

// WithKeyPrefix sets the key namespace. An empty prefix is ignored.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock sets the clock used to stamp loaded snapshots
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a store on an existing client. The caller keeps ownership of
// the client.
func New(client *goredis.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultKeyPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Connect dials the server described by cfg and verifies the connection.
// Close releases the client.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	clientOpts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if cfg.PoolSize > 0 {
		clientOpts.PoolSize = cfg.PoolSize
	}

	client := goredis.NewClient(clientOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	s := New(client, append([]Option{WithKeyPrefix(cfg.KeyPrefix)}, opts...)...)
	s.owned = true
	return s, nil
}

// Close closes the client if the store opened it
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func (s *Store) metaKey() string {
	return s.prefix + ":meta"
}

func (s *Store) recordsKey(generation string, id registry.ID, nameKey string) string {
	return fmt.Sprintf("%s:%s:%s:%s", s.prefix, generation, id, nameKey)
}

// Query implements service.RegistryStore.Query
func (s *Store) Query(ctx context.Context, id registry.ID, deviceName string) ([]registry.Record, error) {
	if _, err := registry.ParseID(string(id)); err != nil {
		return nil, err
	}

	generation, err := s.client.HGet(ctx, s.metaKey(), metaGeneration).Result()
	if errors.Is(err, goredis.Nil) {
		return []registry.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read live generation: %w", err)
	}

	data, err := s.client.Get(ctx, s.recordsKey(generation, id, registry.DeviceNameKey(deviceName))).Bytes()
	if errors.Is(err, goredis.Nil) {
		return []registry.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s records: %w", id, err)
	}

	records := []registry.Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode %s records: %w", id, err)
	}
	return records, nil
}

// Ping implements service.RegistryStore.Ping
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Describe implements service.RegistryStore.Describe
func (s *Store) Describe(ctx context.Context) (*service.StoreInfo, error) {
	meta, err := s.client.HGetAll(ctx, s.metaKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot info: %w", err)
	}

	info := &service.StoreInfo{
		Backend:         BackendName,
		Source:          s.prefix,
		SnapshotVersion: meta[metaVersion],
		SnapshotID:      meta[metaSnapshotID],
		RecordCounts:    make(map[registry.ID]int),
	}
	for _, id := range registry.IDs() {
		count, _ := strconv.Atoi(meta[metaCountField+string(id)])
		info.RecordCounts[id] = count
	}
	if at, err := time.Parse(time.RFC3339Nano, meta[metaLoadedAt]); err == nil {
		info.LoadedAt = &at
	}
	return info, nil
}

// Replace implements service.SnapshotWriter.Replace
func (s *Store) Replace(ctx context.Context, snap *registry.Snapshot) error {
	previous, err := s.client.HGet(ctx, s.metaKey(), metaGeneration).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("failed to read live generation: %w", err)
	}

	generation := snap.ID
	pipe := s.client.Pipeline()
	for _, id := range registry.IDs() {
		groups, order := groupByDeviceName(snap.Records(id))
		for _, nameKey := range order {
			data, err := json.Marshal(groups[nameKey])
			if err != nil {
				return fmt.Errorf("failed to encode %s records: %w", id, err)
			}
			pipe.Set(ctx, s.recordsKey(generation, id, nameKey), data, 0)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		_ = s.deleteGeneration(ctx, generation)
		return fmt.Errorf("failed to write snapshot records: %w", err)
	}

	values := map[string]any{
		metaGeneration: generation,
		metaVersion:    snap.Version,
		metaSnapshotID: snap.ID,
		metaLoadedAt:   s.now().UTC().Format(time.RFC3339Nano),
	}
	for _, id := range registry.IDs() {
		values[metaCountField+string(id)] = snap.Count(id)
	}
	if _, err := s.client.TxPipelined(ctx, func(tx goredis.Pipeliner) error {
		tx.HSet(ctx, s.metaKey(), values)
		return nil
	}); err != nil {
		_ = s.deleteGeneration(ctx, generation)
		return fmt.Errorf("failed to activate snapshot: %w", err)
	}

	if previous != "" && previous != generation {
		if err := s.deleteGeneration(ctx, previous); err != nil {
			slog.WarnContext(ctx, "Failed to remove previous snapshot generation",
				"generation", previous, "error", err)
		}
	}
	return nil
}

// deleteGeneration removes every record key of a generation
func (s *Store) deleteGeneration(ctx context.Context, generation string) error {
	iter := s.client.Scan(ctx, 0, fmt.Sprintf("%s:%s:*", s.prefix, generation), scanBatchSize).Iterator()
	batch := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := s.client.Unlink(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return s.client.Unlink(ctx, batch...).Err()
	}
	return nil
}

// groupByDeviceName buckets records by device name key keeping snapshot order
func groupByDeviceName(records []registry.Record) (map[string][]registry.Record, []string) {
	groups := make(map[string][]registry.Record)
	var order []string
	for _, rec := range records {
		key := registry.DeviceNameKey(rec.GetString(registry.FieldDeviceName))
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}
	return groups, order
}
