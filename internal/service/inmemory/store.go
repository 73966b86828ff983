// Package inmemory provides a RegistryStore that serves a snapshot file from memory
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/internal/service"
	"github.com/stacklok/device-registry-server/internal/versions"
)

// BackendName is the storage type reported by the in-memory store
const BackendName = "file"

// ErrDowngrade is returned when a reload would replace the loaded snapshot
// with an older version
var ErrDowngrade = errors.New("snapshot version is older than the loaded snapshot")

// loaded is an immutable view of a snapshot with its device-name index
type loaded struct {
	snap     *registry.Snapshot
	index    map[registry.ID]map[string][]int
	loadedAt time.Time
}

// Store implements service.RegistryStore over a snapshot held in memory
type Store struct {
	mu   sync.RWMutex // Protects data
	data *loaded

	path string
	now  func() time.Time
}

var _ service.RegistryStore = (*Store)(nil)

// Option is a functional option for configuring the Store
type Option func(*Store)

// WithClock sets the clock used to stamp load times
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithSnapshot preloads the store with a snapshot
func WithSnapshot(snap *registry.Snapshot) Option {
	return func(s *Store) {
		s.data = newLoaded(snap, time.Now())
	}
}

// New creates a store reading the snapshot file at path. The file is not
// read until Load or Reload is called.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path: path,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the snapshot file the store reads from
func (s *Store) Path() string {
	return s.path
}

// Load reads the snapshot file unconditionally
func (s *Store) Load(_ context.Context) error {
	snap, err := registry.ReadSnapshotFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	s.swap(snap)
	return nil
}

// Reload re-reads the snapshot file and swaps it in when its content changed.
// It reports whether new data was loaded. A snapshot whose version is older
// than the loaded one is rejected with ErrDowngrade and the loaded data is kept.
func (s *Store) Reload(_ context.Context) (bool, error) {
	snap, err := registry.ReadSnapshotFile(s.path)
	if err != nil {
		return false, fmt.Errorf("failed to reload snapshot: %w", err)
	}

	current := s.current()
	if current != nil {
		if current.snap.Hash != "" && current.snap.Hash == snap.Hash {
			return false, nil
		}
		if versions.IsDowngrade(snap.Version, current.snap.Version) {
			return false, fmt.Errorf("%w: %s < %s", ErrDowngrade, snap.Version, current.snap.Version)
		}
	}

	s.swap(snap)
	return true, nil
}

// Snapshot returns the loaded snapshot, or nil if nothing is loaded
func (s *Store) Snapshot() *registry.Snapshot {
	if data := s.current(); data != nil {
		return data.snap
	}
	return nil
}

// Query implements service.RegistryStore.Query
func (s *Store) Query(_ context.Context, id registry.ID, deviceName string) ([]registry.Record, error) {
	if _, err := registry.ParseID(string(id)); err != nil {
		return nil, err
	}

	data := s.current()
	if data == nil {
		return nil, service.ErrNotReady
	}

	positions := data.index[id][registry.DeviceNameKey(deviceName)]
	records := data.snap.Records(id)

	out := make([]registry.Record, len(positions))
	for i, pos := range positions {
		out[i] = records[pos]
	}
	return out, nil
}

// Ping implements service.RegistryStore.Ping
func (s *Store) Ping(_ context.Context) error {
	if s.current() == nil {
		return fmt.Errorf("%w: no snapshot loaded from %s", service.ErrNotReady, s.path)
	}
	return nil
}

// Describe implements service.RegistryStore.Describe
func (s *Store) Describe(_ context.Context) (*service.StoreInfo, error) {
	info := &service.StoreInfo{
		Backend:      BackendName,
		Source:       s.path,
		RecordCounts: make(map[registry.ID]int),
	}

	data := s.current()
	if data == nil {
		return info, nil
	}

	loadedAt := data.loadedAt
	info.SnapshotVersion = data.snap.Version
	info.SnapshotID = data.snap.ID
	info.LoadedAt = &loadedAt
	for _, id := range registry.IDs() {
		info.RecordCounts[id] = data.snap.Count(id)
	}
	return info, nil
}

func (s *Store) current() *loaded {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Store) swap(snap *registry.Snapshot) {
	data := newLoaded(snap, s.now())

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()

	slog.Info("Loaded registry snapshot",
		"path", s.path,
		"version", snap.Version,
		"snapshot_id", snap.ID,
		"fda_records", snap.Count(registry.FDA),
		"eudamed_records", snap.Count(registry.EUDAMED))
}

func newLoaded(snap *registry.Snapshot, at time.Time) *loaded {
	data := &loaded{
		snap:     snap,
		index:    make(map[registry.ID]map[string][]int, len(registry.IDs())),
		loadedAt: at,
	}
	for _, id := range registry.IDs() {
		idx := make(map[string][]int)
		for pos, rec := range snap.Records(id) {
			key := registry.DeviceNameKey(rec.GetString(registry.FieldDeviceName))
			idx[key] = append(idx[key], pos)
		}
		data.index[id] = idx
	}
	return data
}
