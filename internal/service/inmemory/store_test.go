package inmemory

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/internal/service"
)

const fixtureJSON = `{
  "version": "1.0.0",
  "fda_data": [
    {"k_number": "999999", "device_name": "TestDevice1", "manufacturer_name": "ManufacturerA"},
    {"k_number": "989898", "device_name": "TestDevice1", "manufacturer_name": "Manufacturer.A"},
    {"k_number": "777777", "device_name": "TestDevice2", "manufacturer_name": "ManufacturerB"}
  ],
  "eudamed_data": [
    {"primary_di": "888888", "device_name": "TestDevice1", "manufacturer_name": "ManufacturerA"},
    {"primary_di": "878787", "device_name": "TestDevice1", "manufacturer_name": "Manufacturer__A"},
    {"primary_di": "666666", "device_name": "TestDevice3", "manufacturer_name": "ManufacturerA"}
  ]
}`

func writeSnapshot(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func newLoadedStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "snapshot.json")
	writeSnapshot(t, path, fixtureJSON)

	store := New(path)
	require.NoError(t, store.Load(context.Background()))
	return store
}

func TestStore_Query(t *testing.T) {
	t.Parallel()

	store := newLoadedStore(t)

	tests := []struct {
		name       string
		id         registry.ID
		deviceName string
		keyField   string
		want       []string
	}{
		{name: "fda exact", id: registry.FDA, deviceName: "TestDevice1", keyField: "k_number", want: []string{"999999", "989898"}},
		{name: "fda case insensitive", id: registry.FDA, deviceName: "TESTDEVICE2", keyField: "k_number", want: []string{"777777"}},
		{name: "eudamed snapshot order", id: registry.EUDAMED, deviceName: "testdevice1", keyField: "primary_di", want: []string{"888888", "878787"}},
		{name: "no match", id: registry.EUDAMED, deviceName: "TestDevice2", keyField: "primary_di", want: []string{}},
		{name: "partial names do not match", id: registry.FDA, deviceName: "TestDevice", keyField: "k_number", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := store.Query(context.Background(), tt.id, tt.deviceName)
			require.NoError(t, err)
			require.NotNil(t, got)

			keys := make([]string, len(got))
			for i, rec := range got {
				keys[i] = rec.GetString(tt.keyField)
			}
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestStore_QueryReturnsFullSchema(t *testing.T) {
	t.Parallel()

	store := newLoadedStore(t)

	got, err := store.Query(context.Background(), registry.FDA, "TestDevice2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, registry.SchemaFor(registry.FDA).Fields, got[0].Names())
}

func TestStore_QueryUnknownRegistry(t *testing.T) {
	t.Parallel()

	store := newLoadedStore(t)
	_, err := store.Query(context.Background(), registry.ID("other"), "TestDevice1")
	assert.ErrorIs(t, err, service.ErrUnknownRegistry)
}

func TestStore_NotLoaded(t *testing.T) {
	t.Parallel()

	store := New(filepath.Join(t.TempDir(), "missing.json"))

	_, err := store.Query(context.Background(), registry.FDA, "TestDevice1")
	assert.ErrorIs(t, err, service.ErrNotReady)
	assert.ErrorIs(t, store.Ping(context.Background()), service.ErrNotReady)
	assert.Error(t, store.Load(context.Background()))

	info, err := store.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BackendName, info.Backend)
	assert.Nil(t, info.LoadedAt)
	assert.Nil(t, store.Snapshot())
}

func TestStore_WithSnapshot(t *testing.T) {
	t.Parallel()

	store := New("", WithSnapshot(registry.ReferenceFixture()))
	require.NoError(t, store.Ping(context.Background()))

	got, err := store.Query(context.Background(), registry.EUDAMED, "TestDevice3")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "666666", got[0].GetString("primary_di"))
}

func TestStore_Describe(t *testing.T) {
	t.Parallel()

	loadedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "snapshot.json")
	writeSnapshot(t, path, fixtureJSON)

	store := New(path, WithClock(func() time.Time { return loadedAt }))
	require.NoError(t, store.Load(context.Background()))

	info, err := store.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, BackendName, info.Backend)
	assert.Equal(t, path, info.Source)
	assert.Equal(t, "1.0.0", info.SnapshotVersion)
	assert.NotEmpty(t, info.SnapshotID)
	require.NotNil(t, info.LoadedAt)
	assert.Equal(t, loadedAt, *info.LoadedAt)
	assert.Equal(t, map[registry.ID]int{registry.FDA: 3, registry.EUDAMED: 3}, info.RecordCounts)
}

func TestStore_Reload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "snapshot.json")
	writeSnapshot(t, path, fixtureJSON)

	store := New(path)
	ctx := context.Background()

	changed, err := store.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, changed, "first reload loads the snapshot")
	firstID := store.Snapshot().ID

	changed, err = store.Reload(ctx)
	require.NoError(t, err)
	assert.False(t, changed, "unchanged content is not reloaded")
	assert.Equal(t, firstID, store.Snapshot().ID)

	writeSnapshot(t, path, `{"version": "1.1.0", "fda_data": [{"k_number": "1", "device_name": "NewDevice"}]}`)
	changed, err = store.Reload(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "1.1.0", store.Snapshot().Version)

	got, err := store.Query(ctx, registry.FDA, "newdevice")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_ReloadRejectsDowngrade(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "snapshot.json")
	writeSnapshot(t, path, fixtureJSON)

	store := New(path)
	ctx := context.Background()
	require.NoError(t, store.Load(ctx))

	writeSnapshot(t, path, `{"version": "0.9.0"}`)
	changed, err := store.Reload(ctx)
	assert.False(t, changed)
	assert.ErrorIs(t, err, ErrDowngrade)
	assert.Equal(t, "1.0.0", store.Snapshot().Version, "loaded data is kept")
}

func TestStore_ReloadKeepsDataOnInvalidSnapshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "snapshot.json")
	writeSnapshot(t, path, fixtureJSON)

	store := New(path)
	ctx := context.Background()
	require.NoError(t, store.Load(ctx))

	writeSnapshot(t, path, `{"fda_data": [{"manufacturer_name": "no key"}]}`)
	_, err := store.Reload(ctx)
	assert.ErrorIs(t, err, registry.ErrInvalidSnapshot)
	assert.NoError(t, store.Ping(ctx))
}

func TestStore_ConcurrentQueryAndReload(t *testing.T) {
	t.Parallel()

	store := newLoadedStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := store.Query(ctx, registry.FDA, "TestDevice1")
				assert.NoError(t, err)
				assert.Len(t, got, 2)
			}
		}()
		go func() {
			defer wg.Done()
			_, err := store.Reload(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
