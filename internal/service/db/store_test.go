package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/device-registry-server/database"
	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/internal/service"
)

// setupTestStore creates a store backed by a migrated Postgres container
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("requires a container runtime")
	}

	pool, cleanup := database.SetupTestDB(t)
	t.Cleanup(cleanup)

	store, err := New(WithConnectionPool(pool), WithSource("devices"))
	require.NoError(t, err)
	return store
}

func TestNew_RequiresPool(t *testing.T) {
	t.Parallel()

	_, err := New()
	assert.Error(t, err)

	_, err = New(WithConnectionPool(nil))
	assert.Error(t, err)
}

func TestStore(t *testing.T) {
	t.Parallel()

	store := setupTestStore(t)
	ctx := context.Background()

	t.Run("empty database", func(t *testing.T) {
		require.NoError(t, store.Ping(ctx))

		got, err := store.Query(ctx, registry.FDA, "TestDevice1")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)

		info, err := store.Describe(ctx)
		require.NoError(t, err)
		assert.Equal(t, BackendName, info.Backend)
		assert.Nil(t, info.LoadedAt)
		assert.Equal(t, map[registry.ID]int{registry.FDA: 0, registry.EUDAMED: 0}, info.RecordCounts)
	})

	t.Run("replace and query", func(t *testing.T) {
		snap := registry.NewTestSnapshot(
			registry.WithSnapshotVersion("2.0.0"),
			registry.WithRecords(registry.FDA,
				registry.NewTestRecord(registry.FDA, "989898", registry.WithDeviceName("TestDevice1"), registry.WithManufacturer("Manufacturer.A")),
				registry.NewTestRecord(registry.FDA, "999999", registry.WithDeviceName("TestDevice1"), registry.WithManufacturer("ManufacturerA")),
			),
			registry.WithRecords(registry.EUDAMED,
				registry.NewTestRecord(registry.EUDAMED, "888888",
					registry.WithDeviceName("TestDevice1"),
					registry.WithManufacturer("ManufacturerA"),
					registry.WithField("version_number", "7")),
			),
		)
		require.NoError(t, store.Replace(ctx, snap))

		fda, err := store.Query(ctx, registry.FDA, "testdevice1")
		require.NoError(t, err)
		require.Len(t, fda, 2)
		assert.Equal(t, "989898", fda[0].GetString("k_number"), "rows are ordered by tie-break key")
		assert.Equal(t, "999999", fda[1].GetString("k_number"))
		assert.Equal(t, registry.SchemaFor(registry.FDA).Fields, fda[0].Names())

		eudamed, err := store.Query(ctx, registry.EUDAMED, "TESTDEVICE1")
		require.NoError(t, err)
		require.Len(t, eudamed, 1)
		assert.Equal(t, "7", eudamed[0].GetString("version_number"))
		v, _ := eudamed[0].Get("container_package_count")
		assert.False(t, v.Valid)

		info, err := store.Describe(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2.0.0", info.SnapshotVersion)
		assert.Equal(t, snap.ID, info.SnapshotID)
		assert.NotNil(t, info.LoadedAt)
		assert.Equal(t, map[registry.ID]int{registry.FDA: 2, registry.EUDAMED: 1}, info.RecordCounts)
	})

	t.Run("replace drops previous data", func(t *testing.T) {
		require.NoError(t, store.Replace(ctx, registry.ReferenceFixture()))

		got, err := store.Query(ctx, registry.FDA, "TestDevice2")
		require.NoError(t, err)
		require.Len(t, got, 1)

		info, err := store.Describe(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[registry.ID]int{registry.FDA: 3, registry.EUDAMED: 3}, info.RecordCounts)
	})

	t.Run("unknown registry", func(t *testing.T) {
		_, err := store.Query(ctx, registry.ID("other"), "TestDevice1")
		assert.ErrorIs(t, err, service.ErrUnknownRegistry)
	})
}
