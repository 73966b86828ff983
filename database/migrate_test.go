package database

import (
	"context"
	"io/fs"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgxURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pgx5://u:p@host:5432/db?sslmode=disable", pgxURL("postgres://u:p@host:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://u@host/db", pgxURL("postgresql://u@host/db"))
	assert.Equal(t, "pgx5://already", pgxURL("pgx5://already"))
}

func TestEmbeddedMigrations(t *testing.T) {
	t.Parallel()

	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups), "every migration needs a down step")
}

func TestMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a container runtime")
	}
	t.Parallel()

	ctx := context.Background()
	connStr, cleanup := SetupTestDBContainer(t, ctx)
	t.Cleanup(cleanup)

	m, err := GetMigrate(connStr)
	require.NoError(t, err)
	defer closeMigrate(m)

	fnames, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)

	for i := 1; i <= len(fnames); i++ {
		assert.NoError(t, m.Steps(i))
		assert.NoError(t, m.Steps(-i))
		assert.NoError(t, m.Steps(i))
	}

	version, dirty, err := GetVersion(connStr)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(len(fnames)), version)

	conn, err := pgx.Connect(ctx, connStr)
	require.NoError(t, err)
	defer func() { _ = conn.Close(ctx) }()

	for _, table := range []string{"fda_data", "eudamed_data", "snapshot_info"} {
		var exists bool
		err := conn.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}

	require.NoError(t, MigrateDown(connStr, 0))
	version, _, err = GetVersion(connStr)
	require.NoError(t, err)
	assert.Zero(t, version)
}
