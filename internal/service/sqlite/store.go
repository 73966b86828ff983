// Package sqlite provides an embedded SQLite-backed RegistryStore
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/stacklok/device-registry-server/internal/db"
	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/internal/service"
)

// BackendName is the storage type reported by the SQLite store
const BackendName = "sqlite"

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

const (
	dirPermissions    = 0750
	msPerSecond       = 1000
	connectionTimeout = 5 * time.Second
)

//go:embed schema.sql
var schemaSQL string

// Config contains the SQLite connection options
type Config struct {
	// Path is the database file. The directory is created if missing.
	Path string

	// BusyTimeout is the maximum time to wait for a database lock, in seconds
	BusyTimeout int

	// WALMode enables write-ahead logging so reads continue during a load
	WALMode bool
}

// Store implements service.RegistryStore and service.SnapshotWriter on SQLite
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var (
	_ service.RegistryStore  = (*Store)(nil)
	_ service.SnapshotWriter = (*Store)(nil)
)

// Open opens or creates the database described by cfg and applies the schema
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	connStr := MemoryPath
	if cfg.Path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPermissions); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		connStr = fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on", cfg.Path, cfg.BusyTimeout*msPerSecond)
		if cfg.WALMode {
			connStr += "&_journal_mode=WAL&_synchronous=NORMAL"
		}
	}

	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// a single connection serializes writers and keeps :memory: databases alive
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}

	if _, err := sqlDB.ExecContext(ctx, schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	slog.Info("SQLite registry store opened", "path", cfg.Path, "wal", cfg.WALMode)

	return &Store{
		db:   sqlDB,
		path: cfg.Path,
		now:  time.Now,
	}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Query implements service.RegistryStore.Query
func (s *Store) Query(ctx context.Context, id registry.ID, deviceName string) ([]registry.Record, error) {
	if _, err := registry.ParseID(string(id)); err != nil {
		return nil, err
	}
	schema := registry.SchemaFor(id)

	rows, err := s.db.QueryContext(ctx, db.SQLite.LookupQuery(schema), deviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", schema.Table, err)
	}
	defer func() { _ = rows.Close() }()

	records := []registry.Record{}
	for rows.Next() {
		rec, err := db.ScanRecord(schema, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", schema.Table, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s rows: %w", schema.Table, err)
	}
	return records, nil
}

// Ping implements service.RegistryStore.Ping
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Describe implements service.RegistryStore.Describe
func (s *Store) Describe(ctx context.Context) (*service.StoreInfo, error) {
	info := &service.StoreInfo{
		Backend:      BackendName,
		Source:       s.path,
		RecordCounts: make(map[registry.ID]int),
	}

	for _, id := range registry.IDs() {
		var count int
		if err := s.db.QueryRowContext(ctx, db.CountQuery(registry.SchemaFor(id))).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s records: %w", id, err)
		}
		info.RecordCounts[id] = count
	}

	var loadedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT version, snapshot_id, loaded_at FROM snapshot_info WHERE id = 1",
	).Scan(&info.SnapshotVersion, &info.SnapshotID, &loadedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return info, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read snapshot info: %w", err)
	}

	if at, err := time.Parse(time.RFC3339Nano, loadedAt); err == nil {
		info.LoadedAt = &at
	}
	return info, nil
}

// Replace implements service.SnapshotWriter.Replace
func (s *Store) Replace(ctx context.Context, snap *registry.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Failed to roll back snapshot replacement", "error", rbErr)
		}
	}()

	for _, id := range registry.IDs() {
		if err := replaceTable(ctx, tx, registry.SchemaFor(id), snap.Records(id)); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshot_info (id, version, snapshot_id, loaded_at) VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET version = excluded.version, snapshot_id = excluded.snapshot_id, loaded_at = excluded.loaded_at`,
		snap.Version, snap.ID, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record snapshot info: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func replaceTable(ctx context.Context, tx *sql.Tx, schema registry.Schema, records []registry.Record) error {
	if _, err := tx.ExecContext(ctx, db.DeleteQuery(schema)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", schema.Table, err)
	}

	stmt, err := tx.PrepareContext(ctx, db.SQLite.InsertQuery(schema))
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", schema.Table, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		values, err := db.RowValues(schema, rec)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("failed to insert %s record %q: %w",
				schema.Table, rec.GetString(schema.TieBreakKey), err)
		}
	}
	return nil
}
