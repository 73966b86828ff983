// Package database provides a PostgreSQL-backed RegistryStore
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/device-registry-server/internal/db"
	"github.com/stacklok/device-registry-server/internal/otel"
	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/internal/service"
)

// BackendName is the storage type reported by the PostgreSQL store
const BackendName = "database"

// options holds configuration options for the database store
type options struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	source string
}

// Option is a functional option for configuring the database store
type Option func(*options) error

// WithConnectionPool sets the pgx pool the store reads from. The caller is
// responsible for closing the pool when it is done.
func WithConnectionPool(pool *pgxpool.Pool) Option {
	return func(o *options) error {
		if pool == nil {
			return fmt.Errorf("pgx pool is required")
		}
		o.pool = pool
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for the database store.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// WithSource sets the description of the database reported by Describe
func WithSource(source string) Option {
	return func(o *options) error {
		o.source = source
		return nil
	}
}

// Store implements service.RegistryStore and service.SnapshotWriter on PostgreSQL
type Store struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	source string
}

var (
	_ service.RegistryStore  = (*Store)(nil)
	_ service.SnapshotWriter = (*Store)(nil)
)

// New creates a new database-backed store with the given options
func New(opts ...Option) (*Store, error) {
	o := &options{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}

	return &Store{
		pool:   o.pool,
		tracer: o.tracer,
		source: o.source,
	}, nil
}

// Query implements service.RegistryStore.Query
func (s *Store) Query(ctx context.Context, id registry.ID, deviceName string) (_ []registry.Record, err error) {
	ctx, span := s.startSpan(ctx, "dbStore.Query",
		trace.WithAttributes(otel.AttrRegistryName.String(string(id))),
	)
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()

	if _, err := registry.ParseID(string(id)); err != nil {
		return nil, err
	}
	schema := registry.SchemaFor(id)

	rows, err := s.pool.Query(ctx, db.Postgres.LookupQuery(schema), deviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", schema.Table, err)
	}
	defer rows.Close()

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

	span.SetAttributes(otel.AttrResultCount.Int(len(records)))
	return records, nil
}

// Ping implements service.RegistryStore.Ping
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// Describe implements service.RegistryStore.Describe
func (s *Store) Describe(ctx context.Context) (_ *service.StoreInfo, err error) {
	ctx, span := s.startSpan(ctx, "dbStore.Describe")
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()

	info := &service.StoreInfo{
		Backend:      BackendName,
		Source:       s.source,
		RecordCounts: make(map[registry.ID]int),
	}

	for _, id := range registry.IDs() {
		var count int
		if err := s.pool.QueryRow(ctx, db.CountQuery(registry.SchemaFor(id))).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s records: %w", id, err)
		}
		info.RecordCounts[id] = count
	}

	var loadedAt time.Time
	err = s.pool.QueryRow(ctx,
		"SELECT version, snapshot_id, loaded_at FROM snapshot_info WHERE id = 1",
	).Scan(&info.SnapshotVersion, &info.SnapshotID, &loadedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = nil
	case err != nil:
		return nil, fmt.Errorf("failed to read snapshot info: %w", err)
	default:
		info.LoadedAt = &loadedAt
	}

	return info, nil
}

// Replace implements service.SnapshotWriter.Replace. The tables are emptied
// and refilled inside one transaction, so readers see either the previous
// data set or the new one.
func (s *Store) Replace(ctx context.Context, snap *registry.Snapshot) (err error) {
	ctx, span := s.startSpan(ctx, "dbStore.Replace",
		trace.WithAttributes(otel.AttrSnapshotVersion.String(snap.Version)),
	)
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "Failed to roll back snapshot replacement", "error", rbErr)
		}
	}()

	for _, id := range registry.IDs() {
		schema := registry.SchemaFor(id)
		if _, err := tx.Exec(ctx, db.DeleteQuery(schema)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", schema.Table, err)
		}

		rows := make([][]any, 0, snap.Count(id))
		for _, rec := range snap.Records(id) {
			values, err := db.RowValues(schema, rec)
			if err != nil {
				return err
			}
			rows = append(rows, values)
		}

		copied, err := tx.CopyFrom(ctx, pgx.Identifier{schema.Table}, schema.Fields, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy %s records: %w", schema.Table, err)
		}
		slog.DebugContext(ctx, "Copied registry records", "table", schema.Table, "rows", copied)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO snapshot_info (id, version, snapshot_id, loaded_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET version = EXCLUDED.version, snapshot_id = EXCLUDED.snapshot_id, loaded_at = EXCLUDED.loaded_at`,
		snap.Version, snap.ID)
	if err != nil {
		return fmt.Errorf("failed to record snapshot info: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}
