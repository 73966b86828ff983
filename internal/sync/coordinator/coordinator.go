package coordinator

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/stacklok/device-registry-server/internal/registry"
	"github.com/stacklok/device-registry-server/internal/telemetry"
)

// Reloader is the store side of a refresh
//
//go:generate mockgen -destination=mocks/mock_reloader.go -package=mocks -source=coordinator.go Reloader
type Reloader interface {
	// Path returns the snapshot file being watched
	Path() string
	// Reload re-reads the snapshot and reports whether new data was swapped in
	Reload(ctx context.Context) (bool, error)
	// Snapshot returns the currently served snapshot, or nil
	Snapshot() *registry.Snapshot
}

// Coordinator manages background refreshes of a snapshot
type Coordinator interface {
	// Start begins the refresh loop.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the refresh loop
	Stop() error
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	reloader Reloader
	interval time.Duration

	// Lifecycle management
	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}

	// Metrics
	syncMetrics     *telemetry.SyncMetrics
	registryMetrics *telemetry.RegistryMetrics
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithSyncMetrics sets the sync metrics for the coordinator
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *defaultCoordinator) {
		c.syncMetrics = metrics
	}
}

// WithRegistryMetrics sets the registry metrics for the coordinator
func WithRegistryMetrics(metrics *telemetry.RegistryMetrics) Option {
	return func(c *defaultCoordinator) {
		c.registryMetrics = metrics
	}
}

// New creates a coordinator refreshing reloader roughly every interval
func New(reloader Reloader, interval time.Duration, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		reloader: reloader,
		interval: interval,
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// pollingInterval returns base with a random offset of up to ±10% applied
func pollingInterval(base time.Duration) time.Duration {
	jitter := base / 10
	if jitter <= 0 {
		return base
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return base + offset
}

// Start begins the refresh loop
func (c *defaultCoordinator) Start(ctx context.Context) error {
	coordCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		close(c.done)
		slog.Info("Snapshot refresher shutting down")
	}()

	interval := pollingInterval(c.interval)
	slog.Info("Starting snapshot refresher",
		"path", c.reloader.Path(),
		"base_interval", c.interval,
		"actual_interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.refresh(coordCtx)

	for {
		select {
		case <-ticker.C:
			c.refresh(coordCtx)

			ticker.Reset(pollingInterval(c.interval))
		case <-coordCtx.Done():
			slog.Info("Snapshot refresher stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping snapshot refresher")
		cancel()
		<-c.done
	}
	return nil
}

// refresh reloads the snapshot once and records the outcome
func (c *defaultCoordinator) refresh(ctx context.Context) {
	path := c.reloader.Path()
	startTime := time.Now()

	changed, err := c.reloader.Reload(ctx)
	duration := time.Since(startTime)

	if err != nil {
		slog.Error("Snapshot refresh failed", "path", path, "error", err)
		c.syncMetrics.RecordSyncDuration(ctx, path, duration, false)
		return
	}
	c.syncMetrics.RecordSyncDuration(ctx, path, duration, true)

	if !changed {
		slog.Debug("Snapshot unchanged", "path", path)
		return
	}

	snap := c.reloader.Snapshot()
	if snap == nil {
		return
	}

	hashPreview := snap.Hash
	if len(hashPreview) > 8 {
		hashPreview = hashPreview[:8]
	}
	slog.Info("Snapshot refreshed",
		"path", path,
		"version", snap.Version,
		"snapshot_id", snap.ID,
		"hash", hashPreview)

	for _, id := range registry.IDs() {
		c.registryMetrics.RecordRecordsTotal(ctx, string(id), int64(snap.Count(id)))
	}
}
