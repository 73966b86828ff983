package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/mock/gomock"

	storagemocks "github.com/stacklok/device-registry-server/internal/app/storage/mocks"
	"github.com/stacklok/device-registry-server/internal/config"
	"github.com/stacklok/device-registry-server/internal/service/mocks"
)

const builderSnapshot = `{
  "version": "1.0.0",
  "fda_data": [
    {"k_number": "999999", "manufacturer_name": "ManufacturerA", "device_name": "TestDevice1"},
    {"k_number": "777777", "manufacturer_name": "ManufacturerB", "device_name": "TestDevice2"}
  ],
  "eudamed_data": [
    {"primary_di": "888888", "manufacturer_name": "ManufacturerA", "device_name": "TestDevice1"}
  ]
}`

// createValidTestConfig creates a file-backed config pointing at a fresh snapshot
func createValidTestConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.json")
	require.NoError(t, os.WriteFile(path, []byte(builderSnapshot), 0o600))
	return &config.Config{
		Storage: config.StorageConfig{
			Type: config.StorageTypeFile,
			File: &config.FileConfig{Path: path},
		},
	}
}

func TestBaseConfig_Defaults(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(WithConfig(createTestAppConfig()))
	require.NoError(t, err)
	require.NotNil(t, built)
	assert.Equal(t, defaultHTTPAddress, built.address)
	assert.Equal(t, defaultRequestTimeout, built.requestTimeout)
	assert.Equal(t, defaultReadTimeout, built.readTimeout)
	assert.Equal(t, defaultWriteTimeout, built.writeTimeout)
	assert.Equal(t, defaultIdleTimeout, built.idleTimeout)
}

func TestBaseConfig_OptionError(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(
		WithConfig(createTestAppConfig()),
		WithAddress(":"),
	)
	require.Error(t, err)
	require.Nil(t, built)
}

func TestWithConfig(t *testing.T) {
	t.Parallel()
	cfg := &registryAppConfig{}
	testConfig := createTestAppConfig()

	require.NoError(t, WithConfig(testConfig)(cfg))
	assert.Equal(t, testConfig, cfg.config)
}

func TestWithAddress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		address string
		want    string
		wantErr bool
	}{
		{name: "valid address", address: ":9999", want: ":9999"},
		{name: "valid address with host", address: "127.0.0.1:9999", want: "127.0.0.1:9999"},
		{name: "valid address with localhost", address: "localhost:9999", want: "localhost:9999"},
		{name: "invalid empty address", address: "", wantErr: true},
		{name: "invalid empty port", address: ":", wantErr: true},
		{name: "invalid missing port", address: "localhost", wantErr: true},
		{name: "invalid port out of range", address: "localhost:999999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &registryAppConfig{}
			err := WithAddress(tt.address)(cfg)

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.address)
		})
	}
}

func TestWithRequestTimeout(t *testing.T) {
	t.Parallel()

	cfg := &registryAppConfig{}
	require.NoError(t, WithRequestTimeout(3*time.Second)(cfg))
	assert.Equal(t, 3*time.Second, cfg.requestTimeout)

	require.Error(t, WithRequestTimeout(0)(cfg))
	require.Error(t, WithRequestTimeout(-time.Second)(cfg))
}

func TestWithMiddlewares(t *testing.T) {
	t.Parallel()
	cfg := &registryAppConfig{}
	middleware1 := func(next http.Handler) http.Handler { return next }
	middleware2 := func(next http.Handler) http.Handler { return next }

	require.NoError(t, WithMiddlewares(middleware1, middleware2)(cfg))
	assert.Len(t, cfg.middlewares, 2)
}

func TestWithTelemetryOptions(t *testing.T) {
	t.Parallel()

	mp := sdkmetric.NewMeterProvider()
	tp := sdktrace.NewTracerProvider()
	handler := http.NotFoundHandler()

	cfg, err := baseConfig(
		WithMeterProvider(mp),
		WithTracerProvider(tp),
		WithMetricsHandler(handler),
	)
	require.NoError(t, err)
	assert.Equal(t, mp, cfg.meterProvider)
	assert.Equal(t, tp, cfg.tracerProvider)
	assert.NotNil(t, cfg.metricsHandler)
}

func TestBuildHTTPServer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name            string
		config          *registryAppConfig
		wantAddr        string
		wantReadTO      time.Duration
		wantWriteTO     time.Duration
		wantIdleTO      time.Duration
		wantMiddlewares int
	}{
		{
			name: "with default middlewares",
			config: &registryAppConfig{
				address:        ":8080",
				requestTimeout: 10 * time.Second,
				readTimeout:    10 * time.Second,
				writeTimeout:   15 * time.Second,
				idleTimeout:    60 * time.Second,
			},
			wantAddr:        ":8080",
			wantReadTO:      10 * time.Second,
			wantWriteTO:     15 * time.Second,
			wantIdleTO:      60 * time.Second,
			wantMiddlewares: 5,
		},
		{
			name: "with custom middlewares",
			config: &registryAppConfig{
				address: ":9090",
				middlewares: []func(http.Handler) http.Handler{
					func(next http.Handler) http.Handler { return next },
				},
				requestTimeout: 5 * time.Second,
				readTimeout:    5 * time.Second,
				writeTimeout:   10 * time.Second,
				idleTimeout:    30 * time.Second,
			},
			wantAddr:        ":9090",
			wantReadTO:      5 * time.Second,
			wantWriteTO:     10 * time.Second,
			wantIdleTO:      30 * time.Second,
			wantMiddlewares: 1,
		},
		{
			name: "telemetry middlewares are prepended",
			config: &registryAppConfig{
				address:        "127.0.0.1:3000",
				requestTimeout: 20 * time.Second,
				readTimeout:    20 * time.Second,
				writeTimeout:   30 * time.Second,
				idleTimeout:    120 * time.Second,
				meterProvider:  sdkmetric.NewMeterProvider(),
				tracerProvider: sdktrace.NewTracerProvider(),
			},
			wantAddr:        "127.0.0.1:3000",
			wantReadTO:      20 * time.Second,
			wantWriteTO:     30 * time.Second,
			wantIdleTO:      120 * time.Second,
			wantMiddlewares: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			server, err := buildHTTPServer(ctx, tt.config, mocks.NewMockDeviceService(ctrl))

			require.NoError(t, err)
			require.NotNil(t, server)
			assert.Equal(t, tt.wantAddr, server.Addr)
			assert.Equal(t, tt.wantReadTO, server.ReadTimeout)
			assert.Equal(t, tt.wantWriteTO, server.WriteTimeout)
			assert.Equal(t, tt.wantIdleTO, server.IdleTimeout)
			assert.NotNil(t, server.Handler)
			assert.Len(t, tt.config.middlewares, tt.wantMiddlewares)
		})
	}
}

func TestBuildServiceComponents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		config  *config.Config
		setup   func(*storagemocks.MockFactory, *mocks.MockRegistryStore)
		wantErr string
	}{
		{
			name:   "builds service on factory store",
			config: createTestAppConfig(),
			setup: func(f *storagemocks.MockFactory, s *mocks.MockRegistryStore) {
				f.EXPECT().CreateRegistryStore(gomock.Any()).Return(s, nil)
				f.EXPECT().Backend().Return(config.StorageTypeFile).AnyTimes()
			},
		},
		{
			name: "key cache disabled",
			config: &config.Config{
				Storage: createTestAppConfig().Storage,
				Lookup:  &config.LookupConfig{KeyCacheSize: -1},
			},
			setup: func(f *storagemocks.MockFactory, s *mocks.MockRegistryStore) {
				f.EXPECT().CreateRegistryStore(gomock.Any()).Return(s, nil)
				f.EXPECT().Backend().Return(config.StorageTypeFile).AnyTimes()
			},
		},
		{
			name:   "store creation failure",
			config: createTestAppConfig(),
			setup: func(f *storagemocks.MockFactory, _ *mocks.MockRegistryStore) {
				f.EXPECT().CreateRegistryStore(gomock.Any()).Return(nil, errors.New("connection refused"))
			},
			wantErr: "failed to create registry store",
		},
		{
			name:    "nil config",
			config:  nil,
			setup:   func(*storagemocks.MockFactory, *mocks.MockRegistryStore) {},
			wantErr: "config cannot be nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)

			factory := storagemocks.NewMockFactory(ctrl)
			store := mocks.NewMockRegistryStore(ctrl)
			tt.setup(factory, store)

			svc, err := buildServiceComponents(ctx, &registryAppConfig{
				config:         tt.config,
				storageFactory: factory,
				meterProvider:  sdkmetric.NewMeterProvider(),
			})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestBuildSyncComponents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("without metrics passes no options", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		factory := storagemocks.NewMockFactory(ctrl)
		refresher := &mockCoordinator{}
		factory.EXPECT().CreateRefresher(gomock.Any()).Return(refresher, nil)

		got, err := buildSyncComponents(ctx, &registryAppConfig{storageFactory: factory})
		require.NoError(t, err)
		assert.Same(t, refresher, got)
	})

	t.Run("with metrics passes sync and registry metrics", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		factory := storagemocks.NewMockFactory(ctrl)
		factory.EXPECT().CreateRefresher(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
		factory.EXPECT().Backend().Return(config.StorageTypeRedis)

		got, err := buildSyncComponents(ctx, &registryAppConfig{
			storageFactory: factory,
			meterProvider:  sdkmetric.NewMeterProvider(),
		})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("factory error", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		factory := storagemocks.NewMockFactory(ctrl)
		factory.EXPECT().CreateRefresher(gomock.Any()).Return(nil, errors.New("bad interval"))

		_, err := buildSyncComponents(ctx, &registryAppConfig{storageFactory: factory})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create snapshot refresher")
	})
}

func TestNewRegistryApp_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing config", func(t *testing.T) {
		t.Parallel()
		_, err := NewRegistryApp(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "config cannot be nil")
	})

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()
		_, err := NewRegistryApp(ctx, WithConfig(createTestAppConfig()), WithAddress(""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to build base configuration")
	})

	t.Run("storage factory failure", func(t *testing.T) {
		t.Parallel()
		cfg := &config.Config{Storage: config.StorageConfig{
			Type: config.StorageTypeFile,
			File: &config.FileConfig{Path: filepath.Join(t.TempDir(), "missing.json")},
		}}
		_, err := NewRegistryApp(ctx, WithConfig(cfg))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create storage factory")
	})

	t.Run("factory is cleaned up when a component fails", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)

		factory := storagemocks.NewMockFactory(ctrl)
		factory.EXPECT().CreateRefresher(gomock.Any()).Return(nil, nil)
		factory.EXPECT().Backend().Return(config.StorageTypeSQLite).AnyTimes()
		factory.EXPECT().CreateRegistryStore(gomock.Any()).Return(nil, errors.New("disk full"))
		factory.EXPECT().Cleanup()

		_, err := NewRegistryApp(ctx,
			WithConfig(createTestAppConfig()),
			WithStorageFactory(factory),
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to build service components")
	})
}

func TestNewRegistryApp_WithStorageFactory(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	store := mocks.NewMockRegistryStore(ctrl)
	store.EXPECT().Ping(gomock.Any()).Return(nil).AnyTimes()

	factory := storagemocks.NewMockFactory(ctrl)
	factory.EXPECT().Backend().Return(config.StorageTypeRedis).AnyTimes()
	factory.EXPECT().CreateRefresher(gomock.Any()).Return(nil, nil)
	factory.EXPECT().CreateRegistryStore(gomock.Any()).Return(store, nil)
	factory.EXPECT().Cleanup()

	app, err := NewRegistryApp(context.Background(),
		WithConfig(createTestAppConfig()),
		WithAddress("127.0.0.1:0"),
		WithStorageFactory(factory),
	)
	require.NoError(t, err)

	assert.Equal(t, config.StorageTypeRedis, app.GetComponents().Backend)
	assert.Nil(t, app.GetComponents().Refresher)

	rr := httptest.NewRecorder()
	app.GetHTTPServer().Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readiness", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	require.NoError(t, app.Stop(time.Second))
}

func TestNewRegistryApp_FileBackendEndToEnd(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	app, err := NewRegistryApp(context.Background(),
		WithConfig(createValidTestConfig(t)),
		WithAddress("127.0.0.1:0"),
		WithMeterProvider(mp),
		WithTracerProvider(tp),
		WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Stop(time.Second) })

	assert.Equal(t, config.StorageTypeFile, app.GetComponents().Backend)
	handler := app.GetHTTPServer().Handler

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/devices/combined?device_name=testdevice1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "999999", records[0]["k_number"])
	assert.Equal(t, "888888", records[0]["primary_di"])

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/get_fda_data/?device_name=TestDevice2", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "777777", records[0]["k_number"])

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.NotEmpty(t, rm.ScopeMetrics, "HTTP and lookup metrics should be recorded")

	assert.NotEmpty(t, spans.Ended(), "requests should be traced")
}
