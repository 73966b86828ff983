// Package config provides configuration loading and management for the device registry server.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/device-registry-server/internal/telemetry"
)

const (
	// StorageTypeFile serves a snapshot file loaded into memory
	StorageTypeFile = "file"

	// StorageTypeDatabase serves registry tables in PostgreSQL
	StorageTypeDatabase = "database"

	// StorageTypeSQLite serves registry tables in an embedded SQLite database
	StorageTypeSQLite = "sqlite"

	// StorageTypeRedis serves records cached in Redis
	StorageTypeRedis = "redis"
)

const (
	// DefaultKeyCacheSize is the number of normalized manufacturer keys memoized per process
	DefaultKeyCacheSize = 4096

	// DefaultSQLiteBusyTimeout is the SQLite lock wait in seconds
	DefaultSQLiteBusyTimeout = 5

	// EnvPrefix is the prefix of environment variables read by the server
	EnvPrefix = "DEVREG"

	// DatabasePasswordEnvVar holds the database password when no passwordFile is set
	DatabasePasswordEnvVar = "DEVREG_DATABASE_PASSWORD"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Storage   StorageConfig     `yaml:"storage"`
	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Lookup    *LookupConfig     `yaml:"lookup,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// StorageConfig selects and configures the registry store
type StorageConfig struct {
	// Type is one of file, database, sqlite or redis
	Type string `yaml:"type"`

	File   *FileConfig   `yaml:"file,omitempty"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
	Redis  *RedisConfig  `yaml:"redis,omitempty"`
}

// FileConfig defines the snapshot file served from memory
type FileConfig struct {
	// Path is the JSON or YAML snapshot file
	// Can be absolute or relative to the working directory
	Path string `yaml:"path"`

	// RefreshInterval enables periodic reloads of the file (e.g., "5m").
	// Empty disables refreshing.
	RefreshInterval string `yaml:"refreshInterval,omitempty"`
}

// SQLiteConfig defines the embedded database settings
type SQLiteConfig struct {
	// Path is the database file
	Path string `yaml:"path"`

	// BusyTimeout is the maximum lock wait in seconds
	BusyTimeout int `yaml:"busyTimeout,omitempty"`

	// WALMode enables write-ahead logging
	WALMode bool `yaml:"walMode,omitempty"`
}

// RedisConfig defines the Redis connection settings
type RedisConfig struct {
	// URL is the connection URL, e.g. redis://localhost:6379/0
	URL string `yaml:"url"`

	// KeyPrefix namespaces the keys written by this deployment
	KeyPrefix string `yaml:"keyPrefix,omitempty"`

	// PoolSize is the client connection pool size
	PoolSize int `yaml:"poolSize,omitempty"`
}

// LookupConfig tunes the lookup engine
type LookupConfig struct {
	// KeyCacheSize bounds the normalized manufacturer key cache.
	// 0 selects DefaultKeyCacheSize, a negative value disables the cache.
	KeyCacheSize int `yaml:"keyCacheSize,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// This is the recommended approach for production deployments
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from DEVREG_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(DatabasePasswordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", DatabasePasswordEnvVar,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// GetConnMaxLifetime parses ConnMaxLifetime, returning 0 when unset
func (d *DatabaseConfig) GetConnMaxLifetime() (time.Duration, error) {
	if d.ConnMaxLifetime == "" {
		return 0, nil
	}
	lifetime, err := time.ParseDuration(d.ConnMaxLifetime)
	if err != nil {
		return 0, fmt.Errorf("invalid connMaxLifetime: %w", err)
	}
	return lifetime, nil
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetKeyCacheSize returns the manufacturer key cache size. A result of 0
// means the cache is disabled.
func (c *Config) GetKeyCacheSize() int {
	if c.Lookup == nil || c.Lookup.KeyCacheSize == 0 {
		return DefaultKeyCacheSize
	}
	if c.Lookup.KeyCacheSize < 0 {
		return 0
	}
	return c.Lookup.KeyCacheSize
}

// GetRefreshInterval returns the snapshot refresh interval, 0 when refreshing is off
func (c *Config) GetRefreshInterval() time.Duration {
	if c.Storage.File == nil || c.Storage.File.RefreshInterval == "" {
		return 0
	}
	// validated by LoadConfig
	interval, _ := time.ParseDuration(c.Storage.File.RefreshInterval)
	return interval
}

// GetSQLiteBusyTimeout returns the SQLite lock wait, applying the default
func (c *SQLiteConfig) GetSQLiteBusyTimeout() int {
	if c.BusyTimeout <= 0 {
		return DefaultSQLiteBusyTimeout
	}
	return c.BusyTimeout
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.Telemetry != nil {
		if err := c.Telemetry.Validate(); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}

	return nil
}

// validateStorage ensures the selected storage type has its settings
func (c *Config) validateStorage() error {
	s := c.Storage

	switch s.Type {
	case StorageTypeFile:
		if s.File == nil || s.File.Path == "" {
			return fmt.Errorf("storage: file.path is required when type is %s", StorageTypeFile)
		}
		if s.File.RefreshInterval != "" {
			interval, err := time.ParseDuration(s.File.RefreshInterval)
			if err != nil {
				return fmt.Errorf("storage: file.refreshInterval must be a valid duration (e.g., '30m', '1h'): %w", err)
			}
			if interval <= 0 {
				return fmt.Errorf("storage: file.refreshInterval must be positive, got %s", s.File.RefreshInterval)
			}
		}
	case StorageTypeDatabase:
		if c.Database == nil {
			return fmt.Errorf("storage: database configuration is required when type is %s", StorageTypeDatabase)
		}
		if err := c.Database.validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	case StorageTypeSQLite:
		if s.SQLite == nil || s.SQLite.Path == "" {
			return fmt.Errorf("storage: sqlite.path is required when type is %s", StorageTypeSQLite)
		}
	case StorageTypeRedis:
		if s.Redis == nil || s.Redis.URL == "" {
			return fmt.Errorf("storage: redis.url is required when type is %s", StorageTypeRedis)
		}
		if s.Redis.PoolSize < 0 {
			return fmt.Errorf("storage: redis.poolSize must not be negative")
		}
	case "":
		return fmt.Errorf("storage.type is required")
	default:
		return fmt.Errorf("storage: unsupported type %q (expected %s, %s, %s or %s)",
			s.Type, StorageTypeFile, StorageTypeDatabase, StorageTypeSQLite, StorageTypeRedis)
	}

	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("host is required")
	}
	if d.Port <= 0 {
		return fmt.Errorf("port must be positive, got %d", d.Port)
	}
	if d.User == "" {
		return fmt.Errorf("user is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database is required")
	}
	if _, err := d.GetConnMaxLifetime(); err != nil {
		return err
	}
	return nil
}
