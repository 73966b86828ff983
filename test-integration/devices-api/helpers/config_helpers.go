package helpers

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteConfigYAML writes a configuration file selecting storageType and returns its path.
// settings holds the backend section body, already indented under the backend key.
func WriteConfigYAML(dir, storageType, settings string) string {
	content := fmt.Sprintf("storage:\n  type: %s\n", storageType)
	if settings != "" {
		content += fmt.Sprintf("  %s:\n%s", storageType, settings)
	}
	return writeConfig(dir, content)
}

// WriteFileConfig writes a file-backend configuration
func WriteFileConfig(dir, snapshotPath, refreshInterval string) string {
	settings := fmt.Sprintf("    path: %s\n", snapshotPath)
	if refreshInterval != "" {
		settings += fmt.Sprintf("    refreshInterval: %s\n", refreshInterval)
	}
	return WriteConfigYAML(dir, "file", settings)
}

// WriteSQLiteConfig writes a SQLite-backend configuration with the database under dir
func WriteSQLiteConfig(dir string) string {
	return WriteConfigYAML(dir, "sqlite", fmt.Sprintf("    path: %s\n    walMode: true\n", filepath.Join(dir, "devices.db")))
}

// WriteRedisConfig writes a Redis-backend configuration
func WriteRedisConfig(dir, redisURL string) string {
	return WriteConfigYAML(dir, "redis", fmt.Sprintf("    url: %s\n    keyPrefix: itest\n", redisURL))
}

// DatabaseSettings describes a PostgreSQL server for WriteDatabaseConfig
type DatabaseSettings struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// WriteDatabaseConfig writes a PostgreSQL-backend configuration and its password file
func WriteDatabaseConfig(dir string, db DatabaseSettings) string {
	passwordFile := filepath.Join(dir, "db-password")
	if err := os.WriteFile(passwordFile, []byte(db.Password+"\n"), 0o600); err != nil {
		panic(err)
	}
	return writeConfig(dir, fmt.Sprintf(`storage:
  type: database
database:
  host: %s
  port: %d
  user: %s
  passwordFile: %s
  database: %s
  sslMode: disable
`, db.Host, db.Port, db.User, passwordFile, db.Database))
}

func writeConfig(dir, content string) string {
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		panic(err)
	}
	return path
}
