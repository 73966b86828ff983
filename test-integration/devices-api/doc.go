// Package integration provides integration tests for the device registry API server.
// These tests run the complete server against every storage backend (file,
// SQLite, Redis and PostgreSQL) and exercise the lookup endpoints over HTTP.
package integration
