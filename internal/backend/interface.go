// Package backend builds the state store and the optional integrations from
// the application configuration.
package backend

import (
	"context"

	"splitpay/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the state blob and its health probe.
type BackendResult struct {
	Blob storage.Blob
	// Ping is nil for backends without a connection to check.
	Ping func(ctx context.Context) error
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// File specific
	StateFile string

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresDSN string

	// S3 specific
	S3Bucket    string
	S3Key       string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// BackendType represents the type of backend
type BackendType string

const (
	FileBackend     BackendType = "file"
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	S3Backend       BackendType = "s3"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FileBackend, MemoryBackend, SQLiteBackend, PostgresBackend, S3Backend:
		return true
	default:
		return false
	}
}
