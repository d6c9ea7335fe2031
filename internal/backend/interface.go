package backend

import (
	"context"

	"bilancio/internal/importer"
	"bilancio/internal/ledger"
)

// Backend is the unified interface the HTTP layer talks to, regardless of
// which data store is configured.
type Backend interface {
	ledger.ItemWriter
	ledger.ItemReader
	ledger.TransactionWriter
	ledger.TransactionReader
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function.
// Imports is set when the store keeps import batch bookkeeping.
type BackendResult struct {
	Backend Backend
	Imports importer.BatchRecorder
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Postgres specific
	PostgresURL string
}

// BackendType selects the data store.
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
