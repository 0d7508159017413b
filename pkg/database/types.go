package database

import (
	"context"
	"time"
)

// Type identifies a supported database engine.
type Type string

const (
	// TypePostgres is PostgreSQL.
	TypePostgres Type = "postgresql"
	// TypeMySQL is MySQL.
	TypeMySQL Type = "mysql"
)

// ParseType parses a database type string.
func ParseType(s string) (Type, bool) {
	switch s {
	case "postgresql", "postgres":
		return TypePostgres, true
	case "mysql":
		return TypeMySQL, true
	default:
		return "", false
	}
}

// Column describes one column of a query result.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Row is a single result row keyed by column name. Values are normalized
// Go types: nil, string, int64, float64, bool, time.Time, []byte, or
// decimal.Decimal for fixed-point numeric columns.
type Row map[string]any

// QueryResult is a fully materialized query result.
type QueryResult struct {
	Columns         []Column `json:"columns"`
	Rows            []Row    `json:"rows"`
	RowCount        int64    `json:"rowCount"`
	ExecutionTimeMS int64    `json:"executionTimeMs"`
}

// RowStream yields rows one at a time without materializing the full
// result set. Next returns io.EOF when the stream is exhausted. Close
// must be called regardless of how iteration ends.
type RowStream interface {
	Columns() []Column
	Next() (Row, error)
	Close() error
}

// Adapter executes read-only queries against one database connection.
// Implementations are safe for concurrent use.
type Adapter interface {
	// ExecuteQuery runs the query and returns the materialized result.
	ExecuteQuery(ctx context.Context, sql string) (*QueryResult, error)

	// StreamQuery runs the query and returns a row stream for results
	// too large to hold in memory.
	StreamQuery(ctx context.Context, sql string) (RowStream, error)

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}

// ConnConfig holds the settings for opening an adapter.
type ConnConfig struct {
	// Name is the registered connection name.
	Name string

	// URL is the connection string (postgres:// or mysql DSN).
	URL string

	// MinPoolSize is the minimum number of pooled connections.
	MinPoolSize int

	// MaxPoolSize is the maximum number of pooled connections.
	MaxPoolSize int

	// CommandTimeout bounds individual statement execution.
	CommandTimeout time.Duration
}

// Connection is a registered database connection record.
type Connection struct {
	Name      string    `json:"name"`
	Type      Type      `json:"dbType"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}
