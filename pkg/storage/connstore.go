// Package storage provides the SQLite-backed persistence layers:
// registered database connections and export/suggestion audit records.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"skyline-data/tycho/pkg/database"
)

// ConnStore persists registered database connections. It implements
// database.ConnStore.
type ConnStore struct {
	db *sql.DB

	createStmt *sql.Stmt
	getStmt    *sql.Stmt
	listStmt   *sql.Stmt
	deleteStmt *sql.Stmt
}

// NewConnStore opens (or creates) the connection store at dbPath.
func NewConnStore(dbPath string) (*ConnStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &ConnStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return store, nil
}

func (s *ConnStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS database_connections (
		name TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		url TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *ConnStore) prepareStatements() error {
	var err error

	s.createStmt, err = s.db.Prepare(`
		INSERT INTO database_connections (name, type, url, created_at)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.getStmt, err = s.db.Prepare(`
		SELECT name, type, url, created_at
		FROM database_connections WHERE name = ?
	`)
	if err != nil {
		return err
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT name, type, url, created_at
		FROM database_connections ORDER BY name
	`)
	if err != nil {
		return err
	}

	s.deleteStmt, err = s.db.Prepare(`DELETE FROM database_connections WHERE name = ?`)
	return err
}

// CreateConnection persists a new registered connection. Returns
// ErrConnectionExists when the name is already taken.
func (s *ConnStore) CreateConnection(ctx context.Context, conn *database.Connection) error {
	_, err := s.createStmt.ExecContext(ctx,
		conn.Name,
		string(conn.Type),
		conn.URL,
		conn.CreatedAt.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrConnectionExists
		}
		return fmt.Errorf("failed to save connection %q: %w", conn.Name, err)
	}
	return nil
}

// GetConnection returns the named connection, or
// database.ErrConnectionNotFound.
func (s *ConnStore) GetConnection(ctx context.Context, name string) (*database.Connection, error) {
	return scanConnection(s.getStmt.QueryRowContext(ctx, name))
}

// ListConnections returns all registered connections ordered by name.
func (s *ConnStore) ListConnections(ctx context.Context) ([]*database.Connection, error) {
	rows, err := s.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var out []*database.Connection
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conn)
	}
	return out, rows.Err()
}

// DeleteConnection removes the named connection. Returns
// database.ErrConnectionNotFound if it does not exist.
func (s *ConnStore) DeleteConnection(ctx context.Context, name string) error {
	res, err := s.deleteStmt.ExecContext(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to delete connection %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return database.ErrConnectionNotFound
	}
	return nil
}

// Close closes the store.
func (s *ConnStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.createStmt, s.getStmt, s.listStmt, s.deleteStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

// ErrConnectionExists is returned when registering a connection under a
// name that is already taken.
var ErrConnectionExists = fmt.Errorf("database connection already exists")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*database.Connection, error) {
	var (
		conn      database.Connection
		typ       string
		createdAt int64
	)
	err := row.Scan(&conn.Name, &typ, &conn.URL, &createdAt)
	if err == sql.ErrNoRows {
		return nil, database.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan connection: %w", err)
	}

	parsed, ok := database.ParseType(typ)
	if !ok {
		return nil, fmt.Errorf("unsupported database type %q", typ)
	}
	conn.Type = parsed
	conn.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &conn, nil
}
