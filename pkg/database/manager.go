package database

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ConnStore persists registered database connections.
type ConnStore interface {
	CreateConnection(ctx context.Context, conn *Connection) error
	GetConnection(ctx context.Context, name string) (*Connection, error)
	ListConnections(ctx context.Context) ([]*Connection, error)
	DeleteConnection(ctx context.Context, name string) error
}

// ErrConnectionNotFound is returned when a named connection does not exist.
var ErrConnectionNotFound = fmt.Errorf("database connection not found")

// Manager resolves registered connection names to live adapters.
// Adapters are opened lazily on first use and cached for the life of
// the process (or until the connection is deleted).
type Manager struct {
	store    ConnStore
	poolCfg  PoolConfig
	mu       sync.Mutex
	adapters map[string]Adapter
	logger   *slog.Logger
}

// PoolConfig carries pool sizing applied to every opened adapter.
type PoolConfig struct {
	MinPoolSize    int
	MaxPoolSize    int
	CommandTimeout time.Duration
}

// NewManager creates a connection manager over the given store.
func NewManager(store ConnStore, poolCfg PoolConfig) *Manager {
	return &Manager{
		store:    store,
		poolCfg:  poolCfg,
		adapters: make(map[string]Adapter),
		logger:   slog.Default().With("component", "database.manager"),
	}
}

// Register validates and persists a new connection, probing it first.
func (m *Manager) Register(ctx context.Context, conn *Connection) error {
	if _, ok := ParseType(string(conn.Type)); !ok {
		return fmt.Errorf("unsupported database type %q", conn.Type)
	}
	conn.CreatedAt = time.Now().UTC()

	adapter, err := m.open(ctx, conn)
	if err != nil {
		return err
	}
	if err := adapter.Ping(ctx); err != nil {
		adapter.Close()
		return fmt.Errorf("connection probe for %q failed: %w", conn.Name, err)
	}

	if err := m.store.CreateConnection(ctx, conn); err != nil {
		adapter.Close()
		return err
	}

	m.mu.Lock()
	m.adapters[conn.Name] = adapter
	m.mu.Unlock()

	m.logger.Info("registered database connection", "name", conn.Name, "type", conn.Type)
	return nil
}

// Get returns the stored record for a named connection.
func (m *Manager) Get(ctx context.Context, name string) (*Connection, error) {
	return m.store.GetConnection(ctx, name)
}

// List returns all registered connections.
func (m *Manager) List(ctx context.Context) ([]*Connection, error) {
	return m.store.ListConnections(ctx)
}

// Adapter returns a live adapter for the named connection, opening one
// if needed.
func (m *Manager) Adapter(ctx context.Context, name string) (Adapter, error) {
	m.mu.Lock()
	if adapter, ok := m.adapters[name]; ok {
		m.mu.Unlock()
		return adapter, nil
	}
	m.mu.Unlock()

	conn, err := m.store.GetConnection(ctx, name)
	if err != nil {
		return nil, err
	}

	adapter, err := m.open(ctx, conn)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.adapters[name]; ok {
		// lost the race to another opener
		adapter.Close()
		return existing, nil
	}
	m.adapters[name] = adapter
	return adapter, nil
}

// Delete removes a connection record and closes its cached adapter.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := m.store.DeleteConnection(ctx, name); err != nil {
		return err
	}

	m.mu.Lock()
	adapter, ok := m.adapters[name]
	delete(m.adapters, name)
	m.mu.Unlock()

	if ok {
		if err := adapter.Close(); err != nil {
			m.logger.Warn("failed to close adapter", "name", name, "error", err)
		}
	}
	return nil
}

// Close closes every cached adapter.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, adapter := range m.adapters {
		if err := adapter.Close(); err != nil {
			m.logger.Warn("failed to close adapter", "name", name, "error", err)
		}
		delete(m.adapters, name)
	}
	return nil
}

func (m *Manager) open(ctx context.Context, conn *Connection) (Adapter, error) {
	cfg := ConnConfig{
		Name:           conn.Name,
		URL:            conn.URL,
		MinPoolSize:    m.poolCfg.MinPoolSize,
		MaxPoolSize:    m.poolCfg.MaxPoolSize,
		CommandTimeout: m.poolCfg.CommandTimeout,
	}

	switch conn.Type {
	case TypePostgres:
		return OpenPostgres(ctx, cfg)
	case TypeMySQL:
		return OpenMySQL(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database type %q", conn.Type)
	}
}
