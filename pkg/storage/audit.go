package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver (cgo)

	"skyline-data/tycho/pkg/export"
)

// AuditStore keeps a durable record of finished export tasks and of
// export suggestions shown to users. The in-memory task registry is
// process-local; this store is what survives restarts.
type AuditStore struct {
	db *sql.DB

	taskStmt       *sql.Stmt
	suggestionStmt *sql.Stmt
}

// SuggestionRecord is one export suggestion event.
type SuggestionRecord struct {
	UserID     string
	Database   string
	Suggested  bool
	Confidence float64
	Format     string
	Scope      string
	Accepted   bool
	CreatedAt  time.Time
}

// SuggestionStats aggregates suggestion outcomes for analytics.
type SuggestionStats struct {
	Total     int64   `json:"total"`
	Suggested int64   `json:"suggested"`
	Accepted  int64   `json:"accepted"`
	HitRate   float64 `json:"hitRate"`
}

// NewAuditStore opens (or creates) the audit store at dbPath.
func NewAuditStore(dbPath string) (*AuditStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &AuditStore{db: db}
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

func (s *AuditStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS export_tasks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		database_name TEXT NOT NULL,
		format TEXT NOT NULL,
		scope TEXT NOT NULL,
		status TEXT NOT NULL,
		row_count INTEGER,
		file_size_bytes INTEGER,
		error TEXT,
		created_at INTEGER NOT NULL,
		completed_at INTEGER,
		execution_time_ms INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_export_tasks_user ON export_tasks(user_id);
	CREATE INDEX IF NOT EXISTS idx_export_tasks_created ON export_tasks(created_at);

	CREATE TABLE IF NOT EXISTS export_suggestions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		database_name TEXT NOT NULL,
		suggested INTEGER NOT NULL,
		confidence REAL NOT NULL,
		format TEXT,
		scope TEXT,
		accepted INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_export_suggestions_user ON export_suggestions(user_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *AuditStore) prepareStatements() error {
	var err error

	// Cancellation can record a task before the runner's final write;
	// REPLACE keeps the later, more complete record.
	s.taskStmt, err = s.db.Prepare(`
		INSERT OR REPLACE INTO export_tasks
			(id, user_id, database_name, format, scope, status,
			 row_count, file_size_bytes, error, created_at, completed_at, execution_time_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.suggestionStmt, err = s.db.Prepare(`
		INSERT INTO export_suggestions
			(user_id, database_name, suggested, confidence, format, scope, accepted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	return err
}

// RecordTask persists a terminal export task snapshot. Implements
// export.TaskRecorder.
func (s *AuditStore) RecordTask(ctx context.Context, snap export.Snapshot) error {
	var completedAt any
	if snap.CompletedAt != nil {
		completedAt = snap.CompletedAt.Unix()
	}
	_, err := s.taskStmt.ExecContext(ctx,
		snap.ID,
		snap.UserID,
		snap.DatabaseName,
		string(snap.Format),
		string(snap.Scope),
		string(snap.Status),
		nullableInt64(snap.RowCount),
		nullableInt64(snap.FileSizeBytes),
		snap.Error,
		snap.CreatedAt.Unix(),
		completedAt,
		nullableInt64(snap.ExecutionTimeMS),
	)
	if err != nil {
		return fmt.Errorf("failed to record export task %q: %w", snap.ID, err)
	}
	return nil
}

// RecordSuggestion persists one export suggestion event.
func (s *AuditStore) RecordSuggestion(ctx context.Context, rec SuggestionRecord) error {
	_, err := s.suggestionStmt.ExecContext(ctx,
		rec.UserID,
		rec.Database,
		boolInt(rec.Suggested),
		rec.Confidence,
		rec.Format,
		rec.Scope,
		boolInt(rec.Accepted),
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record suggestion: %w", err)
	}
	return nil
}

// SuggestionStats aggregates suggestion outcomes since the given time.
func (s *AuditStore) SuggestionStats(ctx context.Context, since time.Time) (*SuggestionStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(suggested), 0),
		       COALESCE(SUM(accepted), 0)
		FROM export_suggestions WHERE created_at >= ?
	`, since.Unix())

	var stats SuggestionStats
	if err := row.Scan(&stats.Total, &stats.Suggested, &stats.Accepted); err != nil {
		return nil, fmt.Errorf("failed to query suggestion stats: %w", err)
	}
	if stats.Suggested > 0 {
		stats.HitRate = float64(stats.Accepted) / float64(stats.Suggested)
	}
	return &stats, nil
}

// Close closes the store.
func (s *AuditStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.taskStmt, s.suggestionStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
