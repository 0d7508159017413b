package export

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Format is the target file format for an export.
type Format string

const (
	// FormatCSV is comma-separated values with a UTF-8 BOM and header row.
	FormatCSV Format = "csv"
	// FormatJSON is a single streamed JSON array of row objects.
	FormatJSON Format = "json"
	// FormatMarkdown is a Markdown table.
	FormatMarkdown Format = "markdown"
)

// ParseFormat parses a format string.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("invalid export format %q", s)
	}
}

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatMarkdown:
		return "md"
	default:
		return "csv"
	}
}

// ContentType returns the download content type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatMarkdown:
		return "text/markdown"
	default:
		return "text/csv"
	}
}

// Scope controls whether the query runs as given (current page, already
// limited by the caller) or is re-run without the caller's LIMIT.
type Scope string

const (
	// ScopeCurrentPage exports the query exactly as provided.
	ScopeCurrentPage Scope = "current_page"
	// ScopeAllData strips the caller's LIMIT and exports every row.
	ScopeAllData Scope = "all_data"
)

// ParseScope parses a scope string.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "current_page":
		return ScopeCurrentPage, nil
	case "all_data":
		return ScopeAllData, nil
	default:
		return "", fmt.Errorf("invalid export scope %q", s)
	}
}

// Status is the lifecycle state of an export task.
type Status string

const (
	// StatusPending means the task is registered but not yet running.
	StatusPending Status = "pending"
	// StatusRunning means the background runner is streaming rows.
	StatusRunning Status = "running"
	// StatusCompleted means the file was fully written.
	StatusCompleted Status = "completed"
	// StatusFailed means the run errored; the partial file was removed.
	StatusFailed Status = "failed"
	// StatusCancelled means the task was cancelled; any partial file was removed.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Active reports whether the status counts against the per-user
// concurrency limit.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusRunning
}

// Task is the mutable in-process state of one export. All mutation goes
// through the Registry; readers get copies via Snapshot.
type Task struct {
	ID           string
	UserID       string
	DatabaseName string
	SQLText      string
	Format       Format
	Scope        Scope
	FilePath     string

	Status          Status
	Progress        int
	RowCount        *int64
	FileSizeBytes   *int64
	Error           string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	ExecutionTimeMS *int64

	// cancelled is a one-way flag checked cooperatively between row
	// writes. Once set it is never cleared.
	cancelled atomic.Bool
}

// Cancel sets the cooperative cancellation flag.
func (t *Task) Cancel() {
	t.cancelled.Store(true)
}

// Cancelled reports whether cancellation was requested.
func (t *Task) Cancelled() bool {
	return t.cancelled.Load()
}

// snapshot copies the mutable fields under the registry lock.
func (t *Task) snapshot() Snapshot {
	return Snapshot{
		ID:              t.ID,
		UserID:          t.UserID,
		DatabaseName:    t.DatabaseName,
		SQLText:         t.SQLText,
		Format:          t.Format,
		Scope:           t.Scope,
		FilePath:        t.FilePath,
		Status:          t.Status,
		Progress:        t.Progress,
		RowCount:        copyInt64(t.RowCount),
		FileSizeBytes:   copyInt64(t.FileSizeBytes),
		Error:           t.Error,
		CreatedAt:       t.CreatedAt,
		StartedAt:       copyTime(t.StartedAt),
		CompletedAt:     copyTime(t.CompletedAt),
		ExecutionTimeMS: copyInt64(t.ExecutionTimeMS),
	}
}

// Snapshot is an immutable copy of a task's state at one point in time.
type Snapshot struct {
	ID              string
	UserID          string
	DatabaseName    string
	SQLText         string
	Format          Format
	Scope           Scope
	FilePath        string
	Status          Status
	Progress        int
	RowCount        *int64
	FileSizeBytes   *int64
	Error           string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	ExecutionTimeMS *int64
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
