package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"skyline-data/tycho/pkg/export"
)

func newTestAuditStore(t *testing.T) *AuditStore {
	t.Helper()
	store, err := NewAuditStore(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("NewAuditStore() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestRecordTask tests persisting a terminal snapshot, including the
// replace-on-duplicate behavior used when cancellation and the runner
// both record.
func TestRecordTask(t *testing.T) {
	store := newTestAuditStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rows := int64(120)
	size := int64(4096)
	elapsed := int64(1500)
	snap := export.Snapshot{
		ID:              "task-1",
		UserID:          "alice",
		DatabaseName:    "maindb",
		Format:          export.FormatCSV,
		Scope:           export.ScopeCurrentPage,
		Status:          export.StatusCancelled,
		CreatedAt:       now,
		CompletedAt:     &now,
		RowCount:        nil,
		FileSizeBytes:   nil,
		ExecutionTimeMS: nil,
	}
	if err := store.RecordTask(ctx, snap); err != nil {
		t.Fatalf("RecordTask() failed: %v", err)
	}

	// A later, fuller record for the same task replaces the first
	snap.Status = export.StatusCompleted
	snap.RowCount = &rows
	snap.FileSizeBytes = &size
	snap.ExecutionTimeMS = &elapsed
	if err := store.RecordTask(ctx, snap); err != nil {
		t.Fatalf("second RecordTask() failed: %v", err)
	}

	var status string
	var gotRows int64
	row := store.db.QueryRowContext(ctx,
		`SELECT status, row_count FROM export_tasks WHERE id = ?`, "task-1")
	if err := row.Scan(&status, &gotRows); err != nil {
		t.Fatalf("failed to read back record: %v", err)
	}
	if status != "completed" || gotRows != 120 {
		t.Errorf("stored record = (%s, %d), want (completed, 120)", status, gotRows)
	}

	var count int
	if err := store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM export_tasks`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 record after replace, got %d", count)
	}
}

// TestSuggestionStats tests suggestion aggregation.
func TestSuggestionStats(t *testing.T) {
	store := newTestAuditStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	records := []SuggestionRecord{
		{UserID: "alice", Suggested: true, Confidence: 0.9, Format: "csv", Scope: "all_data", Accepted: true, CreatedAt: now},
		{UserID: "alice", Suggested: true, Confidence: 0.5, Format: "json", Scope: "current_page", Accepted: false, CreatedAt: now},
		{UserID: "bob", Suggested: false, Confidence: 0.1, CreatedAt: now},
	}
	for _, rec := range records {
		if err := store.RecordSuggestion(ctx, rec); err != nil {
			t.Fatalf("RecordSuggestion() failed: %v", err)
		}
	}

	stats, err := store.SuggestionStats(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("SuggestionStats() failed: %v", err)
	}
	if stats.Total != 3 || stats.Suggested != 2 || stats.Accepted != 1 {
		t.Errorf("stats = %+v, want total 3, suggested 2, accepted 1", stats)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %f, want 0.5", stats.HitRate)
	}

	// A window in the future sees nothing
	empty, err := store.SuggestionStats(ctx, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("SuggestionStats() failed: %v", err)
	}
	if empty.Total != 0 {
		t.Errorf("future window Total = %d, want 0", empty.Total)
	}
}
