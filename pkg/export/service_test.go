package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"skyline-data/tycho/internal/testutil"
)

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()
	if cfg.ExportDir == "" {
		cfg.ExportDir = t.TempDir()
	}
	if cfg.MaxFileSizeBytes == 0 {
		cfg.MaxFileSizeBytes = 100 * 1024 * 1024
	}
	if cfg.TaskTimeout == 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	if cfg.PerUserTaskLimit == 0 {
		cfg.PerUserTaskLimit = 3
	}
	return NewService(cfg, nil, nil)
}

func waitForTerminal(t *testing.T, svc *Service, id string) Snapshot {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		snap, ok := svc.GetTask(id)
		if !ok {
			t.Fatalf("task %s disappeared", id)
		}
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached a terminal state", id)
	return Snapshot{}
}

// TestExecuteExport_Completes tests the full lifecycle of a successful
// export.
func TestExecuteExport_Completes(t *testing.T) {
	cols, rows := testutil.MakeRows(25)
	adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows}
	svc := newTestService(t, Config{})

	snap, err := svc.ExecuteExport(context.Background(), adapter, "maindb", "alice",
		"SELECT * FROM users", FormatCSV, ScopeCurrentPage)
	if err != nil {
		t.Fatalf("ExecuteExport() failed: %v", err)
	}
	if snap.Status != StatusPending {
		t.Errorf("initial status = %s, want pending", snap.Status)
	}
	if !strings.HasPrefix(filepath.Base(snap.FilePath), "export-") ||
		!strings.HasSuffix(snap.FilePath, ".csv") {
		t.Errorf("unexpected file path %q", snap.FilePath)
	}

	final := waitForTerminal(t, svc, snap.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("final status = %s (error %q), want completed", final.Status, final.Error)
	}
	if final.Progress != 100 {
		t.Errorf("Progress = %d, want 100", final.Progress)
	}
	if final.RowCount == nil || *final.RowCount != 25 {
		t.Errorf("RowCount = %v, want 25", final.RowCount)
	}
	if final.CompletedAt == nil || final.StartedAt == nil {
		t.Error("expected StartedAt and CompletedAt set")
	}

	info, err := os.Stat(final.FilePath)
	if err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	if final.FileSizeBytes == nil || *final.FileSizeBytes != info.Size() {
		t.Errorf("FileSizeBytes = %v, file is %d", final.FileSizeBytes, info.Size())
	}
}

// TestExecuteExport_SnapshotIsolatedFromRunner tests that the snapshot
// returned to the caller is taken before the runner starts, so it is
// never read concurrently with the runner's registry updates.
func TestExecuteExport_SnapshotIsolatedFromRunner(t *testing.T) {
	cols, rows := testutil.MakeRows(5)
	svc := newTestService(t, Config{PerUserTaskLimit: 100})

	var ids []string
	for i := 0; i < 20; i++ {
		adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows}
		snap, err := svc.ExecuteExport(context.Background(), adapter, "maindb", "alice",
			"SELECT * FROM users", FormatCSV, ScopeCurrentPage)
		if err != nil {
			t.Fatalf("export %d failed: %v", i, err)
		}
		if snap.Status != StatusPending {
			t.Errorf("export %d: returned status = %s, want pending", i, snap.Status)
		}
		if snap.Progress != 0 {
			t.Errorf("export %d: returned progress = %d, want 0", i, snap.Progress)
		}
		ids = append(ids, snap.ID)
	}

	for _, id := range ids {
		final := waitForTerminal(t, svc, id)
		if final.Status != StatusCompleted {
			t.Errorf("task %s: status = %s, want completed", id, final.Status)
		}
	}
	svc.Wait()
}

// TestExecuteExport_OversizedRejectedSynchronously tests that an export
// estimated over the limit never creates a visible task.
func TestExecuteExport_OversizedRejectedSynchronously(t *testing.T) {
	cols, rows := testutil.MakeRows(100)
	adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows}
	svc := newTestService(t, Config{MaxFileSizeBytes: 1024}) // 100 rows * 100B > 1KB

	_, err := svc.ExecuteExport(context.Background(), adapter, "maindb", "alice",
		"SELECT * FROM users", FormatCSV, ScopeCurrentPage)

	var sizeErr *FileSizeExceededError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("expected FileSizeExceededError, got %v", err)
	}
	if svc.Registry().ActiveCount("alice") != 0 {
		t.Error("oversized export left an active task behind")
	}
}

// TestExecuteExport_InvalidSQL tests synchronous validation.
func TestExecuteExport_InvalidSQL(t *testing.T) {
	adapter := &testutil.FakeAdapter{}
	svc := newTestService(t, Config{})

	_, err := svc.ExecuteExport(context.Background(), adapter, "maindb", "alice",
		"DROP TABLE users", FormatCSV, ScopeCurrentPage)

	var expErr *Error
	if !errors.As(err, &expErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// TestExecuteExport_ConcurrentLimit tests the per-user task limit with
// slow-running exports.
func TestExecuteExport_ConcurrentLimit(t *testing.T) {
	cols, rows := testutil.MakeRows(50)
	svc := newTestService(t, Config{PerUserTaskLimit: 2})

	var ids []string
	for i := 0; i < 2; i++ {
		adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows, RowDelay: 20 * time.Millisecond}
		snap, err := svc.ExecuteExport(context.Background(), adapter, "maindb", "alice",
			"SELECT * FROM users", FormatCSV, ScopeCurrentPage)
		if err != nil {
			t.Fatalf("export %d failed: %v", i, err)
		}
		ids = append(ids, snap.ID)
	}

	adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows}
	_, err := svc.ExecuteExport(context.Background(), adapter, "maindb", "alice",
		"SELECT * FROM users", FormatCSV, ScopeCurrentPage)
	var limitErr *ConcurrentTaskLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected ConcurrentTaskLimitError, got %v", err)
	}

	// Other users are not blocked
	otherAdapter := &testutil.FakeAdapter{Cols: cols, Rows: rows}
	if _, err := svc.ExecuteExport(context.Background(), otherAdapter, "maindb", "bob",
		"SELECT * FROM users", FormatCSV, ScopeCurrentPage); err != nil {
		t.Errorf("other user's export failed: %v", err)
	}

	for _, id := range ids {
		waitForTerminal(t, svc, id)
	}
	svc.Wait()
}

// TestCancelTask tests cancellation mid-run and partial file cleanup.
func TestCancelTask(t *testing.T) {
	cols, rows := testutil.MakeRows(500)
	adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows, RowDelay: 5 * time.Millisecond}
	svc := newTestService(t, Config{})

	snap, err := svc.ExecuteExport(context.Background(), adapter, "maindb", "alice",
		"SELECT * FROM users", FormatCSV, ScopeCurrentPage)
	if err != nil {
		t.Fatalf("ExecuteExport() failed: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if !svc.CancelTask(snap.ID) {
		t.Fatal("CancelTask returned false")
	}

	final := waitForTerminal(t, svc, snap.ID)
	if final.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", final.Status)
	}

	svc.Wait()
	if _, err := os.Stat(snap.FilePath); !os.IsNotExist(err) {
		t.Errorf("expected partial file removed, stat err = %v", err)
	}

	if svc.CancelTask(snap.ID) {
		t.Error("cancelling a terminal task should return false")
	}
}

// TestExecuteExport_QueryFailureCleansUp tests that a mid-stream error
// fails the task and removes the partial file.
func TestExecuteExport_QueryFailureCleansUp(t *testing.T) {
	cols, rows := testutil.MakeRows(100)
	adapter := &testutil.FakeAdapter{
		Cols: cols, Rows: rows,
		RowErr: fmt.Errorf("connection reset"), RowErrAfter: 10,
	}
	svc := newTestService(t, Config{})

	snap, err := svc.ExecuteExport(context.Background(), adapter, "maindb", "alice",
		"SELECT * FROM users", FormatCSV, ScopeCurrentPage)
	if err != nil {
		t.Fatalf("ExecuteExport() failed: %v", err)
	}

	final := waitForTerminal(t, svc, snap.ID)
	if final.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", final.Status)
	}
	if !strings.Contains(final.Error, "connection reset") {
		t.Errorf("error %q does not mention cause", final.Error)
	}

	svc.Wait()
	if _, err := os.Stat(snap.FilePath); !os.IsNotExist(err) {
		t.Errorf("expected partial file removed, stat err = %v", err)
	}
}

// TestExecuteExport_AllDataStripsLimit tests that ALL_DATA scope
// removes the caller's LIMIT before running.
func TestExecuteExport_AllDataStripsLimit(t *testing.T) {
	cols, rows := testutil.MakeRows(10)
	adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows}
	svc := newTestService(t, Config{})

	snap, err := svc.ExecuteExport(context.Background(), adapter, "maindb", "alice",
		"SELECT * FROM users LIMIT 5", FormatJSON, ScopeAllData)
	if err != nil {
		t.Fatalf("ExecuteExport() failed: %v", err)
	}
	waitForTerminal(t, svc, snap.ID)
	svc.Wait()

	for _, q := range adapter.Queries {
		if !strings.Contains(strings.ToUpper(q), "COUNT(*)") &&
			strings.Contains(strings.ToLower(q), "limit") {
			t.Errorf("streamed query still carries LIMIT: %s", q)
		}
	}
}

// TestCheckExportSize tests the allowed/warning/blocked outcomes.
func TestCheckExportSize(t *testing.T) {
	cols, rows := testutil.MakeRows(50) // metadata estimate: 50*100 = 5000 bytes

	tests := []struct {
		name        string
		maxBytes    int64
		wantAllowed bool
		wantWarning bool
	}{
		{"well under limit", 100_000, true, false},
		{"close to limit", 6_000, true, true},
		{"over limit", 4_000, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows}
			svc := newTestService(t, Config{MaxFileSizeBytes: tt.maxBytes})

			check, err := svc.CheckExportSize(context.Background(), adapter,
				"SELECT * FROM users", FormatCSV, MethodMetadata, 0)
			if err != nil {
				t.Fatalf("CheckExportSize() failed: %v", err)
			}
			if check.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", check.Allowed, tt.wantAllowed)
			}
			if (check.Warning != "") != tt.wantWarning {
				t.Errorf("Warning = %q, wantWarning %v", check.Warning, tt.wantWarning)
			}
			if !tt.wantAllowed && check.Recommendation == "" {
				t.Error("blocked check should carry a recommendation")
			}
		})
	}
}

// TestFilePathFor tests download filename sanitization.
func TestFilePathFor(t *testing.T) {
	dir := t.TempDir()
	svc := newTestService(t, Config{ExportDir: dir})

	name := "export-abc.csv"
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.FilePathFor(name); err != nil {
		t.Errorf("FilePathFor(%q) failed: %v", name, err)
	}

	for _, bad := range []string{"", "../secret", "a/b.csv", ".hidden", "missing.csv"} {
		if _, err := svc.FilePathFor(bad); err == nil {
			t.Errorf("FilePathFor(%q) should fail", bad)
		}
	}
}

// TestSetLimits tests that hot-reloaded limits apply to new exports.
func TestSetLimits(t *testing.T) {
	cols, rows := testutil.MakeRows(100)
	adapter := &testutil.FakeAdapter{Cols: cols, Rows: rows}
	svc := newTestService(t, Config{MaxFileSizeBytes: 100_000})

	svc.SetLimits(1024, 0)

	_, err := svc.ExecuteExport(context.Background(), adapter, "maindb", "alice",
		"SELECT * FROM users", FormatCSV, ScopeCurrentPage)
	var sizeErr *FileSizeExceededError
	if !errors.As(err, &sizeErr) {
		t.Fatalf("expected FileSizeExceededError after limit reduction, got %v", err)
	}
}
