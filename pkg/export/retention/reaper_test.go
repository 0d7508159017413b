package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestSweep tests that only expired export files are removed.
func TestSweep(t *testing.T) {
	dir := t.TempDir()

	expired := touch(t, dir, "export-old.csv", 10*24*time.Hour)
	fresh := touch(t, dir, "export-new.csv", time.Hour)
	other := touch(t, dir, "notes.txt", 30*24*time.Hour)

	reaper := NewReaper(&Config{ExportDir: dir, RetentionDays: 7})
	removed, err := reaper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, err := os.Stat(expired); !os.IsNotExist(err) {
		t.Error("expired export file not removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh export file removed")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("non-export file removed")
	}
}

// TestSweep_Disabled tests that zero retention keeps everything.
func TestSweep_Disabled(t *testing.T) {
	dir := t.TempDir()
	kept := touch(t, dir, "export-ancient.csv", 365*24*time.Hour)

	reaper := NewReaper(&Config{ExportDir: dir, RetentionDays: 0})
	removed, err := reaper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Error("file removed despite disabled retention")
	}
}

// TestSweep_MissingDir tests that a missing export directory is not an
// error.
func TestSweep_MissingDir(t *testing.T) {
	reaper := NewReaper(&Config{ExportDir: filepath.Join(t.TempDir(), "missing"), RetentionDays: 7})
	removed, err := reaper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}
