// Package retention removes expired export files on a schedule.
package retention

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config contains configuration for the export file reaper.
type Config struct {
	// ExportDir is the directory holding export files.
	ExportDir string

	// RetentionDays is how long export files are kept. 0 disables
	// reaping.
	RetentionDays int

	// SweepSchedule is a cron expression for scheduling sweeps, e.g.
	// "0 3 * * *" for daily at 3 AM.
	SweepSchedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		ExportDir:     "data/exports",
		RetentionDays: 7,
		SweepSchedule: "0 3 * * *",
	}
}

// Reaper deletes export files older than the retention period.
type Reaper struct {
	config *Config
	logger *slog.Logger
}

// NewReaper creates a Reaper.
func NewReaper(config *Config) *Reaper {
	if config == nil {
		config = DefaultConfig()
	}
	return &Reaper{
		config: config,
		logger: slog.Default().With("component", "export.retention"),
	}
}

// Sweep deletes export files whose modification time is older than the
// retention period. Returns the number of files removed. Files that do
// not look like export output are left alone.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	if r.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-time.Duration(r.config.RetentionDays) * 24 * time.Hour)

	entries, err := os.ReadDir(r.config.ExportDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "export-") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(r.config.ExportDir, entry.Name())
		if err := os.Remove(path); err != nil {
			r.logger.Warn("failed to remove expired export file",
				"file", entry.Name(),
				"error", err,
			)
			continue
		}
		removed++
	}
	return removed, nil
}
