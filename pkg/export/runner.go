package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"skyline-data/tycho/pkg/database"
	"skyline-data/tycho/pkg/sqlcheck"
)

// progressInterval is how many rows are written between progress
// updates in the registry.
const progressInterval = 1000

// runner executes one export task in the background: re-validates the
// size, streams rows into the target file, tracks progress, and drives
// the task to a terminal state. Partial files are removed on failure
// and cancellation.
type runner struct {
	registry *Registry
	metrics  *Metrics
	logger   *slog.Logger

	maxFileSizeBytes int64
	taskTimeout      time.Duration
}

func (r *runner) run(adapter database.Adapter, task *Task) {
	started := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("export runner panic", "task_id", task.ID, "panic", rec)
			r.fail(task, fmt.Sprintf("internal error: %v", rec))
		}
		snap, _ := r.registry.Get(task.ID)
		r.metrics.TaskFinished(task.Format, snap.Status, time.Since(started))
	}()

	if task.Cancelled() {
		r.finishCancelled(task)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.taskTimeout)
	defer cancel()

	now := time.Now().UTC()
	running := StatusRunning
	r.registry.Update(task.ID, Update{Status: &running, StartedAt: &now})

	sql := task.SQLText
	if task.Scope == ScopeAllData {
		stripped, err := sqlcheck.StripLimit(sql)
		if err != nil {
			r.fail(task, fmt.Sprintf("failed to prepare query: %v", err))
			return
		}
		sql = stripped
	}

	totalRows, err := CountRows(ctx, adapter, sql)
	if err != nil {
		r.fail(task, err.Error())
		return
	}
	if est := totalRows * bytesPerRow(task.Format); est > r.maxFileSizeBytes {
		r.fail(task, NewFileSizeExceededError(est, r.maxFileSizeBytes).Error())
		return
	}

	written, err := r.stream(ctx, adapter, task, sql, totalRows)
	if err != nil {
		r.removeFile(task)
		if task.Cancelled() {
			r.finishCancelled(task)
			return
		}
		if errors.Is(err, context.DeadlineExceeded) {
			r.fail(task, fmt.Sprintf("export timed out after %s", r.taskTimeout))
			return
		}
		r.fail(task, err.Error())
		return
	}
	if task.Cancelled() {
		r.removeFile(task)
		r.finishCancelled(task)
		return
	}

	info, err := os.Stat(task.FilePath)
	if err != nil {
		r.fail(task, fmt.Sprintf("failed to stat export file: %v", err))
		return
	}

	completed := StatusCompleted
	progress := 100
	size := info.Size()
	elapsed := time.Since(started).Milliseconds()
	doneAt := time.Now().UTC()
	r.registry.Update(task.ID, Update{
		Status:          &completed,
		Progress:        &progress,
		RowCount:        &written,
		FileSizeBytes:   &size,
		CompletedAt:     &doneAt,
		ExecutionTimeMS: &elapsed,
	})
	r.metrics.RowsExported(written)
	r.metrics.FileWritten(size)
	r.logger.Info("export completed",
		"task_id", task.ID,
		"rows", written,
		"bytes", size,
		"elapsed_ms", elapsed)
}

// stream writes the query result to the task's file and returns the
// number of rows written. The caller owns cleanup of the file on error.
func (r *runner) stream(ctx context.Context, adapter database.Adapter, task *Task, sql string, totalRows int64) (int64, error) {
	rows, err := adapter.StreamQuery(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	file, err := os.Create(task.FilePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	w := newRowWriter(task.Format, file)
	if err := w.Begin(rows.Columns()); err != nil {
		return 0, err
	}

	var written int64
	for {
		if task.Cancelled() {
			return written, errors.New("cancelled")
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}

		row, err := rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, fmt.Errorf("query failed: %w", err)
		}
		if err := w.WriteRow(row); err != nil {
			return written, err
		}
		written++

		if written%progressInterval == 0 && totalRows > 0 {
			pct := int(written * 100 / totalRows)
			if pct > 99 {
				pct = 99
			}
			r.registry.Update(task.ID, Update{Progress: &pct})
		}
	}

	if err := w.End(); err != nil {
		return written, err
	}
	return written, file.Sync()
}

func (r *runner) fail(task *Task, message string) {
	r.removeFile(task)
	failed := StatusFailed
	doneAt := time.Now().UTC()
	r.registry.Update(task.ID, Update{Status: &failed, Error: &message, CompletedAt: &doneAt})
	r.logger.Error("export failed", "task_id", task.ID, "error", message)
}

// finishCancelled only logs: Cancel already flipped the status, the
// runner's job is removing the partial file.
func (r *runner) finishCancelled(task *Task) {
	r.logger.Info("export cancelled", "task_id", task.ID)
}

func (r *runner) removeFile(task *Task) {
	if err := os.Remove(task.FilePath); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("failed to remove export file", "task_id", task.ID, "error", err)
	}
}
