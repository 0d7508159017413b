package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"skyline-data/tycho/pkg/database"
	"skyline-data/tycho/pkg/sqlcheck"
)

// warnRatio is the fraction of the size limit above which a size check
// still passes but carries a warning.
const warnRatio = 0.8

// TaskRecorder persists terminal task snapshots for auditing. A nil
// recorder disables auditing.
type TaskRecorder interface {
	RecordTask(ctx context.Context, snap Snapshot) error
}

// Config holds the export service limits.
type Config struct {
	ExportDir        string
	MaxFileSizeBytes int64
	TaskTimeout      time.Duration
	PerUserTaskLimit int
}

// SizeCheck is the result of a pre-export size check.
type SizeCheck struct {
	Allowed        bool          `json:"allowed"`
	Estimate       *SizeEstimate `json:"estimatedSize"`
	MaxBytes       int64         `json:"maxBytes"`
	MaxMB          float64       `json:"maxMb"`
	Warning        string        `json:"warning,omitempty"`
	Recommendation string        `json:"recommendation,omitempty"`
}

// Service coordinates export task submission, lookup, cancellation, and
// size checks. Limits are read under a lock so configuration reloads
// take effect without restarting in-flight tasks.
type Service struct {
	registry  *Registry
	estimator *Estimator
	metrics   *Metrics
	recorder  TaskRecorder
	logger    *slog.Logger

	mu  sync.RWMutex
	cfg Config

	wg sync.WaitGroup
}

// NewService creates a Service with the given limits. recorder may be
// nil.
func NewService(cfg Config, metrics *Metrics, recorder TaskRecorder) *Service {
	return &Service{
		registry:  NewRegistry(cfg.PerUserTaskLimit),
		estimator: NewEstimator(),
		metrics:   metrics,
		recorder:  recorder,
		logger:    slog.Default().With("component", "export.service"),
		cfg:       cfg,
	}
}

// Registry exposes the task registry, mainly for tests.
func (s *Service) Registry() *Registry {
	return s.registry
}

// SetLimits replaces the size and timeout limits. Used by config hot
// reload; the per-user task limit is fixed at construction.
func (s *Service) SetLimits(maxFileSizeBytes int64, taskTimeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxFileSizeBytes > 0 {
		s.cfg.MaxFileSizeBytes = maxFileSizeBytes
	}
	if taskTimeout > 0 {
		s.cfg.TaskTimeout = taskTimeout
	}
}

func (s *Service) limits() (int64, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.MaxFileSizeBytes, s.cfg.TaskTimeout
}

// CheckExportSize estimates the export size with the requested method
// and reports whether it fits under the limit. Estimates above 80% of
// the limit pass with a warning; estimates over the limit come back
// with a recommendation instead of an error.
func (s *Service) CheckExportSize(ctx context.Context, adapter database.Adapter, sql string, format Format, method string, sampleSize int) (*SizeCheck, error) {
	var (
		est *SizeEstimate
		err error
	)
	switch method {
	case MethodSample:
		if sampleSize <= 0 {
			sampleSize = DefaultSampleSize
		}
		est, err = s.estimator.EstimateSample(ctx, adapter, sql, format, sampleSize)
	case MethodMetadata, "":
		est, err = s.estimator.EstimateMetadata(ctx, adapter, sql, format)
	default:
		return nil, NewError(fmt.Sprintf("unknown estimation method %q", method), nil)
	}
	if err != nil {
		return nil, err
	}

	maxBytes, _ := s.limits()
	check := &SizeCheck{
		Allowed:  est.EstimatedBytes <= maxBytes,
		Estimate: est,
		MaxBytes: maxBytes,
		MaxMB:    float64(maxBytes) / (1024 * 1024),
	}
	switch {
	case !check.Allowed:
		check.Warning = NewFileSizeExceededError(est.EstimatedBytes, maxBytes).Error()
		check.Recommendation = "narrow the query with a WHERE clause or LIMIT, or export in smaller batches"
	case float64(est.EstimatedBytes) > float64(maxBytes)*warnRatio:
		check.Warning = fmt.Sprintf(
			"estimated file size (%.2f MB) is close to the maximum allowed (%.2f MB)",
			est.EstimatedMB, check.MaxMB)
	}
	s.metrics.SizeChecked(est.Method, check.Allowed)
	return check, nil
}

// ExecuteExport validates the query, rejects exports whose estimated
// size is over the limit, registers a task, and starts the background
// runner. The returned snapshot is the task in its PENDING state.
func (s *Service) ExecuteExport(ctx context.Context, adapter database.Adapter, dbName, userID, sql string, format Format, scope Scope) (Snapshot, error) {
	if res := sqlcheck.Validate(sql); !res.Valid {
		return Snapshot{}, NewError(res.Error, nil)
	}

	maxBytes, timeout := s.limits()

	// Cheap pre-check so oversized exports are rejected before a task
	// becomes visible. The runner re-checks against the effective query.
	rowCount, err := CountRows(ctx, adapter, sql)
	if err != nil {
		return Snapshot{}, err
	}
	if est := rowCount * bytesPerRow(format); est > maxBytes {
		return Snapshot{}, NewFileSizeExceededError(est, maxBytes)
	}

	id := uuid.NewString()
	task := &Task{
		ID:           id,
		UserID:       userID,
		DatabaseName: dbName,
		SQLText:      sql,
		Format:       format,
		Scope:        scope,
		FilePath:     filepath.Join(s.cfg.ExportDir, fmt.Sprintf("export-%s.%s", id, format.Extension())),
		Status:       StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.registry.Add(task); err != nil {
		return Snapshot{}, err
	}

	s.metrics.TaskStarted()
	run := &runner{
		registry:         s.registry,
		metrics:          s.metrics,
		logger:           slog.Default().With("component", "export.runner"),
		maxFileSizeBytes: maxBytes,
		taskTimeout:      timeout,
	}

	// Snapshot before the runner starts: once it is running, task
	// fields may only be read through the registry lock.
	pending := task.snapshot()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run.run(adapter, task)
		s.record(task.ID)
	}()

	s.logger.Info("export task created",
		"task_id", id,
		"user_id", userID,
		"database", dbName,
		"format", format,
		"scope", scope)
	return pending, nil
}

// GetTask returns a snapshot of the task.
func (s *Service) GetTask(id string) (Snapshot, bool) {
	return s.registry.Get(id)
}

// CancelTask cancels an active task. Returns false when the task does
// not exist or is already terminal.
func (s *Service) CancelTask(id string) bool {
	ok := s.registry.Cancel(id)
	if ok {
		s.logger.Info("export task cancellation requested", "task_id", id)
		// The runner removes the partial file at its next check; for
		// tasks cancelled before the runner opened the file there is
		// nothing to remove.
		s.record(id)
	}
	return ok
}

// FilePathFor resolves a download filename inside the export directory,
// rejecting anything that could escape it.
func (s *Service) FilePathFor(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", NewError("invalid export filename", nil)
	}
	path := filepath.Join(s.cfg.ExportDir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// Wait blocks until every background runner has finished. Used during
// shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) record(id string) {
	if s.recorder == nil {
		return
	}
	snap, ok := s.registry.Get(id)
	if !ok || !snap.Status.Terminal() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.recorder.RecordTask(ctx, snap); err != nil {
		s.logger.Warn("failed to record export task", "task_id", id, "error", err)
	}
}
