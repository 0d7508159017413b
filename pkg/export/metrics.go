package export

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks export task activity for Prometheus.
type Metrics struct {
	tasksTotal    *prometheus.CounterVec
	activeTasks   prometheus.Gauge
	rowsExported  prometheus.Counter
	duration      *prometheus.HistogramVec
	fileSizeBytes prometheus.Histogram
	sizeChecks    *prometheus.CounterVec
}

// NewMetrics creates and registers export metrics on the default
// registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		tasksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tycho_export_tasks_total",
			Help: "Export tasks by format and final status.",
		}, []string{"format", "status"}),
		activeTasks: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tycho_export_active_tasks",
			Help: "Export tasks currently pending or running.",
		}),
		rowsExported: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tycho_export_rows_total",
			Help: "Total rows written across all export tasks.",
		}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tycho_export_duration_seconds",
			Help:    "Export task duration from start to terminal state.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"format"}),
		fileSizeBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tycho_export_file_size_bytes",
			Help:    "Size of completed export files.",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		sizeChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tycho_export_size_checks_total",
			Help: "Pre-export size checks by estimation method and outcome.",
		}, []string{"method", "allowed"}),
	}
}

// TaskStarted records a task entering the active set.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.activeTasks.Inc()
}

// TaskFinished records a task reaching a terminal state.
func (m *Metrics) TaskFinished(format Format, status Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.activeTasks.Dec()
	m.tasksTotal.WithLabelValues(string(format), string(status)).Inc()
	m.duration.WithLabelValues(string(format)).Observe(elapsed.Seconds())
}

// RowsExported adds to the exported row counter.
func (m *Metrics) RowsExported(n int64) {
	if m == nil {
		return
	}
	m.rowsExported.Add(float64(n))
}

// FileWritten records the size of a completed export file.
func (m *Metrics) FileWritten(sizeBytes int64) {
	if m == nil {
		return
	}
	m.fileSizeBytes.Observe(float64(sizeBytes))
}

// SizeChecked records the outcome of a pre-export size check.
func (m *Metrics) SizeChecked(method string, allowed bool) {
	if m == nil {
		return
	}
	v := "false"
	if allowed {
		v = "true"
	}
	m.sizeChecks.WithLabelValues(method, v).Inc()
}
