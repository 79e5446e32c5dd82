package prometheus

import (
	"time"

	"github.com/marmos91/tcpfs/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// gcMetrics is the Prometheus implementation of metrics.GCMetrics.
type gcMetrics struct {
	runsTotal      *prometheus.CounterVec
	runDuration    prometheus.Histogram
	scannedTotal   prometheus.Counter
	orphansDeleted prometheus.Counter
	bytesReclaimed prometheus.Counter
	deleteFailures prometheus.Counter
}

// NewGCMetrics creates a Prometheus-backed GCMetrics, or a no-op one when
// metrics are disabled.
func NewGCMetrics() metrics.GCMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopGCMetrics()
	}
	return newGCMetrics(metrics.GetRegistry())
}

func newGCMetrics(reg prometheus.Registerer) *gcMetrics {
	return &gcMetrics{
		runsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcpfs_gc_runs_total",
				Help: "Total number of reconciliation sweeps by status",
			},
			[]string{"status"},
		),
		runDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tcpfs_gc_run_duration_seconds",
				Help:    "Duration of reconciliation sweeps in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		scannedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tcpfs_gc_scanned_total",
				Help: "Total number of physical files inspected by the sweep",
			},
		),
		orphansDeleted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tcpfs_gc_orphans_deleted_total",
				Help: "Total number of orphaned physical files removed",
			},
		),
		bytesReclaimed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tcpfs_gc_bytes_reclaimed_total",
				Help: "Total size of orphaned physical files removed",
			},
		),
		deleteFailures: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tcpfs_gc_delete_failures_total",
				Help: "Total number of orphans the sweep failed to remove",
			},
		),
	}
}

func (m *gcMetrics) RecordRun(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
}

func (m *gcMetrics) RecordScanned(count int) {
	m.scannedTotal.Add(float64(count))
}

func (m *gcMetrics) RecordOrphansDeleted(count int, bytes uint64) {
	m.orphansDeleted.Add(float64(count))
	m.bytesReclaimed.Add(float64(bytes))
}

func (m *gcMetrics) RecordDeleteFailures(count int) {
	m.deleteFailures.Add(float64(count))
}
