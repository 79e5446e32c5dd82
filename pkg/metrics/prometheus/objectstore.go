package prometheus

import (
	"time"

	"github.com/marmos91/tcpfs/pkg/metrics"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// objectStoreMetrics is the Prometheus implementation of
// metrics.ObjectStoreMetrics.
type objectStoreMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	unlinkFailures    *prometheus.CounterVec
}

// NewObjectStoreMetrics creates a Prometheus-backed ObjectStoreMetrics, or a
// no-op one when metrics are disabled.
func NewObjectStoreMetrics() metrics.ObjectStoreMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopObjectStoreMetrics()
	}
	return newObjectStoreMetrics(metrics.GetRegistry())
}

func newObjectStoreMetrics(reg prometheus.Registerer) *objectStoreMetrics {
	return &objectStoreMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcpfs_objectstore_operations_total",
				Help: "Total number of object store operations by result",
			},
			[]string{"operation", "result"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tcpfs_objectstore_operation_duration_seconds",
				Help:    "Duration of object store operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		unlinkFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcpfs_objectstore_unlink_failures_total",
				Help: "Physical files left behind after their rows were removed",
			},
			[]string{"operation"},
		),
	}
}

func (m *objectStoreMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	m.operationsTotal.WithLabelValues(operation, resultOf(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *objectStoreMetrics) RecordUnlinkFailure(operation string) {
	m.unlinkFailures.WithLabelValues(operation).Inc()
}

// resultOf buckets an error into a low-cardinality label.
func resultOf(err error) string {
	if err == nil {
		return "success"
	}
	if code, ok := metadata.CodeOf(err); ok {
		return code.String()
	}
	return "error"
}
