package prometheus

import (
	"time"

	"github.com/marmos91/tcpfs/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// tcpfsMetrics is the Prometheus implementation of metrics.TCPFSMetrics.
type tcpfsMetrics struct {
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	requestsInFlight       *prometheus.GaugeVec
	bytesTransferred       *prometheus.CounterVec
	activeConnections      prometheus.Gauge
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	connectionsRejected    *prometheus.CounterVec
}

// NewTCPFSMetrics creates a new Prometheus-backed TCPFSMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewTCPFSMetrics() metrics.TCPFSMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopTCPFSMetrics()
	}
	return newTCPFSMetrics(metrics.GetRegistry())
}

func newTCPFSMetrics(reg prometheus.Registerer) *tcpfsMetrics {
	return &tcpfsMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcpfs_requests_total",
				Help: "Total number of tcpfs commands by operation and status",
			},
			[]string{"operation", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "tcpfs_request_duration_milliseconds",
				Help: "Duration of tcpfs commands in milliseconds",
				Buckets: []float64{
					1,      // 1ms
					10,     // 10ms
					100,    // 100ms
					1000,   // 1s
					10000,  // 10s
					100000, // 100s
				},
			},
			[]string{"operation"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tcpfs_requests_in_flight",
				Help: "Current number of tcpfs commands being processed",
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcpfs_bytes_transferred_total",
				Help: "Total payload bytes transferred by tcpfs commands",
			},
			[]string{"operation", "direction"},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "tcpfs_active_connections",
				Help: "Current number of active tcpfs connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tcpfs_connections_accepted_total",
				Help: "Total number of tcpfs connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tcpfs_connections_closed_total",
				Help: "Total number of tcpfs connections closed",
			},
		),
		connectionsForceClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tcpfs_connections_force_closed_total",
				Help: "Total number of tcpfs connections force-closed during shutdown timeout",
			},
		),
		connectionsRejected: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tcpfs_connections_rejected_total",
				Help: "Total number of tcpfs connections refused at accept time",
			},
			[]string{"reason"},
		),
	}
}

func (m *tcpfsMetrics) RecordRequest(operation string, duration time.Duration, status string) {
	m.requestsTotal.WithLabelValues(operation, status).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(float64(duration) / float64(time.Millisecond))
}

func (m *tcpfsMetrics) RecordRequestStart(operation string) {
	m.requestsInFlight.WithLabelValues(operation).Inc()
}

func (m *tcpfsMetrics) RecordRequestEnd(operation string) {
	m.requestsInFlight.WithLabelValues(operation).Dec()
}

func (m *tcpfsMetrics) RecordBytesTransferred(operation string, direction string, bytes uint64) {
	m.bytesTransferred.WithLabelValues(operation, direction).Add(float64(bytes))
}

func (m *tcpfsMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *tcpfsMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *tcpfsMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *tcpfsMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}

func (m *tcpfsMetrics) RecordConnectionRejected(reason string) {
	m.connectionsRejected.WithLabelValues(reason).Inc()
}
