package config

import (
	"github.com/marmos91/tcpfs/pkg/metrics"
	promMetrics "github.com/marmos91/tcpfs/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// TCPFSMetrics is the collector for the tcpfs adapter (never nil)
	TCPFSMetrics metrics.TCPFSMetrics

	// ObjectStoreMetrics is the collector for the object service (never nil)
	ObjectStoreMetrics metrics.ObjectStoreMetrics

	// GCMetrics is the collector for the reconciliation sweep (never nil)
	GCMetrics metrics.GCMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations (zero overhead)
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			TCPFSMetrics:       metrics.NewNoopTCPFSMetrics(),
			ObjectStoreMetrics: metrics.NewNoopObjectStoreMetrics(),
			GCMetrics:          metrics.NewNoopGCMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:             server,
		TCPFSMetrics:       promMetrics.NewTCPFSMetrics(),
		ObjectStoreMetrics: promMetrics.NewObjectStoreMetrics(),
		GCMetrics:          promMetrics.NewGCMetrics(),
	}
}
