// Package metrics defines the observability interfaces of tcpfs components and
// the process-wide Prometheus registry backing them.
//
// Collectors are optional: every consumer accepts nil and falls back to a
// no-op implementation. The Prometheus implementations live in the
// prometheus subpackage and register themselves with GetRegistry().
//
//	metrics.InitRegistry()
//	m := prometheus.NewTCPFSMetrics()
//	adapter := tcpfs.New(config, m)
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var registry atomic.Pointer[prometheus.Registry]

// InitRegistry creates the registry on first call, with the Go runtime and
// process collectors attached. Later calls are no-ops.
func InitRegistry() {
	reg := prometheus.NewRegistry()
	if !registry.CompareAndSwap(nil, reg) {
		return
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: "tcpfs"}),
	)
}

// GetRegistry returns the registry, or nil before InitRegistry.
func GetRegistry() *prometheus.Registry {
	return registry.Load()
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return registry.Load() != nil
}
