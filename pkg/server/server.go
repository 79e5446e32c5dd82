package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/tcpfs/internal/logger"
	"github.com/marmos91/tcpfs/pkg/adapter"
	"github.com/marmos91/tcpfs/pkg/gc"
	"github.com/marmos91/tcpfs/pkg/metrics"
	"github.com/marmos91/tcpfs/pkg/objectstore"
)

// DefaultStopTimeout bounds shutdown when Config.ShutdownTimeout is zero.
const DefaultStopTimeout = 30 * time.Second

// TCPFSServer manages the lifecycle of the protocol adapters, the
// reconciliation sweep and the metrics endpoint around one object service.
//
// Lifecycle:
//  1. Creation: New() with the object service
//  2. Registration: AddAdapter() for each protocol
//  3. Startup: Serve() starts the metrics server, the collector and all adapters
//  4. Shutdown: Context cancellation stops adapters in reverse order, then the
//     collector and the metrics server, then closes the service
//
// Thread safety:
// TCPFSServer is safe for concurrent use. Serve() must only be called once.
//
// Example usage:
//
//	srv := server.New(service, server.Config{ShutdownTimeout: 30 * time.Second})
//	srv.AddAdapter(tcpfs.New(tcpfsConfig, nil))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
type TCPFSServer struct {
	service *objectstore.Service
	config  Config

	// adapters contains all registered protocol adapters
	adapters []adapter.Adapter

	// mu protects the adapters slice and the served flag
	mu     sync.Mutex
	served bool
}

// Config holds the optional components of a TCPFSServer.
type Config struct {
	// ShutdownTimeout bounds the whole shutdown sequence (default: 30s)
	ShutdownTimeout time.Duration

	// Collector is started with the server and stopped on shutdown (optional)
	Collector *gc.Collector

	// Metrics serves /metrics while the server runs (optional)
	Metrics *metrics.Server
}

// New creates a TCPFSServer around service.
//
// Panics if service is nil (indicates programmer error).
func New(service *objectstore.Service, config Config) *TCPFSServer {
	if service == nil {
		panic("object service cannot be nil")
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultStopTimeout
	}

	return &TCPFSServer{
		service:  service,
		config:   config,
		adapters: make([]adapter.Adapter, 0, 2),
	}
}

// AddAdapter registers a protocol adapter and injects the shared service.
//
// Returns an error if an adapter for the same protocol, or on the same
// non-ephemeral port, is already registered.
//
// Panics if a is nil or Serve() has already been called.
func (s *TCPFSServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetService(s.service)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Serve starts every component and blocks until ctx is cancelled or an
// adapter fails.
//
// Returns:
//   - ctx.Err() if shutdown was triggered by context cancellation
//   - the first adapter error otherwise
//
// The object service is closed before Serve returns.
func (s *TCPFSServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return fmt.Errorf("Serve() has already been called on this server instance")
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	logger.Info("Starting tcpfs server with %d adapter(s)", len(adapters))

	if err := s.service.Healthcheck(ctx); err != nil {
		return fmt.Errorf("object service is unhealthy: %w", err)
	}

	// runCtx is cancelled on any shutdown trigger so every component
	// observes it, including after an adapter failure.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var metricsErr chan error
	if s.config.Metrics != nil {
		metricsErr = make(chan error, 1)
		go func() {
			metricsErr <- s.config.Metrics.Start(runCtx)
		}()
	}

	if s.config.Collector != nil {
		s.config.Collector.Start()
	}

	// Buffered to prevent goroutine leaks if several adapters fail at once
	errChan := make(chan adapterError, len(adapters))
	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			if err := a.Serve(runCtx); err != nil {
				// context.Canceled is expected during shutdown
				if !errors.Is(err, context.Canceled) && runCtx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					errChan <- adapterError{protocol: protocol, err: err}
				} else {
					logger.Debug("%s adapter stopped gracefully", protocol)
				}
			} else {
				logger.Info("%s adapter stopped", protocol)
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	cancelRun()

	stopCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.stopAllAdapters(stopCtx, adapters)

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	if s.config.Collector != nil {
		if err := s.config.Collector.Stop(stopCtx); err != nil {
			logger.Warn("Garbage collector did not stop cleanly: %v", err)
		}
	}

	if metricsErr != nil {
		if err := <-metricsErr; err != nil {
			logger.Warn("Metrics server did not stop cleanly: %v", err)
		}
	}

	if err := s.service.Close(); err != nil {
		logger.Error("Failed to close object service: %v", err)
	}

	logger.Info("tcpfs server stopped")
	return shutdownErr
}

// adapterError pairs an adapter protocol name with its error for better error reporting.
type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters initiates graceful shutdown of all adapters in reverse
// registration order. Errors are logged and do not stop the sequence.
func (s *TCPFSServer) stopAllAdapters(ctx context.Context, adapters []adapter.Adapter) {
	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (port %d)", protocol, adp.Port())

		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		} else {
			logger.Debug("%s adapter stopped", protocol)
		}
	}
}

// Adapters returns a snapshot of currently registered adapters.
func (s *TCPFSServer) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}

// Service returns the shared object service.
func (s *TCPFSServer) Service() *objectstore.Service {
	return s.service
}
