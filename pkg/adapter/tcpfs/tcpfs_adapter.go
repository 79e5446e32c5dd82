package tcpfs

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/tcpfs/internal/logger"
	protocol "github.com/marmos91/tcpfs/internal/protocol/tcpfs"
	"github.com/marmos91/tcpfs/internal/ratelimiter"
	"github.com/marmos91/tcpfs/pkg/metrics"
	"github.com/marmos91/tcpfs/pkg/objectstore"
)

// DefaultPort is the port the tcpfs adapter listens on when none is configured.
const DefaultPort = 7070

// TCPFSAdapter implements the adapter.Adapter interface for the tcpfs protocol.
//
// The adapter owns the TCP listener and the lifecycle of every accepted
// connection. Each connection carries exactly one command and is handled by a
// TCPFSConnection in its own goroutine.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. shutdownCtx cancelled (signals in-flight commands to abort)
//  4. Wait for active connections to complete (up to ShutdownTimeout)
//  5. Force-close any remaining connections after timeout
//
// Thread safety:
// All methods are safe for concurrent use. The shutdown mechanism uses sync.Once
// so Stop() may be called multiple times.
type TCPFSAdapter struct {
	// config holds the server configuration (address, timeouts, limits)
	config TCPFSConfig

	// listener accepts client connections. Closed during shutdown.
	listener net.Listener

	// ready is closed once the listener is bound
	ready chan struct{}

	// boundPort is the port the listener actually bound (differs from
	// config.Port when that is 0)
	boundPort atomic.Int32

	// service executes commands against the shared index and content store
	service protocol.Service

	// metrics records per-command and per-connection observations
	metrics metrics.TCPFSMetrics

	// acceptLimiter throttles accepted connections; nil means unlimited
	acceptLimiter *ratelimiter.RateLimiter

	// activeConns tracks all running connection goroutines for graceful shutdown
	activeConns sync.WaitGroup

	// shutdownOnce ensures shutdown is only initiated once
	shutdownOnce sync.Once

	// shutdown is closed by initiateShutdown(), monitored by Serve()
	shutdown chan struct{}

	// connCount is the current number of active connections
	connCount atomic.Int32

	// connSemaphore limits concurrent connections when MaxConnections > 0.
	// nil means unlimited.
	connSemaphore chan struct{}

	// shutdownCtx is the parent of every command context. Cancelled during
	// shutdown so store operations observe it.
	shutdownCtx context.Context

	// cancelRequests cancels shutdownCtx
	cancelRequests context.CancelFunc

	// activeConnections maps remote address to net.Conn for forced closure
	activeConnections sync.Map
}

// TCPFSConfig holds configuration parameters for the tcpfs listener.
//
// All timeout values are per I/O call: the deadline is re-armed before every
// read and write, so a peer that keeps data flowing is never cut off, while
// a peer that stalls for longer than the timeout is.
//
// Default values (applied by New if zero):
//   - Port: 7070
//   - ReadTimeout: 30s
//   - WriteTimeout: 30s
//   - ShutdownTimeout: 30s
//   - MaxPathLength: 4096
//   - MaxObjectSize: 1GiB
//   - MetricsLogInterval: 5m
type TCPFSConfig struct {
	// Enabled controls whether the tcpfs adapter is started.
	Enabled bool `mapstructure:"enabled"`

	// Address is the interface to bind. Empty binds all interfaces.
	Address string `mapstructure:"address"`

	// Port is the TCP port to listen on. When both Port and Address are
	// empty the default port is used; an explicit Address with port 0 binds
	// an ephemeral port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// MaxConnections limits the number of concurrent client connections.
	// When reached, the accept loop waits until a connection closes.
	// 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	// AcceptRate limits newly accepted connections per second. Connections
	// above the rate (after AcceptBurst) are reset immediately.
	// 0 means unlimited.
	AcceptRate float64 `mapstructure:"accept_rate" validate:"min=0"`

	// AcceptBurst is the token bucket size for AcceptRate.
	// 0 defaults to the rate rounded up.
	AcceptBurst int `mapstructure:"accept_burst" validate:"min=0"`

	// ReadTimeout bounds every read from the client socket.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds every write to the client socket.
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"min=0"`

	// ShutdownTimeout is the maximum duration to wait for active connections
	// to finish during graceful shutdown, after which they are force-closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// MaxPathLength bounds path_len in every request header.
	MaxPathLength uint32 `mapstructure:"max_path_length"`

	// MaxObjectSize bounds file_len in UPLOAD headers. Accepts humanized
	// sizes ("512MiB") in configuration files.
	MaxObjectSize uint64 `mapstructure:"max_object_size"`

	// MetricsLogInterval is the interval at which the active connection
	// count is logged. 0 disables periodic logging.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *TCPFSConfig) applyDefaults() {
	// Note: Enabled field defaults are handled in pkg/config/defaults.go
	// to allow explicit false values from configuration files.

	if c.Port == 0 && c.Address == "" {
		c.Port = DefaultPort
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.MaxPathLength == 0 {
		c.MaxPathLength = protocol.DefaultMaxPathLength
	}
	if c.MaxObjectSize == 0 {
		c.MaxObjectSize = protocol.DefaultMaxObjectSize
	}
	if c.MetricsLogInterval == 0 {
		c.MetricsLogInterval = 5 * time.Minute
	}
}

// validate checks that the configuration is usable.
func (c *TCPFSConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.AcceptRate < 0 {
		return fmt.Errorf("invalid AcceptRate %v: must be >= 0", c.AcceptRate)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("invalid ReadTimeout %v: must be >= 0", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("invalid WriteTimeout %v: must be >= 0", c.WriteTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.MaxObjectSize > protocol.MaxWireObjectSize {
		return fmt.Errorf("invalid MaxObjectSize %s: the wire format carries at most %s",
			humanize.IBytes(c.MaxObjectSize), humanize.IBytes(protocol.MaxWireObjectSize))
	}
	return nil
}

// limits returns the codec bounds derived from the configuration.
func (c *TCPFSConfig) limits() protocol.Limits {
	return protocol.Limits{
		MaxPathLength: c.MaxPathLength,
		MaxObjectSize: c.MaxObjectSize,
	}
}

// New creates a new TCPFSAdapter with the specified configuration.
//
// The adapter is created in a stopped state. Call SetService() to inject the
// object store, then Serve() to start accepting connections.
//
// Zero values in config are replaced with defaults. Invalid configurations
// cause a panic (indicates programmer error; pkg/config validates user input
// before it gets here).
//
// tcpfsMetrics may be nil, in which case nothing is recorded.
func New(config TCPFSConfig, tcpfsMetrics metrics.TCPFSMetrics) *TCPFSAdapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid tcpfs config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("tcpfs connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("tcpfs connection limit: unlimited")
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	if tcpfsMetrics == nil {
		tcpfsMetrics = metrics.NewNoopTCPFSMetrics()
	}

	return &TCPFSAdapter{
		config:         config,
		ready:          make(chan struct{}),
		metrics:        tcpfsMetrics,
		acceptLimiter:  ratelimiter.New(config.AcceptRate, config.AcceptBurst),
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// SetService injects the shared object store.
//
// Called exactly once before Serve().
func (s *TCPFSAdapter) SetService(svc *objectstore.Service) {
	s.service = svc
	logger.Debug("tcpfs object store configured")
}

// Serve starts the tcpfs server and blocks until the context is cancelled
// or an unrecoverable error occurs.
//
// Every accepted connection is handled in its own goroutine. The shutdownCtx
// is passed to each connection and flows into the object store, so store
// operations observe shutdown.
func (s *TCPFSAdapter) Serve(ctx context.Context) error {
	if s.service == nil {
		return fmt.Errorf("tcpfs adapter has no object store: call SetService before Serve")
	}

	bindAddr := net.JoinHostPort(s.config.Address, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("failed to create tcpfs listener on %s: %w", bindAddr, err)
	}

	s.listener = listener
	select {
	case <-s.shutdown:
		// Stop won the race with the bind
		_ = listener.Close()
		return nil
	default:
	}
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.boundPort.Store(int32(tcpAddr.Port))
	}
	close(s.ready)

	logger.Info("tcpfs server listening on %s", listener.Addr())
	logger.Debug("tcpfs config: max_connections=%d accept_rate=%v read_timeout=%v write_timeout=%v max_object_size=%s",
		s.config.MaxConnections, s.config.AcceptRate, s.config.ReadTimeout, s.config.WriteTimeout,
		humanize.IBytes(s.config.MaxObjectSize))

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("tcpfs shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(ctx)
	}

	for {
		// Blocks at MaxConnections until a connection closes
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := s.listener.Accept()
		if err != nil {
			s.releaseSlot()

			select {
			case <-s.shutdown:
				// Expected: the listener was closed by initiateShutdown
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting tcpfs connection: %v", err)
				continue
			}
		}

		if !s.acceptLimiter.Allow() {
			s.releaseSlot()
			s.metrics.RecordConnectionRejected("rate_limit")
			logger.Debug("tcpfs connection from %s rejected: accept rate exceeded", tcpConn.RemoteAddr())
			abort(tcpConn)
			continue
		}

		s.activeConns.Add(1)
		currentConns := s.connCount.Add(1)

		connAddr := tcpConn.RemoteAddr().String()
		s.activeConnections.Store(connAddr, tcpConn)

		s.metrics.RecordConnectionAccepted()
		s.metrics.SetActiveConnections(currentConns)

		logger.Debug("tcpfs connection accepted from %s (active: %d)", connAddr, currentConns)

		conn := NewTCPFSConnection(s, tcpConn)
		go func(addr string) {
			defer func() {
				s.activeConnections.Delete(addr)

				s.activeConns.Done()
				currentConns := s.connCount.Add(-1)
				s.releaseSlot()

				s.metrics.RecordConnectionClosed()
				s.metrics.SetActiveConnections(currentConns)

				logger.Debug("tcpfs connection closed from %s (active: %d)", addr, currentConns)
			}()

			conn.Serve(s.shutdownCtx)
		}(connAddr)
	}
}

func (s *TCPFSAdapter) releaseSlot() {
	if s.connSemaphore != nil {
		<-s.connSemaphore
	}
}

// initiateShutdown closes the listener and cancels in-flight command contexts.
// Safe to call multiple times and from multiple goroutines.
func (s *TCPFSAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("tcpfs shutdown initiated")

		close(s.shutdown)

		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing tcpfs listener: %v", err)
			}
		}

		s.cancelRequests()
		logger.Debug("tcpfs request cancellation signal sent to all in-flight commands")
	})
}

// gracefulShutdown waits for active connections to complete, force-closing
// whatever is left after ShutdownTimeout.
//
// Returns nil if all connections completed, or an error naming how many
// connections were force-closed.
func (s *TCPFSAdapter) gracefulShutdown() error {
	activeCount := s.connCount.Load()
	logger.Info("tcpfs graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, s.config.ShutdownTimeout)

	select {
	case <-s.drained():
		logger.Info("tcpfs graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("tcpfs shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		return fmt.Errorf("tcpfs shutdown timeout: %d connections force-closed", remaining)
	}
}

// drained returns a channel closed once every connection goroutine has exited.
func (s *TCPFSAdapter) drained() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()
	return done
}

// forceCloseConnections resets every tracked connection. An interrupted
// command fails with an I/O error, which its connection handler turns into
// an abortive close; any partially written upload is discarded.
func (s *TCPFSAdapter) forceCloseConnections() {
	logger.Info("Force-closing active tcpfs connections")

	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		addr := key.(string)
		conn := value.(net.Conn)

		if err := abort(conn); err != nil {
			logger.Debug("Error force-closing connection to %s: %v", addr, err)
		} else {
			closedCount++
			s.metrics.RecordConnectionForceClosed()
			logger.Debug("Force-closed connection to %s", addr)
		}
		return true
	})

	if closedCount == 0 {
		logger.Debug("No connections to force-close")
	} else {
		logger.Info("Force-closed %d connection(s)", closedCount)
	}
}

// Stop initiates graceful shutdown of the tcpfs server.
//
// Stop is safe to call multiple times and concurrently with Serve(). It waits
// for active connections until ctx is done; a nil ctx uses ShutdownTimeout.
func (s *TCPFSAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	logger.Info("tcpfs graceful shutdown: waiting for %d active connection(s) (context timeout)",
		s.connCount.Load())

	select {
	case <-s.drained():
		logger.Info("tcpfs graceful shutdown complete: all connections closed")
		return nil

	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("tcpfs shutdown context cancelled: %d connection(s) still active: %v",
			remaining, ctx.Err())
		return ctx.Err()
	}
}

// logMetrics periodically logs the active connection count until ctx is done.
func (s *TCPFSAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("tcpfs metrics: active_connections=%d", s.connCount.Load())
		}
	}
}

// Ready returns a channel that is closed once the listener is bound.
func (s *TCPFSAdapter) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listener address, or nil before Serve has bound it.
func (s *TCPFSAdapter) Addr() net.Addr {
	select {
	case <-s.ready:
		return s.listener.Addr()
	default:
		return nil
	}
}

// GetActiveConnections returns the current number of active connections.
func (s *TCPFSAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Port returns the bound port once listening, the configured port before.
func (s *TCPFSAdapter) Port() int {
	if port := s.boundPort.Load(); port != 0 {
		return int(port)
	}
	return s.config.Port
}

// Protocol returns "tcpfs" as the protocol identifier.
func (s *TCPFSAdapter) Protocol() string {
	return "tcpfs"
}
