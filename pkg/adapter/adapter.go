package adapter

import (
	"context"

	"github.com/marmos91/tcpfs/pkg/objectstore"
)

// Adapter represents a protocol-specific server adapter that can be managed by Server.
//
// Each adapter exposes the shared object store over one wire protocol. All
// adapters share the same metadata index and content store, so an object
// written through one is immediately visible through every other.
//
// Lifecycle:
//  1. Creation: Adapter is created with protocol-specific configuration
//  2. Service injection: SetService() provides the shared object store
//  3. Startup: Serve() starts the protocol server and blocks until shutdown
//  4. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. SetService() is called
// once before Serve(), but Stop() may be called concurrently with Serve().
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful shutdown:
	//   - Stop accepting new connections
	//   - Wait for active commands to complete (with timeout)
	//   - Clean up resources
	//
	// If Serve returns before context cancellation, Server treats it as
	// a fatal error and stops all other adapters.
	//
	// Returns:
	//   - nil on graceful shutdown
	//   - error if startup fails or shutdown is not graceful
	Serve(ctx context.Context) error

	// SetService injects the object store shared by all adapters.
	//
	// Called exactly once by Server before Serve().
	SetService(svc *objectstore.Service)

	// Stop initiates graceful shutdown of the protocol server.
	//
	// Implementations must:
	//   - Be safe to call multiple times (idempotent)
	//   - Be safe to call concurrently with Serve()
	//   - Respect the context timeout for shutdown operations
	//
	// Returns:
	//   - nil if shutdown completed successfully
	//   - error if shutdown exceeded the context deadline
	Stop(ctx context.Context) error

	// Protocol returns the human-readable protocol name for logging and metrics.
	Protocol() string

	// Port returns the TCP port the adapter is listening on.
	//
	// Returns the configured port until Serve() has bound the listener, then
	// the bound port (useful when configured with port 0).
	Port() int
}
