package e2e

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/tcpfs/internal/logger"
	"github.com/marmos91/tcpfs/pkg/adapter/tcpfs"
	"github.com/marmos91/tcpfs/pkg/client"
	"github.com/marmos91/tcpfs/pkg/gc"
	"github.com/marmos91/tcpfs/pkg/objectstore"
	"github.com/marmos91/tcpfs/pkg/server"
	"github.com/marmos91/tcpfs/pkg/store/content"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// TestContext provides a complete testing environment with:
// - Running tcpfs server on an ephemeral loopback port
// - A client connected to it
// - Cleanup mechanisms
type TestContext struct {
	T             *testing.T
	Config        *TestConfig
	Server        *server.TCPFSServer
	Service       *objectstore.Service
	Adapter       *tcpfs.TCPFSAdapter
	Client        *client.Client
	Collector     *gc.Collector
	MetadataStore metadata.Index
	ContentStore  content.ContentStore
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	tempDirs      []string
}

// NewTestContext creates a new test environment with the specified
// configuration and starts the server.
func NewTestContext(t *testing.T, config *TestConfig) *TestContext {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	tc := &TestContext{
		T:      t,
		Config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	tc.setupStores()
	tc.startServer()

	return tc
}

// setupStores initializes metadata and content stores based on the test configuration
func (tc *TestContext) setupStores() {
	tc.T.Helper()

	var err error

	tc.MetadataStore, err = tc.Config.CreateMetadataStore(tc.ctx, tc)
	if err != nil {
		tc.T.Fatalf("Failed to create metadata store: %v", err)
	}

	tc.ContentStore, err = tc.Config.CreateContentStore(tc.ctx, tc)
	if err != nil {
		_ = tc.MetadataStore.Close()
		tc.T.Fatalf("Failed to create content store: %v", err)
	}
}

// startServer starts the tcpfs server with the configured stores
func (tc *TestContext) startServer() {
	tc.T.Helper()

	// Always use ERROR level to keep test output clean
	logger.SetLevel("ERROR")

	tc.Service = objectstore.New(tc.MetadataStore, tc.ContentStore, objectstore.Config{
		ImplicitNamespaces: tc.Config.ImplicitNamespaces,
	}, nil)

	// The sweep only runs on demand in tests
	collector, err := gc.NewCollector(tc.MetadataStore, tc.ContentStore, gc.Config{
		GracePeriod: time.Nanosecond,
	}, nil)
	if err != nil {
		tc.T.Fatalf("Failed to create garbage collector: %v", err)
	}
	tc.Collector = collector

	tc.Adapter = tcpfs.New(tcpfs.TCPFSConfig{
		Enabled:         true,
		Address:         "127.0.0.1",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}, nil)

	tc.Server = server.New(tc.Service, server.Config{ShutdownTimeout: 10 * time.Second})
	if err := tc.Server.AddAdapter(tc.Adapter); err != nil {
		tc.T.Fatalf("Failed to add tcpfs adapter: %v", err)
	}

	tc.wg.Add(1)
	go func() {
		defer tc.wg.Done()
		if err := tc.Server.Serve(tc.ctx); err != nil && !errors.Is(err, context.Canceled) {
			tc.T.Logf("Server error: %v", err)
		}
	}()

	tc.waitForServer()

	tc.Client = client.New(client.Config{
		Address:   tc.Adapter.Addr().String(),
		IOTimeout: 30 * time.Second,
	})
}

// waitForServer waits for the adapter to bind its listener
func (tc *TestContext) waitForServer() {
	tc.T.Helper()

	select {
	case <-tc.Adapter.Ready():
	case <-time.After(10 * time.Second):
		tc.T.Fatal("Timeout waiting for server to start")
	}
}

// Cleanup stops the server, which closes the stores, and removes temporary files
func (tc *TestContext) Cleanup() {
	tc.T.Helper()

	if tc.cancel != nil {
		tc.cancel()
	}

	tc.wg.Wait()

	for _, dir := range tc.tempDirs {
		_ = os.RemoveAll(dir)
	}
}

// Context returns the context tied to the server lifetime
func (tc *TestContext) Context() context.Context {
	return tc.ctx
}

// CreateTempDir creates a temporary directory and registers it for cleanup
func (tc *TestContext) CreateTempDir(prefix string) string {
	tc.T.Helper()

	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		tc.T.Fatalf("Failed to create temp directory: %v", err)
	}
	tc.tempDirs = append(tc.tempDirs, dir)
	return dir
}

// GetConfig returns the test configuration
func (tc *TestContext) GetConfig() *TestConfig {
	return tc.Config
}
