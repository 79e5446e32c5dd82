// Package sqlite implements metadata.Index on an embedded SQLite database.
//
// The store uses zombiezen.com/go/sqlite (a cgo-free SQLite driver) behind a
// fixed-size connection pool. Namespace totals are maintained by triggers on
// the objects table, so every insert, replace, or delete adjusts the aggregate
// inside the same transaction as the row mutation. Write transactions use
// BEGIN IMMEDIATE, which serializes writers at the engine level.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/marmos91/tcpfs/internal/logger"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// SQLiteMetadataStore implements metadata.Index using SQLite.
//
// Thread Safety:
// Safe for concurrent use. Each operation borrows its own connection from the
// pool; SQLite WAL mode allows concurrent readers alongside a single writer.
type SQLiteMetadataStore struct {
	pool *sqlitex.Pool
	path string
}

// SQLiteMetadataStoreConfig contains configuration for the SQLite metadata store.
type SQLiteMetadataStoreConfig struct {
	// Path is the database file. Parent directories are created if missing.
	// ":memory:" is accepted but forces a pool size of 1.
	Path string `mapstructure:"path"`

	// PoolSize is the number of pooled connections.
	// 0 means max(runtime.NumCPU(), 4).
	PoolSize int `mapstructure:"pool_size"`

	// BusyTimeout bounds how long a connection waits for the write lock.
	// 0 means 5s.
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

func (c *SQLiteMetadataStoreConfig) applyDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = runtime.NumCPU()
		if c.PoolSize < 4 {
			c.PoolSize = 4
		}
	}
	if c.Path == ":memory:" {
		c.PoolSize = 1
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}
}

// NewSQLiteMetadataStore opens (creating if needed) the database at config.Path,
// applies the connection pragmas and migrates the schema.
//
// The caller must call Close when the store is no longer needed.
func NewSQLiteMetadataStore(ctx context.Context, config SQLiteMetadataStoreConfig) (*SQLiteMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.Path == "" {
		return nil, fmt.Errorf("sqlite metadata store: path is required")
	}
	config.applyDefaults()

	if config.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	busyTimeout := config.BusyTimeout
	pool, err := sqlitex.NewPool(config.Path, sqlitex.PoolOptions{
		PoolSize: config.PoolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn, busyTimeout)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database at %s: %w", config.Path, err)
	}

	store := &SQLiteMetadataStore{
		pool: pool,
		path: config.Path,
	}

	if err := store.migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}

	logger.Debug("SQLite metadata store opened: path=%s pool_size=%d", config.Path, config.PoolSize)
	return store, nil
}

// prepareConnection applies per-connection pragmas. Runs once per pooled
// connection on first use.
func prepareConnection(conn *sqlite.Conn, busyTimeout time.Duration) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout.Milliseconds()),
		"PRAGMA foreign_keys=ON",
		"PRAGMA cache_size=-8192",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// withConn borrows a pooled connection for the duration of fn.
func (s *SQLiteMetadataStore) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return metadata.NewIndexError("acquire connection", err)
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// Healthcheck runs a trivial query against the database.
func (s *SQLiteMetadataStore) Healthcheck(ctx context.Context) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.ExecuteTransient(conn, "SELECT 1", nil); err != nil {
			return metadata.NewIndexError("healthcheck", err)
		}
		return nil
	})
}

// Close closes every pooled connection. Blocks until borrowed connections
// are returned.
func (s *SQLiteMetadataStore) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("failed to close sqlite database %s: %w", s.path, err)
	}
	logger.Debug("SQLite metadata store closed: path=%s", s.path)
	return nil
}

// indexError wraps err as an ErrIndex StoreError unless it already is a
// StoreError or a context error.
func indexError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := metadata.CodeOf(err); ok {
		return err
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	return metadata.NewIndexError(op, err)
}

// Compile-time interface check
var _ metadata.Index = (*SQLiteMetadataStore)(nil)
