// Package badger implements metadata.Index on BadgerDB.
//
// Namespaces and objects live under prefixed keys (see keys.go). The
// namespace total is stored in the namespace record and updated in the same
// transaction as every object mutation, so it always equals the sum of the
// object sizes visible in any snapshot.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/tcpfs/internal/logger"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// seqBandwidth is the number of object IDs leased from the sequence at once.
const seqBandwidth = 128

// BadgerMetadataStore implements metadata.Index using BadgerDB for persistence.
//
// Thread Safety:
// Mutations are serialized by mu, so the read-modify-write of a namespace
// total never races another writer. Reads run on Badger snapshots and take
// no lock.
type BadgerMetadataStore struct {
	// mu serializes write transactions.
	mu sync.Mutex

	db  *badger.DB
	seq *badger.Sequence

	dbPath string
}

// BadgerMetadataStoreConfig contains configuration for creating a BadgerDB metadata store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB will store its files.
	DBPath string `mapstructure:"path"`

	// InMemory runs Badger without touching disk. Intended for tests.
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`

	// BadgerOptions allows customization of BadgerDB behavior.
	// If nil, the defaults below are used.
	BadgerOptions *badger.Options `mapstructure:"-"`
}

// NewBadgerMetadataStore opens the BadgerDB database described by config.
//
// The caller must call Close when the store is no longer needed.
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.DBPath == "" && !config.InMemory {
		return nil, fmt.Errorf("badger metadata store: path is required")
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		if config.InMemory {
			opts = badger.DefaultOptions("").WithInMemory(true)
		} else {
			opts = badger.DefaultOptions(config.DBPath)
		}

		// Records are small JSON documents; compression does not pay off.
		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)

		blockCacheMB := config.BlockCacheSizeMB
		if blockCacheMB == 0 {
			blockCacheMB = 64
		}
		indexCacheMB := config.IndexCacheSizeMB
		if indexCacheMB == 0 {
			indexCacheMB = 32
		}
		opts = opts.WithBlockCacheSize(blockCacheMB << 20)
		opts = opts.WithIndexCacheSize(indexCacheMB << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	seq, err := db.GetSequence(keyObjectSequence(), seqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open object id sequence: %w", err)
	}

	logger.Debug("Badger metadata store opened: path=%s in_memory=%v", config.DBPath, config.InMemory)

	return &BadgerMetadataStore{
		db:     db,
		seq:    seq,
		dbPath: config.DBPath,
	}, nil
}

// update runs fn in a read-write transaction while holding the writer lock.
func (s *BadgerMetadataStore) update(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexError(op, s.db.Update(fn))
}

// view runs fn in a read-only snapshot transaction.
func (s *BadgerMetadataStore) view(ctx context.Context, op string, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return indexError(op, s.db.View(fn))
}

// Healthcheck verifies the database accepts a read transaction.
func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if s.db.IsClosed() {
		return metadata.NewIndexError("healthcheck", badger.ErrDBClosed)
	}
	return s.view(ctx, "healthcheck", func(txn *badger.Txn) error {
		_, err := txn.Get(keyObjectSequence())
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// Close releases the ID sequence and closes the database.
func (s *BadgerMetadataStore) Close() error {
	if err := s.seq.Release(); err != nil {
		logger.Warn("Failed to release badger sequence: %v", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	logger.Debug("Badger metadata store closed: path=%s", s.dbPath)
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
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return metadata.NewIndexError(op, err)
}

// Compile-time interface check
var _ metadata.Index = (*BadgerMetadataStore)(nil)
