// Package gc reconciles the content store with the metadata index.
//
// Object bytes are written before the index row is committed, so a failed
// commit or a crash between the two leaves a physical file no row points to.
// Unlinks after a delete or replace can also fail. The collector finds these
// orphans and removes them.
//
// Uploads in flight have placed files that are not committed yet. A file is
// only a deletion candidate once it is older than GracePeriod, which must
// exceed the longest expected upload.
package gc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/tcpfs/internal/logger"
	"github.com/marmos91/tcpfs/pkg/metrics"
	"github.com/marmos91/tcpfs/pkg/store/content"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// Collector performs periodic reconciliation sweeps.
//
// Thread Safety: Safe for concurrent use. Concurrent RunNow calls are
// serialized.
type Collector struct {
	index   metadata.Index
	store   content.GarbageCollectableStore
	config  Config
	metrics metrics.GCMetrics

	// runMu serializes sweeps
	runMu sync.Mutex

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   atomic.Bool
}

// Config contains configuration for the collector.
type Config struct {
	// Enabled controls whether periodic sweeps run (default: true via pkg/config)
	Enabled bool

	// Interval is how often to sweep (default: 1h)
	Interval time.Duration

	// GracePeriod protects files younger than this from deletion (default: 1h)
	GracePeriod time.Duration

	// BatchSize is how many orphans to delete per DeleteBatch call (default: 1000)
	// S3 supports up to 1000 objects per DeleteObjects call
	BatchSize int

	// RunTimeout bounds a single periodic sweep (default: 10m)
	RunTimeout time.Duration

	// DryRun logs what would be deleted without deleting (default: false)
	DryRun bool
}

// NewCollector creates a collector. Call Start to begin periodic sweeps.
//
// Returns an error if the content store cannot enumerate its locations.
// m may be nil.
func NewCollector(index metadata.Index, store content.ContentStore, config Config, m metrics.GCMetrics) (*Collector, error) {
	gcStore, ok := store.(content.GarbageCollectableStore)
	if !ok {
		return nil, fmt.Errorf("content store does not implement GarbageCollectableStore interface")
	}

	if config.Interval == 0 {
		config.Interval = time.Hour
	}
	if config.GracePeriod == 0 {
		config.GracePeriod = time.Hour
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}
	if config.RunTimeout == 0 {
		config.RunTimeout = 10 * time.Minute
	}
	if m == nil {
		m = metrics.NewNoopGCMetrics()
	}

	return &Collector{
		index:   index,
		store:   gcStore,
		config:  config,
		metrics: m,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start begins periodic sweeps in a background goroutine.
// Safe to call multiple times (subsequent calls are no-ops).
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	c.startOnce.Do(func() {
		logger.Info("Starting garbage collector: interval=%s grace_period=%s batch_size=%d dry_run=%v",
			c.config.Interval, c.config.GracePeriod, c.config.BatchSize, c.config.DryRun)
		c.started.Store(true)
		go c.worker()
	})
}

// Stop stops the collector and waits for an in-progress sweep to finish,
// up to the ctx deadline. Safe to call multiple times.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	c.stopOnce.Do(func() {
		logger.Info("Stopping garbage collector...")
		close(c.stopCh)
	})

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped successfully")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow runs one sweep immediately and blocks until it completes.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)...")
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.config.RunTimeout)
			// Abort the sweep if Stop is called mid-run
			finished := make(chan struct{})
			go func() {
				select {
				case <-c.stopCh:
					cancel()
				case <-finished:
				}
			}()

			stats, err := c.collect(ctx)
			close(finished)
			cancel()

			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single sweep:
//  1. Walk the content store, keeping locations older than the grace period
//  2. Load every location referenced by the index
//  3. Orphans = old locations - referenced
//  4. Batch delete orphans
//
// The walk happens before the index read. A file committed between the two
// steps is then seen as referenced; a file placed after the walk is never a
// candidate.
func (c *Collector) collect(ctx context.Context) (stats *Stats, err error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	stats = &Stats{StartTime: time.Now()}
	defer func() {
		stats.EndTime = time.Now()
		c.metrics.RecordRun(stats.Duration(), err)
	}()

	cutoff := stats.StartTime.Add(-c.config.GracePeriod)
	candidates := make(map[string]uint64)

	err = c.store.Walk(ctx, func(item content.Item) error {
		stats.ExistingCount++
		if item.ModTime.After(cutoff) {
			stats.YoungCount++
			return nil
		}
		candidates[item.Location] = item.Size
		return nil
	})
	c.metrics.RecordScanned(int(stats.ExistingCount))
	if err != nil {
		return stats, fmt.Errorf("failed to walk content store: %w", err)
	}

	referenced, err := c.index.ListLocations(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list referenced locations: %w", err)
	}
	stats.ReferencedCount = uint64(len(referenced))
	for _, location := range referenced {
		delete(candidates, location)
	}

	orphaned := make([]string, 0, len(candidates))
	for location, size := range candidates {
		orphaned = append(orphaned, location)
		stats.OrphanedBytes += size
	}
	stats.OrphanedCount = uint64(len(orphaned))

	if len(orphaned) == 0 {
		logger.Debug("GC: no orphaned content found (%d items scanned)", stats.ExistingCount)
		return stats, nil
	}

	logger.Info("GC: found %d orphaned items (%s)", stats.OrphanedCount, humanize.IBytes(stats.OrphanedBytes))

	if c.config.DryRun {
		logger.Info("GC: DRY RUN - would delete %d items:", stats.OrphanedCount)
		for i, location := range orphaned {
			if i == 10 {
				logger.Info("  ... and %d more", len(orphaned)-10)
				break
			}
			logger.Info("  - %s", location)
		}
		return stats, nil
	}

	for i := 0; i < len(orphaned); i += c.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		end := min(i+c.config.BatchSize, len(orphaned))
		batch := orphaned[i:end]

		failures, err := c.store.DeleteBatch(ctx, batch)
		if err != nil {
			logger.Warn("GC: batch delete failed: %v", err)
			stats.FailedCount += uint64(len(batch))
			c.metrics.RecordDeleteFailures(len(batch))
			continue
		}

		var freed uint64
		for _, location := range batch {
			if _, failed := failures[location]; !failed {
				freed += candidates[location]
			}
		}
		deleted := len(batch) - len(failures)
		stats.DeletedCount += uint64(deleted)
		stats.DeletedBytes += freed
		stats.FailedCount += uint64(len(failures))
		c.metrics.RecordOrphansDeleted(deleted, freed)
		c.metrics.RecordDeleteFailures(len(failures))

		for location, ferr := range failures {
			logger.Debug("GC: failed to delete %s: %v", location, ferr)
		}
	}

	logger.Info("GC: deleted %d items (%s), %d failed, duration=%s",
		stats.DeletedCount, humanize.IBytes(stats.DeletedBytes), stats.FailedCount, stats.Duration())

	return stats, nil
}

// Stats contains statistics from one sweep.
type Stats struct {
	StartTime       time.Time // When the sweep started
	EndTime         time.Time // When the sweep ended
	ExistingCount   uint64    // Locations found in the content store
	YoungCount      uint64    // Locations skipped because of the grace period
	ReferencedCount uint64    // Locations referenced by the index
	OrphanedCount   uint64    // Old, unreferenced locations
	OrphanedBytes   uint64    // Total size of orphaned locations
	DeletedCount    uint64    // Orphans successfully deleted
	DeletedBytes    uint64    // Total size of deleted orphans
	FailedCount     uint64    // Orphans that failed to delete
}

// Duration returns the total sweep duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the sweep.
func (s *Stats) Summary() string {
	return fmt.Sprintf("existing=%d young=%d referenced=%d orphaned=%d deleted=%d (%s) failed=%d duration=%s",
		s.ExistingCount, s.YoungCount, s.ReferencedCount, s.OrphanedCount,
		s.DeletedCount, humanize.IBytes(s.DeletedBytes), s.FailedCount, s.Duration())
}
