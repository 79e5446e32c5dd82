// Package content defines the byte storage contract behind the object store.
//
// A ContentStore owns the mapping from an opaque location to the bytes of one
// uploaded object. Locations are chosen by the store at Put time and are never
// reused; the metadata index records them and hands them back for reads and
// deletes.
package content

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Placement describes bytes that were durably written by Put.
type Placement struct {
	// Location is the store-relative location of the bytes.
	Location string

	// Size is the number of bytes written.
	Size uint64

	// Checksum is the hex-encoded BLAKE3 digest of the bytes.
	Checksum string
}

// ContentStore places, reads, and removes object bytes.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Concurrent Puts never
// share a location.
type ContentStore interface {
	// Put reads exactly size bytes from r into a fresh location under the
	// namespace. The bytes are durable once Put returns. If r ends early,
	// Put returns ErrShortWrite and nothing is left at the location.
	Put(ctx context.Context, namespace uuid.UUID, r io.Reader, size uint64) (*Placement, error)

	// Open returns a reader for the bytes at location.
	// Returns ErrContentNotFound if nothing is stored there.
	Open(ctx context.Context, location string) (io.ReadCloser, error)

	// Delete removes the bytes at location. Deleting a missing location is
	// not an error.
	Delete(ctx context.Context, location string) error

	// Healthcheck verifies the backing storage is reachable.
	Healthcheck(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// Item is one stored location as seen by Walk.
type Item struct {
	Location string
	Size     uint64
	ModTime  time.Time
}

// GarbageCollectableStore is implemented by stores that can enumerate their
// locations, so orphans left by failed index commits can be reclaimed.
type GarbageCollectableStore interface {
	ContentStore

	// Walk calls fn for every stored location. Returning a non-nil error from
	// fn stops the walk and returns that error.
	Walk(ctx context.Context, fn func(Item) error) error

	// DeleteBatch removes multiple locations. The returned map holds the
	// per-location failures; the error is reserved for failures that abort
	// the whole batch.
	DeleteBatch(ctx context.Context, locations []string) (failures map[string]error, err error)
}
