// Package memory implements an in-memory content store.
//
// Intended for tests and ephemeral servers: all bytes are lost when the
// process exits.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/content"
)

type entry struct {
	data    []byte
	modTime time.Time
}

// MemoryContentStore implements content.GarbageCollectableStore in memory.
//
// Thread Safety:
// All operations are protected by mu. Put copies into a private buffer and
// Open serves a reader over an immutable slice, so callers never share
// memory with the store.
type MemoryContentStore struct {
	mu    sync.RWMutex
	data  map[string]entry
	clock *content.Clock
}

// NewMemoryContentStore returns an empty store.
func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{
		data:  make(map[string]entry),
		clock: content.NewClock(),
	}
}

// Put buffers exactly size bytes and stores them at a new location.
func (s *MemoryContentStore) Put(ctx context.Context, namespace uuid.UUID, r io.Reader, size uint64) (*content.Placement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	checksum, err := content.CopyExact(ctx, &buf, r, size)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Next()
	location := content.NewLocation(namespace, now)
	s.data[location] = entry{data: buf.Bytes(), modTime: now}

	return &content.Placement{Location: location, Size: size, Checksum: checksum}, nil
}

// Open returns a reader over the stored bytes.
func (s *MemoryContentStore) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := content.ValidateLocation(location); err != nil {
		return nil, err
	}

	s.mu.RLock()
	e, ok := s.data[location]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", location, content.ErrContentNotFound)
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

// Delete removes the bytes at location.
func (s *MemoryContentStore) Delete(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := content.ValidateLocation(location); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, location)
	s.mu.Unlock()
	return nil
}

// Walk reports every stored location in lexical order.
func (s *MemoryContentStore) Walk(ctx context.Context, fn func(content.Item) error) error {
	s.mu.RLock()
	items := make([]content.Item, 0, len(s.data))
	for location, e := range s.data {
		items = append(items, content.Item{
			Location: location,
			Size:     uint64(len(e.data)),
			ModTime:  e.modTime,
		})
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Location < items[j].Location })

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

// DeleteBatch removes every location under one lock.
func (s *MemoryContentStore) DeleteBatch(ctx context.Context, locations []string) (map[string]error, error) {
	failures := make(map[string]error)
	if err := ctx.Err(); err != nil {
		for _, location := range locations {
			failures[location] = err
		}
		return failures, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, location := range locations {
		if err := content.ValidateLocation(location); err != nil {
			failures[location] = err
			continue
		}
		delete(s.data, location)
	}
	return failures, nil
}

// Len returns the number of stored locations.
func (s *MemoryContentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Healthcheck always succeeds.
func (s *MemoryContentStore) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

// Close drops all stored bytes.
func (s *MemoryContentStore) Close() error {
	s.mu.Lock()
	s.data = make(map[string]entry)
	s.mu.Unlock()
	return nil
}

// Compile-time interface check
var _ content.GarbageCollectableStore = (*MemoryContentStore)(nil)
