package testing

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/content"
	"github.com/stretchr/testify/require"
)

// mustPut stores data under ns or fails the test.
func mustPut(t *testing.T, store content.ContentStore, ns uuid.UUID, data []byte) *content.Placement {
	t.Helper()
	placement, err := store.Put(testContext(), ns, bytes.NewReader(data), uint64(len(data)))
	require.NoError(t, err)
	require.NotNil(t, placement)
	return placement
}

// mustRead reads the full content at location or fails the test.
func mustRead(t *testing.T, store content.ContentStore, location string) []byte {
	t.Helper()
	rc, err := store.Open(testContext(), location)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

// walkLocations collects every location reported by Walk.
func walkLocations(t *testing.T, gc content.GarbageCollectableStore) []string {
	t.Helper()
	locations := make([]string, 0)
	err := gc.Walk(testContext(), func(item content.Item) error {
		locations = append(locations, item.Location)
		return nil
	})
	require.NoError(t, err)
	return locations
}

// generateData returns size bytes of a repeating pattern.
func generateData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// asGC returns store as a GarbageCollectableStore or skips the test.
func asGC(t *testing.T, store content.ContentStore) content.GarbageCollectableStore {
	t.Helper()
	gc, ok := store.(content.GarbageCollectableStore)
	if !ok {
		t.Skip("Store does not implement GarbageCollectableStore")
	}
	return gc
}
