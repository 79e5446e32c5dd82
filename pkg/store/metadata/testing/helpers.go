package testing

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mustCreateNamespace creates a namespace or fails the test.
func mustCreateNamespace(t *testing.T, idx metadata.Index) uuid.UUID {
	t.Helper()
	ns, err := idx.CreateNamespace(testContext())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, ns.ID)
	return ns.ID
}

// testObject builds an object with a unique location for the given key.
func testObject(ns uuid.UUID, path string, size uint64) *metadata.Object {
	return &metadata.Object{
		Namespace: ns,
		Path:      path,
		Location:  fmt.Sprintf("%s/%s/file.data", ns, uuid.NewString()),
		Size:      size,
		Checksum:  fmt.Sprintf("%064x", size),
	}
}

// mustPut stores an object in an existing namespace or fails the test.
func mustPut(t *testing.T, idx metadata.Index, ns uuid.UUID, path string, size uint64) *metadata.Object {
	t.Helper()
	obj := testObject(ns, path, size)
	_, err := idx.PutObject(testContext(), obj, metadata.PutOptions{})
	require.NoError(t, err)
	return obj
}

// assertTotalSize checks the namespace aggregate.
func assertTotalSize(t *testing.T, idx metadata.Index, ns uuid.UUID, expected uint64) {
	t.Helper()
	got, err := idx.GetNamespace(testContext(), ns)
	require.NoError(t, err)
	assert.Equal(t, expected, got.TotalSize, "total_size of namespace %s", ns)
}

// assertNotFound checks err is an ErrNotFound StoreError.
func assertNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, metadata.IsNotFound(err), "expected NotFound, got %v", err)
}

// entryNames returns the names of the listed entries.
func entryNames(entries []metadata.Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
