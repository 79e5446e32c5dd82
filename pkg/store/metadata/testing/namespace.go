package testing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunNamespaceTests executes namespace lifecycle tests.
func (suite *IndexTestSuite) RunNamespaceTests(t *testing.T) {
	t.Run("CreateNamespace_Empty", suite.testCreateNamespaceEmpty)
	t.Run("CreateNamespace_Unique", suite.testCreateNamespaceUnique)
	t.Run("GetNamespace_NotFound", suite.testGetNamespaceNotFound)
	t.Run("DeleteNamespace_NotFound", suite.testDeleteNamespaceNotFound)
	t.Run("DeleteNamespace_Cascade", suite.testDeleteNamespaceCascade)
	t.Run("DeleteNamespace_LeavesOthers", suite.testDeleteNamespaceLeavesOthers)
}

func (suite *IndexTestSuite) testCreateNamespaceEmpty(t *testing.T) {
	idx := suite.newIndex(t)

	ns, err := idx.CreateNamespace(testContext())
	require.NoError(t, err)

	got, err := idx.GetNamespace(testContext(), ns.ID)
	require.NoError(t, err)
	assert.Equal(t, ns.ID, got.ID)
	assert.Zero(t, got.TotalSize)
	assert.False(t, got.CreatedAt.IsZero())
}

func (suite *IndexTestSuite) testCreateNamespaceUnique(t *testing.T) {
	idx := suite.newIndex(t)

	seen := make(map[uuid.UUID]struct{})
	for i := 0; i < 20; i++ {
		id := mustCreateNamespace(t, idx)
		_, dup := seen[id]
		require.False(t, dup, "duplicate namespace id %s", id)
		seen[id] = struct{}{}
	}
}

func (suite *IndexTestSuite) testGetNamespaceNotFound(t *testing.T) {
	idx := suite.newIndex(t)

	_, err := idx.GetNamespace(testContext(), uuid.New())
	assertNotFound(t, err)
}

func (suite *IndexTestSuite) testDeleteNamespaceNotFound(t *testing.T) {
	idx := suite.newIndex(t)

	_, err := idx.DeleteNamespace(testContext(), uuid.New())
	assertNotFound(t, err)
}

func (suite *IndexTestSuite) testDeleteNamespaceCascade(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	a := mustPut(t, idx, ns, "/a", 100)
	b := mustPut(t, idx, ns, "/dir/b", 250)
	c := mustPut(t, idx, ns, "/dir/sub/c", 7)

	deletion, err := idx.DeleteNamespace(testContext(), ns)
	require.NoError(t, err)
	assert.Equal(t, ns, deletion.Namespace.ID)
	assert.Equal(t, uint64(357), deletion.Namespace.TotalSize)
	assert.Equal(t, uint64(357), deletion.BytesFreed())

	locations := make([]string, 0, len(deletion.Objects))
	for _, obj := range deletion.Objects {
		locations = append(locations, obj.Location)
	}
	assert.ElementsMatch(t, []string{a.Location, b.Location, c.Location}, locations)

	_, err = idx.GetNamespace(testContext(), ns)
	assertNotFound(t, err)

	_, err = idx.GetObject(testContext(), ns, "/a")
	assertNotFound(t, err)

	_, err = idx.ListChildren(testContext(), ns, "/")
	assertNotFound(t, err)

	remaining, err := idx.ListLocations(testContext())
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func (suite *IndexTestSuite) testDeleteNamespaceLeavesOthers(t *testing.T) {
	idx := suite.newIndex(t)
	doomed := mustCreateNamespace(t, idx)
	kept := mustCreateNamespace(t, idx)

	mustPut(t, idx, doomed, "/shared", 10)
	keptObj := mustPut(t, idx, kept, "/shared", 20)

	_, err := idx.DeleteNamespace(testContext(), doomed)
	require.NoError(t, err)

	got, err := idx.GetObject(testContext(), kept, "/shared")
	require.NoError(t, err)
	assert.Equal(t, keptObj.Location, got.Location)
	assertTotalSize(t, idx, kept, 20)

	locations, err := idx.ListLocations(testContext())
	require.NoError(t, err)
	assert.Equal(t, []string{keptObj.Location}, locations)

	_, err = idx.PutObject(testContext(), testObject(doomed, "/again", 1), metadata.PutOptions{})
	assertNotFound(t, err)
}
