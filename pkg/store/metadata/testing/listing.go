package testing

import (
	"testing"

	"github.com/marmos91/tcpfs/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunListingTests executes path query tests.
func (suite *IndexTestSuite) RunListingTests(t *testing.T) {
	t.Run("DirectChildrenOnly", suite.testListDirectChildrenOnly)
	t.Run("PrefixWithoutTrailingSeparator", suite.testListPrefixWithoutSeparator)
	t.Run("RootPrefix", suite.testListRootPrefix)
	t.Run("EmptyPrefix", suite.testListEmptyPrefix)
	t.Run("SiblingPrefixNotMatched", suite.testListSiblingPrefixNotMatched)
	t.Run("DirectoryProbeSkipsLookalikes", suite.testListDirectoryProbeSkipsLookalikes)
	t.Run("Ordering", suite.testListOrdering)
	t.Run("EmptyNamespace", suite.testListEmptyNamespace)
}

func (suite *IndexTestSuite) testListDirectChildrenOnly(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	mustPut(t, idx, ns, "/a/x", 1)
	mustPut(t, idx, ns, "/a/y", 2)
	mustPut(t, idx, ns, "/a/y/z", 3)

	entries, err := idx.ListChildren(testContext(), ns, "/a/")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, metadata.Entry{Name: "x", Path: "/a/x", Size: 1, IsDir: false}, entries[0])
	assert.Equal(t, metadata.Entry{Name: "y", Path: "/a/y", Size: 2, IsDir: true}, entries[1])
}

func (suite *IndexTestSuite) testListPrefixWithoutSeparator(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	mustPut(t, idx, ns, "/a", 1)
	mustPut(t, idx, ns, "/a/x", 2)

	entries, err := idx.ListChildren(testContext(), ns, "/a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, entryNames(entries))
}

func (suite *IndexTestSuite) testListRootPrefix(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	mustPut(t, idx, ns, "/readme", 1)
	mustPut(t, idx, ns, "/docs", 1)
	mustPut(t, idx, ns, "/docs/guide", 1)
	mustPut(t, idx, ns, "/deep/only/child", 1)

	entries, err := idx.ListChildren(testContext(), ns, "/")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs", "readme"}, entryNames(entries))
	assert.True(t, entries[0].IsDir)
	assert.False(t, entries[1].IsDir)
}

func (suite *IndexTestSuite) testListEmptyPrefix(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	mustPut(t, idx, ns, "top", 1)
	mustPut(t, idx, ns, "top/nested", 1)
	mustPut(t, idx, ns, "/rooted", 1)

	entries, err := idx.ListChildren(testContext(), ns, "")
	require.NoError(t, err)
	require.Equal(t, []string{"top"}, entryNames(entries))
	assert.True(t, entries[0].IsDir)
}

func (suite *IndexTestSuite) testListSiblingPrefixNotMatched(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	mustPut(t, idx, ns, "/ab/x", 1)
	mustPut(t, idx, ns, "/a/y", 1)

	entries, err := idx.ListChildren(testContext(), ns, "/a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, entryNames(entries))
}

func (suite *IndexTestSuite) testListDirectoryProbeSkipsLookalikes(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	// "/d/y!z" and "/d/y.z" sort between "/d/y" and "/d/y/" but are not
	// descendants of "/d/y".
	mustPut(t, idx, ns, "/d/y", 1)
	mustPut(t, idx, ns, "/d/y!z", 1)
	mustPut(t, idx, ns, "/d/y.z", 1)

	entries, err := idx.ListChildren(testContext(), ns, "/d/")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.False(t, e.IsDir, "entry %s", e.Path)
	}
}

func (suite *IndexTestSuite) testListOrdering(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	for _, name := range []string{"c", "a", "B", "b", "a1"} {
		mustPut(t, idx, ns, "/o/"+name, 1)
	}

	first, err := idx.ListChildren(testContext(), ns, "/o/")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "a", "a1", "b", "c"}, entryNames(first))

	second, err := idx.ListChildren(testContext(), ns, "/o/")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func (suite *IndexTestSuite) testListEmptyNamespace(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	entries, err := idx.ListChildren(testContext(), ns, "/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
