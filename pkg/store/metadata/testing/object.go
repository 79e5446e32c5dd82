package testing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunObjectTests executes object CRUD tests.
func (suite *IndexTestSuite) RunObjectTests(t *testing.T) {
	t.Run("PutObject_GetObject", suite.testPutGetObject)
	t.Run("PutObject_ImplicitNamespace", suite.testPutObjectImplicitNamespace)
	t.Run("PutObject_NamespaceRequired", suite.testPutObjectNamespaceRequired)
	t.Run("PutObject_Replace", suite.testPutObjectReplace)
	t.Run("PutObject_InvalidPath", suite.testPutObjectInvalidPath)
	t.Run("PutObject_SamePathDifferentNamespaces", suite.testPutObjectSamePathDifferentNamespaces)
	t.Run("GetObject_NotFound", suite.testGetObjectNotFound)
	t.Run("DeleteObject_Success", suite.testDeleteObjectSuccess)
	t.Run("DeleteObject_NotFound", suite.testDeleteObjectNotFound)
	t.Run("ListLocations", suite.testListLocations)
	t.Run("Healthcheck", suite.testHealthcheck)
}

func (suite *IndexTestSuite) testPutGetObject(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	obj := testObject(ns, "/a/b.txt", 42)
	replaced, err := idx.PutObject(testContext(), obj, metadata.PutOptions{})
	require.NoError(t, err)
	assert.Nil(t, replaced)
	assert.NotZero(t, obj.ID)

	got, err := idx.GetObject(testContext(), ns, "/a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, obj.ID, got.ID)
	assert.Equal(t, ns, got.Namespace)
	assert.Equal(t, "/a/b.txt", got.Path)
	assert.Equal(t, obj.Location, got.Location)
	assert.Equal(t, uint64(42), got.Size)
	assert.Equal(t, obj.Checksum, got.Checksum)
	assert.Equal(t, obj.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())
}

func (suite *IndexTestSuite) testPutObjectImplicitNamespace(t *testing.T) {
	idx := suite.newIndex(t)
	ns := uuid.New()

	_, err := idx.PutObject(testContext(), testObject(ns, "/x", 5), metadata.PutOptions{CreateNamespace: true})
	require.NoError(t, err)

	assertTotalSize(t, idx, ns, 5)

	// A second implicit put reuses the namespace.
	_, err = idx.PutObject(testContext(), testObject(ns, "/y", 6), metadata.PutOptions{CreateNamespace: true})
	require.NoError(t, err)
	assertTotalSize(t, idx, ns, 11)
}

func (suite *IndexTestSuite) testPutObjectNamespaceRequired(t *testing.T) {
	idx := suite.newIndex(t)
	ns := uuid.New()

	_, err := idx.PutObject(testContext(), testObject(ns, "/x", 5), metadata.PutOptions{})
	assertNotFound(t, err)

	_, err = idx.GetNamespace(testContext(), ns)
	assertNotFound(t, err)
}

func (suite *IndexTestSuite) testPutObjectReplace(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	first := mustPut(t, idx, ns, "/k", 100)
	mustPut(t, idx, ns, "/other", 1)

	second := testObject(ns, "/k", 30)
	replaced, err := idx.PutObject(testContext(), second, metadata.PutOptions{})
	require.NoError(t, err)
	require.NotNil(t, replaced)
	assert.Equal(t, first.Location, replaced.Location)
	assert.Equal(t, uint64(100), replaced.Size)

	got, err := idx.GetObject(testContext(), ns, "/k")
	require.NoError(t, err)
	assert.Equal(t, second.Location, got.Location)
	assert.Equal(t, uint64(30), got.Size)

	assertTotalSize(t, idx, ns, 31)
}

func (suite *IndexTestSuite) testPutObjectInvalidPath(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	for _, path := range []string{"", "/dir/", "a\x00b"} {
		_, err := idx.PutObject(testContext(), testObject(ns, path, 1), metadata.PutOptions{})
		code, ok := metadata.CodeOf(err)
		require.True(t, ok, "path %q: %v", path, err)
		assert.Equal(t, metadata.ErrInvalidArgument, code, "path %q", path)
	}
	assertTotalSize(t, idx, ns, 0)
}

func (suite *IndexTestSuite) testPutObjectSamePathDifferentNamespaces(t *testing.T) {
	idx := suite.newIndex(t)
	ns1 := mustCreateNamespace(t, idx)
	ns2 := mustCreateNamespace(t, idx)

	o1 := mustPut(t, idx, ns1, "/same", 10)
	o2 := mustPut(t, idx, ns2, "/same", 20)

	got1, err := idx.GetObject(testContext(), ns1, "/same")
	require.NoError(t, err)
	got2, err := idx.GetObject(testContext(), ns2, "/same")
	require.NoError(t, err)

	assert.Equal(t, o1.Location, got1.Location)
	assert.Equal(t, o2.Location, got2.Location)
	assertTotalSize(t, idx, ns1, 10)
	assertTotalSize(t, idx, ns2, 20)
}

func (suite *IndexTestSuite) testGetObjectNotFound(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	_, err := idx.GetObject(testContext(), ns, "/missing")
	assertNotFound(t, err)

	_, err = idx.GetObject(testContext(), uuid.New(), "/missing")
	assertNotFound(t, err)
}

func (suite *IndexTestSuite) testDeleteObjectSuccess(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	obj := mustPut(t, idx, ns, "/gone", 64)
	mustPut(t, idx, ns, "/stays", 36)
	assertTotalSize(t, idx, ns, 100)

	deleted, err := idx.DeleteObject(testContext(), ns, "/gone")
	require.NoError(t, err)
	assert.Equal(t, obj.Location, deleted.Location)
	assert.Equal(t, uint64(64), deleted.Size)

	assertTotalSize(t, idx, ns, 36)

	_, err = idx.GetObject(testContext(), ns, "/gone")
	assertNotFound(t, err)
}

func (suite *IndexTestSuite) testDeleteObjectNotFound(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)
	mustPut(t, idx, ns, "/present", 3)

	_, err := idx.DeleteObject(testContext(), ns, "/absent")
	assertNotFound(t, err)
	assertTotalSize(t, idx, ns, 3)
}

func (suite *IndexTestSuite) testListLocations(t *testing.T) {
	idx := suite.newIndex(t)
	ns1 := mustCreateNamespace(t, idx)
	ns2 := mustCreateNamespace(t, idx)

	a := mustPut(t, idx, ns1, "/a", 1)
	b := mustPut(t, idx, ns2, "/b", 2)
	replacedOld := mustPut(t, idx, ns2, "/c", 3)
	replacedNew := mustPut(t, idx, ns2, "/c", 4)

	locations, err := idx.ListLocations(testContext())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.Location, b.Location, replacedNew.Location}, locations)
	assert.NotContains(t, locations, replacedOld.Location)
}

func (suite *IndexTestSuite) testHealthcheck(t *testing.T) {
	idx := suite.newIndex(t)
	assert.NoError(t, idx.Healthcheck(testContext()))
}
