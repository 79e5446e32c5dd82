package testing

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunGCTests executes all GarbageCollectableStore operation tests.
func (suite *StoreTestSuite) RunGCTests(t *testing.T) {
	t.Run("Walk_Empty", suite.testWalkEmpty)
	t.Run("Walk_Multiple", suite.testWalkMultiple)
	t.Run("Walk_StopsOnError", suite.testWalkStopsOnError)
	t.Run("DeleteBatch_Empty", suite.testDeleteBatchEmpty)
	t.Run("DeleteBatch_Multiple", suite.testDeleteBatchMultiple)
	t.Run("DeleteBatch_MissingIsSuccess", suite.testDeleteBatchMissing)
}

// ============================================================================
// Walk Tests
// ============================================================================

func (suite *StoreTestSuite) testWalkEmpty(t *testing.T) {
	gc := asGC(t, suite.newStore(t))
	assert.Empty(t, walkLocations(t, gc))
}

func (suite *StoreTestSuite) testWalkMultiple(t *testing.T) {
	store := suite.newStore(t)
	gc := asGC(t, store)

	before := time.Now().Add(-time.Minute)
	a := mustPut(t, store, uuid.New(), []byte("a"))
	b := mustPut(t, store, uuid.New(), []byte("bb"))
	c := mustPut(t, store, uuid.New(), []byte("ccc"))

	items := make(map[string]content.Item)
	err := gc.Walk(testContext(), func(item content.Item) error {
		items[item.Location] = item
		return nil
	})
	require.NoError(t, err)

	require.Len(t, items, 3)
	for _, p := range []*content.Placement{a, b, c} {
		item, ok := items[p.Location]
		require.True(t, ok, "missing %s", p.Location)
		assert.Equal(t, p.Size, item.Size)
		assert.True(t, item.ModTime.After(before), "mod time %v", item.ModTime)
	}
}

func (suite *StoreTestSuite) testWalkStopsOnError(t *testing.T) {
	store := suite.newStore(t)
	gc := asGC(t, store)

	mustPut(t, store, uuid.New(), []byte("1"))
	mustPut(t, store, uuid.New(), []byte("2"))

	stop := errors.New("stop")
	calls := 0
	err := gc.Walk(testContext(), func(content.Item) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

// ============================================================================
// DeleteBatch Tests
// ============================================================================

func (suite *StoreTestSuite) testDeleteBatchEmpty(t *testing.T) {
	gc := asGC(t, suite.newStore(t))

	failures, err := gc.DeleteBatch(testContext(), nil)
	require.NoError(t, err)
	assert.Empty(t, failures)
}

func (suite *StoreTestSuite) testDeleteBatchMultiple(t *testing.T) {
	store := suite.newStore(t)
	gc := asGC(t, store)
	ns := uuid.New()

	doomed := []string{
		mustPut(t, store, ns, []byte("x")).Location,
		mustPut(t, store, ns, []byte("y")).Location,
	}
	kept := mustPut(t, store, ns, []byte("z"))

	failures, err := gc.DeleteBatch(testContext(), doomed)
	require.NoError(t, err)
	assert.Empty(t, failures)

	assert.Equal(t, []string{kept.Location}, walkLocations(t, gc))
}

func (suite *StoreTestSuite) testDeleteBatchMissing(t *testing.T) {
	gc := asGC(t, suite.newStore(t))

	missing := content.NewLocation(uuid.New(), content.NewClock().Next())
	failures, err := gc.DeleteBatch(testContext(), []string{missing})
	require.NoError(t, err)
	assert.Empty(t, failures)
}
