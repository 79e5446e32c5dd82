package testing

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests executes Put/Open/Delete contract tests.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("Put_Open_RoundTrip", suite.testPutOpenRoundTrip)
	t.Run("Put_Empty", suite.testPutEmpty)
	t.Run("Put_Large", suite.testPutLarge)
	t.Run("Put_ReadsExactlySize", suite.testPutReadsExactlySize)
	t.Run("Put_ShortSource", suite.testPutShortSource)
	t.Run("Put_ReaderError", suite.testPutReaderError)
	t.Run("Put_Cancelled", suite.testPutCancelled)
	t.Run("Put_LocationFormat", suite.testPutLocationFormat)
	t.Run("Put_UniqueLocations", suite.testPutUniqueLocations)
	t.Run("Put_Concurrent", suite.testPutConcurrent)
	t.Run("Open_NotFound", suite.testOpenNotFound)
	t.Run("Open_InvalidLocation", suite.testOpenInvalidLocation)
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_Missing", suite.testDeleteMissing)
	t.Run("Delete_LeavesOthers", suite.testDeleteLeavesOthers)
	t.Run("Healthcheck", suite.testHealthcheck)
}

func (suite *StoreTestSuite) testPutOpenRoundTrip(t *testing.T) {
	store := suite.newStore(t)
	data := []byte("the quick brown fox")

	placement := mustPut(t, store, uuid.New(), data)
	assert.Equal(t, uint64(len(data)), placement.Size)
	assert.Equal(t, content.Checksum(data), placement.Checksum)
	assert.Equal(t, data, mustRead(t, store, placement.Location))
}

func (suite *StoreTestSuite) testPutEmpty(t *testing.T) {
	store := suite.newStore(t)

	placement := mustPut(t, store, uuid.New(), nil)
	assert.Zero(t, placement.Size)
	assert.Empty(t, mustRead(t, store, placement.Location))
}

func (suite *StoreTestSuite) testPutLarge(t *testing.T) {
	store := suite.newStore(t)
	data := generateData(3*1024*1024 + 17)

	placement := mustPut(t, store, uuid.New(), data)
	assert.Equal(t, data, mustRead(t, store, placement.Location))
}

func (suite *StoreTestSuite) testPutReadsExactlySize(t *testing.T) {
	store := suite.newStore(t)
	src := strings.NewReader("payload-and-trailing-garbage")

	placement, err := store.Put(testContext(), uuid.New(), src, uint64(len("payload")))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), mustRead(t, store, placement.Location))
	assert.Equal(t, len("-and-trailing-garbage"), src.Len())
}

func (suite *StoreTestSuite) testPutShortSource(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.Put(testContext(), uuid.New(), strings.NewReader("short"), 100)
	require.ErrorIs(t, err, content.ErrShortWrite)

	if gc, ok := store.(content.GarbageCollectableStore); ok {
		assert.Empty(t, walkLocations(t, gc), "short upload left content behind")
	}
}

func (suite *StoreTestSuite) testPutReaderError(t *testing.T) {
	store := suite.newStore(t)
	src := iotest.TimeoutReader(bytes.NewReader(generateData(64 * 1024)))

	_, err := store.Put(testContext(), uuid.New(), src, 64*1024)
	require.Error(t, err)

	if gc, ok := store.(content.GarbageCollectableStore); ok {
		assert.Empty(t, walkLocations(t, gc), "failed upload left content behind")
	}
}

func (suite *StoreTestSuite) testPutCancelled(t *testing.T) {
	store := suite.newStore(t)
	ctx, cancel := context.WithCancel(testContext())
	cancel()

	_, err := store.Put(ctx, uuid.New(), strings.NewReader("data"), 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func (suite *StoreTestSuite) testPutLocationFormat(t *testing.T) {
	store := suite.newStore(t)
	ns := uuid.New()

	placement := mustPut(t, store, ns, []byte("x"))
	require.NoError(t, content.ValidateLocation(placement.Location))

	parts := strings.Split(placement.Location, "/")
	require.Len(t, parts, 9, "location %s", placement.Location)
	assert.Equal(t, ns.String(), parts[0])
	assert.Len(t, parts[1], 4)
	assert.Len(t, parts[7], 9)
	assert.Equal(t, content.FileName, parts[8])

	got, err := content.NamespaceOf(placement.Location)
	require.NoError(t, err)
	assert.Equal(t, ns, got)
}

func (suite *StoreTestSuite) testPutUniqueLocations(t *testing.T) {
	store := suite.newStore(t)
	ns := uuid.New()

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		placement := mustPut(t, store, ns, []byte{byte(i)})
		_, dup := seen[placement.Location]
		require.False(t, dup, "duplicate location %s", placement.Location)
		seen[placement.Location] = struct{}{}
	}
}

func (suite *StoreTestSuite) testPutConcurrent(t *testing.T) {
	store := suite.newStore(t)
	ns := uuid.New()

	const writers = 16
	placements := make([]*content.Placement, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := bytes.Repeat([]byte{byte(i)}, 1024+i)
			placements[i], errs[i] = store.Put(testContext(), ns, bytes.NewReader(data), uint64(len(data)))
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{})
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		_, dup := seen[placements[i].Location]
		require.False(t, dup)
		seen[placements[i].Location] = struct{}{}

		assert.Equal(t, bytes.Repeat([]byte{byte(i)}, 1024+i), mustRead(t, store, placements[i].Location))
	}
}

func (suite *StoreTestSuite) testOpenNotFound(t *testing.T) {
	store := suite.newStore(t)

	location := content.NewLocation(uuid.New(), content.NewClock().Next())
	_, err := store.Open(testContext(), location)
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testOpenInvalidLocation(t *testing.T) {
	store := suite.newStore(t)

	for _, location := range []string{"", "../escape", "/abs"} {
		_, err := store.Open(testContext(), location)
		assert.ErrorIs(t, err, content.ErrInvalidLocation, "location %q", location)
	}
}

func (suite *StoreTestSuite) testDeleteSuccess(t *testing.T) {
	store := suite.newStore(t)

	placement := mustPut(t, store, uuid.New(), []byte("bye"))
	require.NoError(t, store.Delete(testContext(), placement.Location))

	_, err := store.Open(testContext(), placement.Location)
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testDeleteMissing(t *testing.T) {
	store := suite.newStore(t)

	location := content.NewLocation(uuid.New(), content.NewClock().Next())
	assert.NoError(t, store.Delete(testContext(), location))
}

func (suite *StoreTestSuite) testDeleteLeavesOthers(t *testing.T) {
	store := suite.newStore(t)
	ns := uuid.New()

	gone := mustPut(t, store, ns, []byte("gone"))
	kept := mustPut(t, store, ns, []byte("kept"))

	require.NoError(t, store.Delete(testContext(), gone.Location))
	assert.Equal(t, []byte("kept"), mustRead(t, store, kept.Location))
}

func (suite *StoreTestSuite) testHealthcheck(t *testing.T) {
	store := suite.newStore(t)
	assert.NoError(t, store.Healthcheck(testContext()))
}
