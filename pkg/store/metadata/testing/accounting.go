package testing

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunAccountingTests verifies total_size is maintained by the index.
func (suite *IndexTestSuite) RunAccountingTests(t *testing.T) {
	t.Run("TotalMatchesSumAfterEachOperation", suite.testTotalMatchesSum)
	t.Run("ZeroSizeObjects", suite.testZeroSizeObjects)
	t.Run("LargeSizes", suite.testLargeSizes)
}

// RunConcurrencyTests verifies aggregates under concurrent writers.
func (suite *IndexTestSuite) RunConcurrencyTests(t *testing.T) {
	t.Run("ConcurrentPutsSameNamespace", suite.testConcurrentPutsSameNamespace)
	t.Run("ConcurrentPutsDistinctNamespaces", suite.testConcurrentPutsDistinctNamespaces)
	t.Run("ConcurrentReplaceSamePath", suite.testConcurrentReplaceSamePath)
}

func (suite *IndexTestSuite) testTotalMatchesSum(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	model := make(map[string]uint64)
	sum := func() uint64 {
		var total uint64
		for _, size := range model {
			total += size
		}
		return total
	}

	steps := []struct {
		op   string
		path string
		size uint64
	}{
		{"put", "/a", 10},
		{"put", "/b", 20},
		{"put", "/a", 5},
		{"put", "/c/d", 40},
		{"delete", "/b", 0},
		{"put", "/c/d", 41},
		{"delete", "/a", 0},
		{"put", "/e", 0},
	}

	for i, step := range steps {
		switch step.op {
		case "put":
			mustPut(t, idx, ns, step.path, step.size)
			model[step.path] = step.size
		case "delete":
			deleted, err := idx.DeleteObject(testContext(), ns, step.path)
			require.NoError(t, err)
			assert.Equal(t, model[step.path], deleted.Size)
			delete(model, step.path)
		}
		got, err := idx.GetNamespace(testContext(), ns)
		require.NoError(t, err)
		require.Equal(t, sum(), got.TotalSize, "after step %d (%s %s)", i, step.op, step.path)
	}
}

func (suite *IndexTestSuite) testZeroSizeObjects(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	mustPut(t, idx, ns, "/empty", 0)
	assertTotalSize(t, idx, ns, 0)

	got, err := idx.GetObject(testContext(), ns, "/empty")
	require.NoError(t, err)
	assert.Zero(t, got.Size)
}

func (suite *IndexTestSuite) testLargeSizes(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	const big = uint64(1) << 40
	mustPut(t, idx, ns, "/big1", big)
	mustPut(t, idx, ns, "/big2", big)
	assertTotalSize(t, idx, ns, 2*big)
}

func (suite *IndexTestSuite) testConcurrentPutsSameNamespace(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				obj := testObject(ns, fmt.Sprintf("/w%d/o%d", w, i), uint64(w+1))
				if _, err := idx.PutObject(testContext(), obj, metadata.PutOptions{}); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var expected uint64
	for w := 0; w < workers; w++ {
		expected += uint64(w+1) * perWorker
	}
	assertTotalSize(t, idx, ns, expected)
}

func (suite *IndexTestSuite) testConcurrentPutsDistinctNamespaces(t *testing.T) {
	idx := suite.newIndex(t)

	const namespaces = 6
	const objects = 10

	ids := make([]uuid.UUID, namespaces)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	errs := make(chan error, namespaces*objects)
	for i, ns := range ids {
		wg.Add(1)
		go func(i int, ns uuid.UUID) {
			defer wg.Done()
			for j := 0; j < objects; j++ {
				obj := testObject(ns, fmt.Sprintf("/obj-%d", j), uint64(i*100+j))
				if _, err := idx.PutObject(testContext(), obj, metadata.PutOptions{CreateNamespace: true}); err != nil {
					errs <- err
				}
			}
		}(i, ns)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for i, ns := range ids {
		var expected uint64
		for j := 0; j < objects; j++ {
			expected += uint64(i*100 + j)
		}
		assertTotalSize(t, idx, ns, expected)
	}
}

func (suite *IndexTestSuite) testConcurrentReplaceSamePath(t *testing.T) {
	idx := suite.newIndex(t)
	ns := mustCreateNamespace(t, idx)

	const writers = 8

	var mu sync.Mutex
	replacedLocations := make(map[string]struct{})
	written := make(map[string]uint64)

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			obj := testObject(ns, "/contended", uint64(10*(w+1)))
			replaced, err := idx.PutObject(testContext(), obj, metadata.PutOptions{})
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			written[obj.Location] = obj.Size
			if replaced != nil {
				replacedLocations[replaced.Location] = struct{}{}
			}
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	winner, err := idx.GetObject(testContext(), ns, "/contended")
	require.NoError(t, err)

	// Every write except the final winner was reported as replaced exactly once.
	assert.Len(t, replacedLocations, writers-1)
	assert.NotContains(t, replacedLocations, winner.Location)
	assert.Equal(t, written[winner.Location], winner.Size)

	assertTotalSize(t, idx, ns, winner.Size)
}
