package fs

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/content"
	contenttesting "github.com/marmos91/tcpfs/pkg/store/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, cfg FSContentStoreConfig) *FSContentStore {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = t.TempDir()
	}
	store, err := NewFSContentStore(context.Background(), cfg)
	require.NoError(t, err)
	return store
}

func TestFSContentStore(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func(t *testing.T) content.ContentStore {
			return newTestStore(t, FSContentStoreConfig{})
		},
	}
	suite.Run(t)
}

func TestFSContentStore_NoSync(t *testing.T) {
	suite := &contenttesting.StoreTestSuite{
		NewStore: func(t *testing.T) content.ContentStore {
			return newTestStore(t, FSContentStoreConfig{NoSync: true})
		},
	}
	suite.Run(t)
}

func TestNewFSContentStore_RequiresPath(t *testing.T) {
	_, err := NewFSContentStore(context.Background(), FSContentStoreConfig{})
	require.Error(t, err)
}

func TestPut_PlacesFileAtLocation(t *testing.T) {
	store := newTestStore(t, FSContentStoreConfig{})
	ns := uuid.New()

	placement, err := store.Put(context.Background(), ns, strings.NewReader("on disk"), 7)
	require.NoError(t, err)

	full := filepath.Join(store.BasePath(), filepath.FromSlash(placement.Location))
	data, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, "on disk", string(data))

	// No temp files remain next to the placed file.
	entries, err := os.ReadDir(filepath.Dir(full))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, content.FileName, entries[0].Name())
}

func TestPut_FailedWriteLeavesNoDirectories(t *testing.T) {
	store := newTestStore(t, FSContentStoreConfig{})
	ns := uuid.New()

	_, err := store.Put(context.Background(), ns, strings.NewReader("abc"), 10)
	require.ErrorIs(t, err, content.ErrShortWrite)

	_, err = os.Stat(filepath.Join(store.BasePath(), ns.String()))
	assert.True(t, os.IsNotExist(err), "namespace directory should be pruned")
}

func TestPut_SkipsTakenLocation(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := content.NewClockWithSource(func() time.Time { return fixed })
	store := newTestStore(t, FSContentStoreConfig{Clock: clock})
	ns := uuid.New()

	// Occupy the location the clock is about to hand out.
	taken := content.NewLocation(ns, fixed)
	full := filepath.Join(store.BasePath(), filepath.FromSlash(taken))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte("previous"), 0644))

	placement, err := store.Put(context.Background(), ns, strings.NewReader("new"), 3)
	require.NoError(t, err)
	assert.NotEqual(t, taken, placement.Location)

	previous, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(previous))
}

func TestDelete_PrunesEmptyParents(t *testing.T) {
	store := newTestStore(t, FSContentStoreConfig{})
	ns := uuid.New()

	placement, err := store.Put(context.Background(), ns, strings.NewReader("x"), 1)
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), placement.Location))

	entries, err := os.ReadDir(store.BasePath())
	require.NoError(t, err)
	assert.Empty(t, entries, "storage root should be empty after pruning")

	_, err = os.Stat(store.BasePath())
	assert.NoError(t, err, "storage root itself must survive pruning")
}

func TestDelete_KeepsSharedParents(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	clock := content.NewClockWithSource(func() time.Time { return fixed })
	store := newTestStore(t, FSContentStoreConfig{Clock: clock})
	ns := uuid.New()

	first, err := store.Put(context.Background(), ns, strings.NewReader("1"), 1)
	require.NoError(t, err)
	second, err := store.Put(context.Background(), ns, strings.NewReader("2"), 1)
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), first.Location))

	rc, err := store.Open(context.Background(), second.Location)
	require.NoError(t, err)
	rc.Close()

	_, err = os.Stat(filepath.Join(store.BasePath(), ns.String(), "2024", "06", "01", "10", "00", "00"))
	assert.NoError(t, err)
}

func TestPutDelete_ConcurrentPruneRace(t *testing.T) {
	store := newTestStore(t, FSContentStoreConfig{NoSync: true})
	ns := uuid.New()

	const rounds = 200
	var wg sync.WaitGroup
	errs := make(chan error, rounds*2)

	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			data := bytes.Repeat([]byte{byte(i)}, 8)
			p, err := store.Put(context.Background(), ns, bytes.NewReader(data), uint64(len(data)))
			if err != nil {
				errs <- err
				return
			}
			if err := store.Delete(context.Background(), p.Location); err != nil {
				errs <- err
			}
		}(i)
		go func() {
			defer wg.Done()
			p, err := store.Put(context.Background(), ns, strings.NewReader("keep"), 4)
			if err != nil {
				errs <- err
				return
			}
			rc, err := store.Open(context.Background(), p.Location)
			if err != nil {
				errs <- err
				return
			}
			rc.Close()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestWalk_ReportsAbandonedTempFiles(t *testing.T) {
	store := newTestStore(t, FSContentStoreConfig{})
	ns := uuid.New()

	dir := filepath.Join(store.BasePath(), ns.String(), "2024", "01", "01", "00", "00", "00", "000000001")
	require.NoError(t, os.MkdirAll(dir, 0755))
	tmp, err := os.CreateTemp(dir, content.TempPattern)
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	var locations []string
	err = store.Walk(context.Background(), func(item content.Item) error {
		locations = append(locations, item.Location)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.True(t, strings.HasPrefix(filepath.Base(locations[0]), content.FileName+".tmp-"))

	failures, err := store.DeleteBatch(context.Background(), locations)
	require.NoError(t, err)
	assert.Empty(t, failures)

	_, err = os.Stat(filepath.Join(store.BasePath(), ns.String()))
	assert.True(t, os.IsNotExist(err))
}

func TestHealthcheck_RootRemoved(t *testing.T) {
	store := newTestStore(t, FSContentStoreConfig{Path: filepath.Join(t.TempDir(), "root")})
	require.NoError(t, os.RemoveAll(store.BasePath()))
	assert.Error(t, store.Healthcheck(context.Background()))
}
