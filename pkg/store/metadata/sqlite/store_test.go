package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/marmos91/tcpfs/pkg/store/metadata"
	metatesting "github.com/marmos91/tcpfs/pkg/store/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func newTestStore(t *testing.T, path string) *SQLiteMetadataStore {
	t.Helper()
	store, err := NewSQLiteMetadataStore(context.Background(), SQLiteMetadataStoreConfig{Path: path})
	require.NoError(t, err)
	return store
}

func TestSQLiteMetadataStore(t *testing.T) {
	suite := &metatesting.IndexTestSuite{
		NewIndex: func(t *testing.T) metadata.Index {
			return newTestStore(t, filepath.Join(t.TempDir(), "meta.db"))
		},
	}
	suite.Run(t)
}

func TestSQLiteMetadataStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteMetadataStore(context.Background(), SQLiteMetadataStoreConfig{})
	require.Error(t, err)
}

func TestSQLiteMetadataStore_InMemory(t *testing.T) {
	store := newTestStore(t, ":memory:")
	defer store.Close()

	ns, err := store.CreateNamespace(context.Background())
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), &metadata.Object{
		Namespace: ns.ID,
		Path:      "/x",
		Location:  "loc",
		Size:      9,
	}, metadata.PutOptions{})
	require.NoError(t, err)

	got, err := store.GetNamespace(context.Background(), ns.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), got.TotalSize)
}

func TestSQLiteMetadataStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "meta.db")
	ctx := context.Background()

	store := newTestStore(t, path)
	ns, err := store.CreateNamespace(ctx)
	require.NoError(t, err)
	_, err = store.PutObject(ctx, &metadata.Object{
		Namespace: ns.ID,
		Path:      "/kept",
		Location:  "loc-kept",
		Size:      17,
	}, metadata.PutOptions{})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := newTestStore(t, path)
	defer reopened.Close()

	got, err := reopened.GetObject(ctx, ns.ID, "/kept")
	require.NoError(t, err)
	assert.Equal(t, "loc-kept", got.Location)
	assertSchemaVersion(t, reopened, schemaVersion)

	total, err := reopened.GetNamespace(ctx, ns.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(17), total.TotalSize)
}

func TestSQLiteMetadataStore_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.db")

	store := newTestStore(t, path)
	err := store.withConn(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteTransient(conn, "PRAGMA user_version=99", nil)
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = NewSQLiteMetadataStore(context.Background(), SQLiteMetadataStoreConfig{Path: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

// A direct UPDATE of an object's size, bypassing PutObject, must still be
// reflected in the namespace total.
func TestSQLiteMetadataStore_TriggersTrackDirectUpdates(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "meta.db"))
	defer store.Close()
	ctx := context.Background()

	ns, err := store.CreateNamespace(ctx)
	require.NoError(t, err)
	obj := &metadata.Object{Namespace: ns.ID, Path: "/t", Location: "l", Size: 10}
	_, err = store.PutObject(ctx, obj, metadata.PutOptions{})
	require.NoError(t, err)

	err = store.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "UPDATE objects SET size = 3 WHERE id = ?",
			&sqlitex.ExecOptions{Args: []any{obj.ID}})
	})
	require.NoError(t, err)

	got, err := store.GetNamespace(ctx, ns.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.TotalSize)
}

func TestSQLiteMetadataStore_ContextCanceled(t *testing.T) {
	store := newTestStore(t, filepath.Join(t.TempDir(), "meta.db"))
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.CreateNamespace(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func assertSchemaVersion(t *testing.T, store *SQLiteMetadataStore, expected int) {
	t.Helper()
	var version int
	err := store.withConn(context.Background(), func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteTransient(conn, "PRAGMA user_version", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				version = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	require.NoError(t, err)
	assert.Equal(t, expected, version)
}
