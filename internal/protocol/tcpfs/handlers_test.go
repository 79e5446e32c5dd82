package tcpfs

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/objectstore"
	"github.com/marmos91/tcpfs/pkg/store/content/memory"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
	"github.com/marmos91/tcpfs/pkg/store/metadata/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, implicit bool) (*objectstore.Service, *memory.MemoryContentStore) {
	t.Helper()
	idx, err := badger.NewBadgerMetadataStore(context.Background(), badger.BadgerMetadataStoreConfig{InMemory: true})
	require.NoError(t, err)
	store := memory.NewMemoryContentStore()
	svc := objectstore.New(idx, store, objectstore.Config{ImplicitNamespaces: implicit}, nil)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, store
}

// run decodes and executes one encoded request the way a connection does.
func run(t *testing.T, svc Service, request []byte) ([]byte, Result, error) {
	t.Helper()
	r := bytes.NewReader(request)
	op, err := ReadOpcode(r)
	require.NoError(t, err)
	info, _ := Lookup(op)

	req, err := info.Decode(r, DefaultLimits())
	if err != nil {
		return nil, Result{}, err
	}

	var out bytes.Buffer
	result, err := info.Execute(context.Background(), &Exchange{Reader: r, Writer: &out, Service: svc}, req)
	return out.Bytes(), result, err
}

func encodeUpload(t *testing.T, ns uuid.UUID, path string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, EncodeUpload(&buf, ns, path, uint64(len(data))))
	buf.Write(data)
	return buf.Bytes()
}

func encode(t *testing.T, fn func(w io.Writer) error) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, fn(&buf))
	return buf.Bytes()
}

func TestDispatchTable_Complete(t *testing.T) {
	names := map[Opcode]string{
		OpUpload:          "UPLOAD",
		OpDownload:        "DOWNLOAD",
		OpDelete:          "DELETE",
		OpList:            "LIST",
		OpCreateNamespace: "CREATE_NAMESPACE",
		OpDeleteNamespace: "DELETE_NAMESPACE",
	}
	for op, name := range names {
		info, ok := Lookup(op)
		require.True(t, ok, name)
		assert.Equal(t, name, info.Name)
	}
	_, ok := Lookup(0x07)
	assert.False(t, ok)
}

func TestHandlers_UploadDownload(t *testing.T) {
	svc, _ := newTestService(t, true)
	ns := uuid.New()

	out, result, err := run(t, svc, encodeUpload(t, ns, "greeting", []byte("hello world")))
	require.NoError(t, err)
	assert.Empty(t, out, "UPLOAD has no response body")
	assert.Equal(t, uint64(11), result.BytesIn)

	out, result, err = run(t, svc, encode(t, func(w io.Writer) error { return EncodeDownload(w, ns, "greeting") }))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out))
	assert.Equal(t, uint64(11), result.BytesOut)
}

func TestHandlers_DownloadNotFound(t *testing.T) {
	svc, _ := newTestService(t, true)

	out, _, err := run(t, svc, encode(t, func(w io.Writer) error { return EncodeDownload(w, uuid.New(), "nope") }))
	assert.True(t, metadata.IsNotFound(err))
	assert.Equal(t, OutcomeNotFound, Classify(err))
	assert.Empty(t, out)
}

func TestHandlers_UploadTruncatedPayload(t *testing.T) {
	svc, store := newTestService(t, true)
	ns := uuid.New()

	request := encodeUpload(t, ns, "k", []byte("0123456789"))
	_, _, err := run(t, svc, request[:len(request)-3])
	require.Error(t, err)
	assert.Equal(t, OutcomeEOF, Classify(err))
	assert.Zero(t, store.Len())

	_, err = svc.Index().GetObject(context.Background(), ns, "k")
	assert.True(t, metadata.IsNotFound(err))
}

func TestHandlers_ExplicitNamespaceRejectedWithoutReadingPayload(t *testing.T) {
	svc, store := newTestService(t, false)

	_, _, err := run(t, svc, encodeUpload(t, uuid.New(), "k", []byte("data")))
	assert.True(t, metadata.IsNotFound(err))
	assert.Zero(t, store.Len())
}

func TestHandlers_DeleteReturnsBytesFreed(t *testing.T) {
	svc, _ := newTestService(t, true)
	ns := uuid.New()
	_, _, err := run(t, svc, encodeUpload(t, ns, "k", []byte("12345")))
	require.NoError(t, err)

	out, _, err := run(t, svc, encode(t, func(w io.Writer) error { return EncodeDelete(w, ns, "k") }))
	require.NoError(t, err)
	freed, err := ReadBytesFreed(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), freed)

	ns2, err := svc.GetNamespace(context.Background(), ns)
	require.NoError(t, err)
	assert.Zero(t, ns2.TotalSize)
}

func TestHandlers_ListRecords(t *testing.T) {
	svc, _ := newTestService(t, true)
	ns := uuid.New()
	for path, data := range map[string]string{"/a/x": "x", "/a/y": "yy", "/a/y/z": "zzz"} {
		_, _, err := run(t, svc, encodeUpload(t, ns, path, []byte(data)))
		require.NoError(t, err)
	}

	out, _, err := run(t, svc, encode(t, func(w io.Writer) error { return EncodeList(w, ns, "/a/") }))
	require.NoError(t, err)

	r := bytes.NewReader(out)
	var records []ListRecord
	for {
		rec, err := DecodeListRecord(r, 0)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		records = append(records, *rec)
	}

	assert.Equal(t, []ListRecord{
		{IsDir: false, Namespace: ns, Size: 1, Path: "/a/x"},
		{IsDir: true, Namespace: ns, Size: 2, Path: "/a/y"},
	}, records)
}

func TestHandlers_ListUnknownNamespace(t *testing.T) {
	svc, _ := newTestService(t, true)

	out, _, err := run(t, svc, encode(t, func(w io.Writer) error { return EncodeList(w, uuid.New(), "") }))
	assert.True(t, metadata.IsNotFound(err))
	assert.Empty(t, out)
}

func TestHandlers_NamespaceLifecycle(t *testing.T) {
	svc, store := newTestService(t, false)

	out, _, err := run(t, svc, encode(t, EncodeCreateNamespace))
	require.NoError(t, err)
	ns, err := ReadNamespace(bytes.NewReader(out))
	require.NoError(t, err)

	for _, path := range []string{"a", "b/c"} {
		_, _, err := run(t, svc, encodeUpload(t, ns, path, []byte(strings.Repeat("z", 10))))
		require.NoError(t, err)
	}

	out, _, err = run(t, svc, encode(t, func(w io.Writer) error { return EncodeDeleteNamespace(w, ns) }))
	require.NoError(t, err)
	freed, err := ReadBytesFreed(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, uint64(20), freed)
	assert.Zero(t, store.Len())

	_, _, err = run(t, svc, encode(t, func(w io.Writer) error { return EncodeDeleteNamespace(w, ns) }))
	assert.True(t, metadata.IsNotFound(err))
}

func TestHandlers_DownloadShortContentIsInternal(t *testing.T) {
	svc := &shortService{data: "abc", size: 10}

	_, _, err := run(t, svc, encode(t, func(w io.Writer) error { return EncodeDownload(w, uuid.New(), "k") }))
	code, ok := metadata.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, metadata.ErrInternal, code)
	assert.Equal(t, OutcomeError, Classify(err))
}

// shortService serves a download whose bytes are shorter than the row says.
type shortService struct {
	Service
	data string
	size uint64
}

func (s *shortService) Download(_ context.Context, ns uuid.UUID, path string) (*metadata.Object, io.ReadCloser, error) {
	return &metadata.Object{Namespace: ns, Path: path, Size: s.size}, io.NopCloser(strings.NewReader(s.data)), nil
}
