package tcpfs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Test Helper Functions
// ============================================================================

// rawHeader builds arbitrary bytes for hostile-input tests.
func rawHeader(parts ...any) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		switch v := p.(type) {
		case byte:
			buf.WriteByte(v)
		case uint32:
			_ = binary.Write(&buf, binary.BigEndian, v)
		case uuid.UUID:
			buf.Write(v[:])
		case string:
			buf.WriteString(v)
		case []byte:
			buf.Write(v)
		}
	}
	return buf.Bytes()
}

func requireReason(t *testing.T, err error, reason Reason) {
	t.Helper()
	perr, ok := AsProtocolError(err)
	require.True(t, ok, "expected ProtocolError, got %v", err)
	assert.Equal(t, reason, perr.Reason, "error: %v", err)
}

// readCommand decodes a request produced by an Encode* function.
func readCommand(t *testing.T, data []byte) (Opcode, any, *bytes.Reader) {
	t.Helper()
	r := bytes.NewReader(data)
	op, err := ReadOpcode(r)
	require.NoError(t, err)
	info, ok := Lookup(op)
	require.True(t, ok)
	req, err := info.Decode(r, DefaultLimits())
	require.NoError(t, err)
	return op, req, r
}

// ============================================================================
// Encode / Decode agreement
// ============================================================================

func TestUpload_EncodeDecode(t *testing.T) {
	ns := uuid.New()
	var buf bytes.Buffer
	require.NoError(t, EncodeUpload(&buf, ns, "photos/cat.jpg", 5))
	buf.WriteString("hello")

	op, req, rest := readCommand(t, buf.Bytes())
	assert.Equal(t, OpUpload, op)
	assert.Equal(t, &UploadRequest{Namespace: ns, Path: "photos/cat.jpg", Size: 5}, req)

	payload, err := io.ReadAll(rest)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(payload), "payload must be left on the stream")
}

func TestUpload_WireLayout(t *testing.T) {
	ns := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")
	var buf bytes.Buffer
	require.NoError(t, EncodeUpload(&buf, ns, "ab", 0x01020304))

	expected := []byte{
		0x01,
		0x00, 0x00, 0x00, 0x02,
		0x01, 0x02, 0x03, 0x04,
		0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77,
		0x88, 0x99, 0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff,
		'a', 'b',
	}
	assert.Equal(t, expected, buf.Bytes())
}

func TestDownload_EncodeDecode(t *testing.T) {
	ns := uuid.New()
	var buf bytes.Buffer
	require.NoError(t, EncodeDownload(&buf, ns, "a/b"))

	op, req, _ := readCommand(t, buf.Bytes())
	assert.Equal(t, OpDownload, op)
	assert.Equal(t, &DownloadRequest{Namespace: ns, Path: "a/b"}, req)
}

func TestDelete_NamespaceBeforeLength(t *testing.T) {
	ns := uuid.New()
	var buf bytes.Buffer
	require.NoError(t, EncodeDelete(&buf, ns, "k"))

	data := buf.Bytes()
	assert.Equal(t, ns[:], data[1:17])
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(data[17:21]))

	_, req, _ := readCommand(t, data)
	assert.Equal(t, &DeleteRequest{Namespace: ns, Path: "k"}, req)
}

func TestList_EncodeDecode(t *testing.T) {
	ns := uuid.New()
	for _, prefix := range []string{"", "/a/", "docs"} {
		var buf bytes.Buffer
		require.NoError(t, EncodeList(&buf, ns, prefix))

		_, req, _ := readCommand(t, buf.Bytes())
		assert.Equal(t, &ListRequest{Namespace: ns, Prefix: prefix}, req)
	}
}

func TestNamespaceCommands_EncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeCreateNamespace(&buf))
	assert.Equal(t, []byte{0x05}, buf.Bytes())

	ns := uuid.New()
	buf.Reset()
	require.NoError(t, EncodeDeleteNamespace(&buf, ns))
	op, req, _ := readCommand(t, buf.Bytes())
	assert.Equal(t, OpDeleteNamespace, op)
	assert.Equal(t, &DeleteNamespaceRequest{Namespace: ns}, req)
}

func TestResponseFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBytesFreed(&buf, 1<<40+7))
	freed, err := ReadBytesFreed(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40+7), freed)

	ns := uuid.New()
	require.NoError(t, WriteNamespace(&buf, ns))
	got, err := ReadNamespace(&buf)
	require.NoError(t, err)
	assert.Equal(t, ns, got)

	_, err = ReadBytesFreed(bytes.NewReader([]byte{0, 0, 1}))
	requireReason(t, err, ReasonTruncated)
}

// ============================================================================
// LIST records
// ============================================================================

func TestListRecord_RoundTrip(t *testing.T) {
	ns := uuid.New()
	records := []ListRecord{
		{IsDir: false, Namespace: ns, Size: 12, Path: "/a/x"},
		{IsDir: true, Namespace: ns, Size: 0, Path: "/a/y"},
		{IsDir: false, Namespace: ns, Size: 1, Path: "line\r\nbreak"},
	}

	var buf bytes.Buffer
	for _, rec := range records {
		require.NoError(t, EncodeListRecord(&buf, rec))
	}

	for _, want := range records {
		got, err := DecodeListRecord(&buf, 0)
		require.NoError(t, err)
		assert.Equal(t, want, *got)
	}
	_, err := DecodeListRecord(&buf, 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestListRecord_Layout(t *testing.T) {
	ns := uuid.New()
	var buf bytes.Buffer
	require.NoError(t, EncodeListRecord(&buf, ListRecord{IsDir: true, Namespace: ns, Size: 3, Path: "p"}))

	data := buf.Bytes()
	require.Len(t, data, 1+4+16+4+1+2)
	assert.Equal(t, byte(1), data[0])
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(data[1:5]))
	assert.Equal(t, ns[:], data[5:21])
	assert.Equal(t, uint32(3), binary.BigEndian.Uint32(data[21:25]))
	assert.Equal(t, "p\r\n", string(data[25:]))
}

func TestListRecord_Malformed(t *testing.T) {
	ns := uuid.New()

	_, err := DecodeListRecord(bytes.NewReader(rawHeader(byte(2))), 0)
	requireReason(t, err, ReasonMalformed)

	_, err = DecodeListRecord(bytes.NewReader(rawHeader(byte(0), uint32(1), ns, uint32(0), "p", "XX")), 0)
	requireReason(t, err, ReasonMalformed)

	_, err = DecodeListRecord(bytes.NewReader(rawHeader(byte(0), uint32(1), ns)), 0)
	requireReason(t, err, ReasonTruncated)

	_, err = DecodeListRecord(bytes.NewReader(rawHeader(byte(0), uint32(100), ns, uint32(0))), 10)
	requireReason(t, err, ReasonPathTooLong)
}

// ============================================================================
// Hostile input
// ============================================================================

func TestReadOpcode(t *testing.T) {
	_, err := ReadOpcode(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)

	op, err := ReadOpcode(bytes.NewReader([]byte{0x7f}))
	requireReason(t, err, ReasonUnknownOpcode)
	assert.Equal(t, Opcode(0x7f), op)

	_, err = ReadOpcode(bytes.NewReader([]byte{0x00}))
	requireReason(t, err, ReasonUnknownOpcode)

	for _, op := range []Opcode{OpUpload, OpDownload, OpDelete, OpList, OpCreateNamespace, OpDeleteNamespace} {
		got, err := ReadOpcode(bytes.NewReader([]byte{byte(op)}))
		require.NoError(t, err)
		assert.Equal(t, op, got)
	}
}

func TestDecodeUpload_ObjectTooLargeBeforePayload(t *testing.T) {
	ns := uuid.New()
	data := rawHeader(uint32(1), uint32(101), ns, "k")
	r := &trackingReader{r: bytes.NewReader(append(data, make([]byte, 101)...))}

	_, err := DecodeUpload(r, Limits{MaxObjectSize: 100})
	requireReason(t, err, ReasonObjectTooLarge)
	assert.Equal(t, 4+4+16, r.n, "nothing past the header may be read")
}

func TestDecodeUpload_PathTooLongBeforeAllocation(t *testing.T) {
	ns := uuid.New()
	// A hostile path_len of 4 GiB with no body: must fail on the length alone.
	data := rawHeader(uint32(0xFFFFFFFF), uint32(1), ns)

	_, err := DecodeUpload(bytes.NewReader(data), DefaultLimits())
	requireReason(t, err, ReasonPathTooLong)
}

func TestDecodeUpload_LimitsClampToWire(t *testing.T) {
	ns := uuid.New()
	data := rawHeader(uint32(1), uint32(0xFFFFFFFF), ns, "k")

	req, err := DecodeUpload(bytes.NewReader(data), Limits{MaxObjectSize: 1 << 40})
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFFFFFFFF), req.Size)
}

func TestDecode_InvalidPaths(t *testing.T) {
	ns := uuid.New()
	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"trailing separator", "dir/"},
		{"nul", "a\x00b"},
		{"invalid utf8", "\xc3\x28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := rawHeader(uint32(len(tt.path)), ns, tt.path)
			_, err := DecodeDownload(bytes.NewReader(data), DefaultLimits())
			requireReason(t, err, ReasonInvalidPath)

			data = rawHeader(ns, uint32(len(tt.path)), tt.path)
			_, err = DecodeDelete(bytes.NewReader(data), DefaultLimits())
			requireReason(t, err, ReasonInvalidPath)
		})
	}
}

func TestDecodeList_PrefixRules(t *testing.T) {
	ns := uuid.New()

	_, err := DecodeList(bytes.NewReader(rawHeader(uint32(4), ns, "dir/")), DefaultLimits())
	assert.NoError(t, err, "a prefix may end with a separator")

	_, err = DecodeList(bytes.NewReader(rawHeader(uint32(3), ns, "a\x00b")), DefaultLimits())
	requireReason(t, err, ReasonInvalidPath)

	_, err = DecodeList(bytes.NewReader(rawHeader(uint32(5000), ns)), DefaultLimits())
	requireReason(t, err, ReasonPathTooLong)
}

func TestDecode_Truncated(t *testing.T) {
	ns := uuid.New()
	tests := []struct {
		name   string
		decode func(io.Reader) error
		data   []byte
	}{
		{"upload header", func(r io.Reader) error { _, err := DecodeUpload(r, DefaultLimits()); return err }, rawHeader(uint32(1), uint32(1))},
		{"upload path", func(r io.Reader) error { _, err := DecodeUpload(r, DefaultLimits()); return err }, rawHeader(uint32(5), uint32(1), ns, "ab")},
		{"download namespace", func(r io.Reader) error { _, err := DecodeDownload(r, DefaultLimits()); return err }, rawHeader(uint32(1), ns[:8])},
		{"delete", func(r io.Reader) error { _, err := DecodeDelete(r, DefaultLimits()); return err }, ns[:4]},
		{"list prefix", func(r io.Reader) error { _, err := DecodeList(r, DefaultLimits()); return err }, rawHeader(uint32(3), ns, "a")},
		{"delete namespace", func(r io.Reader) error { _, err := DecodeDeleteNamespace(r, DefaultLimits()); return err }, ns[:15]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireReason(t, tt.decode(bytes.NewReader(tt.data)), ReasonTruncated)
		})
	}
}

func TestDecode_ReadErrorsAreNotProtocolErrors(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := DecodeDownload(io.MultiReader(strings.NewReader("ab"), &errReader{err: boom}), DefaultLimits())
	require.ErrorIs(t, err, boom)
	_, ok := AsProtocolError(err)
	assert.False(t, ok)
}

func TestEncodeUpload_RejectsOversize(t *testing.T) {
	assert.Error(t, EncodeUpload(io.Discard, uuid.New(), "k", 1<<32))
}

// ============================================================================
// Test doubles
// ============================================================================

type trackingReader struct {
	r io.Reader
	n int
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.n += n
	return n, err
}

type errReader struct{ err error }

func (e *errReader) Read([]byte) (int, error) { return 0, e.err }
