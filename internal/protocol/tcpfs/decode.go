package tcpfs

import (
	"encoding/binary"
	"io"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// ============================================================================
// Requests
// ============================================================================

// UploadRequest is the decoded UPLOAD header. Size payload bytes follow the
// path on the stream and are not consumed by DecodeUpload.
type UploadRequest struct {
	Namespace uuid.UUID
	Path      string
	Size      uint64
}

// DownloadRequest is the decoded DOWNLOAD request.
type DownloadRequest struct {
	Namespace uuid.UUID
	Path      string
}

// DeleteRequest is the decoded DELETE request.
type DeleteRequest struct {
	Namespace uuid.UUID
	Path      string
}

// ListRequest is the decoded LIST request. Prefix may be empty.
type ListRequest struct {
	Namespace uuid.UUID
	Prefix    string
}

// CreateNamespaceRequest carries no fields beyond the opcode.
type CreateNamespaceRequest struct{}

// DeleteNamespaceRequest is the decoded DELETE_NAMESPACE request.
type DeleteNamespaceRequest struct {
	Namespace uuid.UUID
}

// ============================================================================
// Server-side decoding
// ============================================================================
//
// Every declared length is checked against Limits before the field it
// describes is allocated or read.

// ReadOpcode reads the command byte. io.EOF is returned unchanged when the
// peer closed without sending anything.
func ReadOpcode(r io.Reader) (Opcode, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		if err == io.EOF {
			return 0, err
		}
		return 0, readFailure("opcode", err)
	}

	op := Opcode(b[0])
	if _, ok := Lookup(op); !ok {
		return op, protocolErrorf(ReasonUnknownOpcode, "0x%02x", b[0])
	}
	return op, nil
}

// DecodeUpload reads path_len | file_len | ns | path.
func DecodeUpload(r io.Reader, limits Limits) (*UploadRequest, error) {
	limits = limits.normalized()

	var header [4 + 4 + NamespaceSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, readFailure("upload header", err)
	}
	pathLen := binary.BigEndian.Uint32(header[0:4])
	fileLen := uint64(binary.BigEndian.Uint32(header[4:8]))
	ns := namespaceFrom(header[8:])

	if err := checkPathLength(pathLen, limits, false); err != nil {
		return nil, err
	}
	if fileLen > limits.MaxObjectSize {
		return nil, protocolErrorf(ReasonObjectTooLarge, "file_len %d exceeds %d", fileLen, limits.MaxObjectSize)
	}

	path, err := readObjectPath(r, pathLen)
	if err != nil {
		return nil, err
	}
	return &UploadRequest{Namespace: ns, Path: path, Size: fileLen}, nil
}

// DecodeDownload reads path_len | ns | path.
func DecodeDownload(r io.Reader, limits Limits) (*DownloadRequest, error) {
	pathLen, ns, err := readLengthThenNamespace(r, "download header")
	if err != nil {
		return nil, err
	}
	if err := checkPathLength(pathLen, limits.normalized(), false); err != nil {
		return nil, err
	}
	path, err := readObjectPath(r, pathLen)
	if err != nil {
		return nil, err
	}
	return &DownloadRequest{Namespace: ns, Path: path}, nil
}

// DecodeDelete reads ns | path_len | path. The field order differs from the
// other commands.
func DecodeDelete(r io.Reader, limits Limits) (*DeleteRequest, error) {
	var header [NamespaceSize + 4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, readFailure("delete header", err)
	}
	ns := namespaceFrom(header[:NamespaceSize])
	pathLen := binary.BigEndian.Uint32(header[NamespaceSize:])

	if err := checkPathLength(pathLen, limits.normalized(), false); err != nil {
		return nil, err
	}
	path, err := readObjectPath(r, pathLen)
	if err != nil {
		return nil, err
	}
	return &DeleteRequest{Namespace: ns, Path: path}, nil
}

// DecodeList reads path_len | ns | prefix. An empty prefix lists the root.
func DecodeList(r io.Reader, limits Limits) (*ListRequest, error) {
	pathLen, ns, err := readLengthThenNamespace(r, "list header")
	if err != nil {
		return nil, err
	}
	if err := checkPathLength(pathLen, limits.normalized(), true); err != nil {
		return nil, err
	}

	prefix, err := readString(r, pathLen, "prefix")
	if err != nil {
		return nil, err
	}
	if err := metadata.ValidatePrefix(prefix); err != nil {
		return nil, &ProtocolError{Reason: ReasonInvalidPath, Err: err}
	}
	return &ListRequest{Namespace: ns, Prefix: prefix}, nil
}

// DecodeCreateNamespace consumes nothing.
func DecodeCreateNamespace(io.Reader, Limits) (*CreateNamespaceRequest, error) {
	return &CreateNamespaceRequest{}, nil
}

// DecodeDeleteNamespace reads ns.
func DecodeDeleteNamespace(r io.Reader, _ Limits) (*DeleteNamespaceRequest, error) {
	ns, err := ReadNamespace(r)
	if err != nil {
		return nil, err
	}
	return &DeleteNamespaceRequest{Namespace: ns}, nil
}

// ============================================================================
// Field helpers
// ============================================================================

func namespaceFrom(b []byte) uuid.UUID {
	var ns uuid.UUID
	copy(ns[:], b)
	return ns
}

func readLengthThenNamespace(r io.Reader, field string) (uint32, uuid.UUID, error) {
	var header [4 + NamespaceSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, uuid.Nil, readFailure(field, err)
	}
	return binary.BigEndian.Uint32(header[:4]), namespaceFrom(header[4:]), nil
}

func checkPathLength(n uint32, limits Limits, allowEmpty bool) error {
	if n > limits.MaxPathLength {
		return protocolErrorf(ReasonPathTooLong, "path_len %d exceeds %d", n, limits.MaxPathLength)
	}
	if n == 0 && !allowEmpty {
		return protocolErrorf(ReasonInvalidPath, "empty path")
	}
	return nil
}

// readString reads n bytes into a string through a pooled buffer. n has
// already been bounded by checkPathLength.
func readString(r io.Reader, n uint32, field string) (string, error) {
	if n == 0 {
		return "", nil
	}
	buf := GetBuffer(n)
	defer PutBuffer(buf)

	if _, err := io.ReadFull(r, buf); err != nil {
		return "", readFailure(field, err)
	}
	return string(buf), nil
}

func readObjectPath(r io.Reader, n uint32) (string, error) {
	path, err := readString(r, n, "path")
	if err != nil {
		return "", err
	}
	if err := metadata.ValidatePath(path); err != nil {
		return "", &ProtocolError{Reason: ReasonInvalidPath, Err: err}
	}
	return path, nil
}
