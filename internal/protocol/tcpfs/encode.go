package tcpfs

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"
)

// ============================================================================
// Client-side encoding
// ============================================================================
//
// Each Encode* function writes the opcode and the complete header in a
// single Write.

// EncodeUpload writes opcode | path_len | file_len | ns | path. The caller
// then streams exactly size payload bytes.
func EncodeUpload(w io.Writer, ns uuid.UUID, path string, size uint64) error {
	if size > MaxWireObjectSize {
		return fmt.Errorf("object size %d exceeds the protocol maximum %d", size, uint64(MaxWireObjectSize))
	}
	pathLen, err := wireLength(path)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, 1+4+4+NamespaceSize+len(path))
	buf = append(buf, byte(OpUpload))
	buf = binary.BigEndian.AppendUint32(buf, pathLen)
	buf = binary.BigEndian.AppendUint32(buf, uint32(size))
	buf = append(buf, ns[:]...)
	buf = append(buf, path...)
	return writeAll(w, buf)
}

// EncodeDownload writes opcode | path_len | ns | path.
func EncodeDownload(w io.Writer, ns uuid.UUID, path string) error {
	return encodeLengthThenNamespace(w, OpDownload, ns, path)
}

// EncodeDelete writes opcode | ns | path_len | path.
func EncodeDelete(w io.Writer, ns uuid.UUID, path string) error {
	pathLen, err := wireLength(path)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, 1+NamespaceSize+4+len(path))
	buf = append(buf, byte(OpDelete))
	buf = append(buf, ns[:]...)
	buf = binary.BigEndian.AppendUint32(buf, pathLen)
	buf = append(buf, path...)
	return writeAll(w, buf)
}

// EncodeList writes opcode | path_len | ns | prefix.
func EncodeList(w io.Writer, ns uuid.UUID, prefix string) error {
	return encodeLengthThenNamespace(w, OpList, ns, prefix)
}

// EncodeCreateNamespace writes the bare opcode.
func EncodeCreateNamespace(w io.Writer) error {
	return writeAll(w, []byte{byte(OpCreateNamespace)})
}

// EncodeDeleteNamespace writes opcode | ns.
func EncodeDeleteNamespace(w io.Writer, ns uuid.UUID) error {
	buf := make([]byte, 0, 1+NamespaceSize)
	buf = append(buf, byte(OpDeleteNamespace))
	buf = append(buf, ns[:]...)
	return writeAll(w, buf)
}

func encodeLengthThenNamespace(w io.Writer, op Opcode, ns uuid.UUID, path string) error {
	pathLen, err := wireLength(path)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, 1+4+NamespaceSize+len(path))
	buf = append(buf, byte(op))
	buf = binary.BigEndian.AppendUint32(buf, pathLen)
	buf = append(buf, ns[:]...)
	buf = append(buf, path...)
	return writeAll(w, buf)
}

func wireLength(s string) (uint32, error) {
	if uint64(len(s)) > math.MaxUint32 {
		return 0, fmt.Errorf("path length %d exceeds the protocol maximum", len(s))
	}
	return uint32(len(s)), nil
}

func writeAll(w io.Writer, buf []byte) error {
	_, err := w.Write(buf)
	return err
}

// ============================================================================
// Response fields
// ============================================================================

// WriteBytesFreed writes the u64 DELETE / DELETE_NAMESPACE response.
func WriteBytesFreed(w io.Writer, freed uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], freed)
	return writeAll(w, buf[:])
}

// ReadBytesFreed reads the u64 DELETE / DELETE_NAMESPACE response.
func ReadBytesFreed(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, readFailure("bytes_freed", err)
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// WriteNamespace writes a raw 16-byte namespace id.
func WriteNamespace(w io.Writer, ns uuid.UUID) error {
	return writeAll(w, ns[:])
}

// ReadNamespace reads a raw 16-byte namespace id.
func ReadNamespace(r io.Reader) (uuid.UUID, error) {
	var ns uuid.UUID
	if _, err := io.ReadFull(r, ns[:]); err != nil {
		return uuid.Nil, readFailure("namespace", err)
	}
	return ns, nil
}

// ============================================================================
// LIST records
// ============================================================================

// ListRecord is one entry of a LIST response.
type ListRecord struct {
	IsDir     bool
	Namespace uuid.UUID
	Size      uint32
	Path      string
}

// EncodeListRecord writes is_dir | path_len | ns | size | path | "\r\n".
func EncodeListRecord(w io.Writer, rec ListRecord) error {
	pathLen, err := wireLength(rec.Path)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, 1+4+NamespaceSize+4+len(rec.Path)+len(RecordTerminator))
	if rec.IsDir {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.BigEndian.AppendUint32(buf, pathLen)
	buf = append(buf, rec.Namespace[:]...)
	buf = binary.BigEndian.AppendUint32(buf, rec.Size)
	buf = append(buf, rec.Path...)
	buf = append(buf, RecordTerminator[:]...)
	return writeAll(w, buf)
}

// DecodeListRecord reads one record. io.EOF is returned unchanged at a
// record boundary, which marks the end of the listing.
func DecodeListRecord(r io.Reader, maxPathLength uint32) (*ListRecord, error) {
	if maxPathLength == 0 {
		maxPathLength = DefaultMaxPathLength
	}

	var flag [1]byte
	if _, err := io.ReadFull(r, flag[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, readFailure("record flag", err)
	}
	if flag[0] > 1 {
		return nil, protocolErrorf(ReasonMalformed, "is_dir byte 0x%02x", flag[0])
	}

	var header [4 + NamespaceSize + 4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, readFailure("record header", err)
	}
	pathLen := binary.BigEndian.Uint32(header[0:4])
	if pathLen > maxPathLength {
		return nil, protocolErrorf(ReasonPathTooLong, "record path_len %d exceeds %d", pathLen, maxPathLength)
	}

	rec := &ListRecord{
		IsDir:     flag[0] == 1,
		Namespace: namespaceFrom(header[4 : 4+NamespaceSize]),
		Size:      binary.BigEndian.Uint32(header[4+NamespaceSize:]),
	}

	path := make([]byte, int(pathLen)+len(RecordTerminator))
	if _, err := io.ReadFull(r, path); err != nil {
		return nil, readFailure("record path", err)
	}
	if path[pathLen] != RecordTerminator[0] || path[pathLen+1] != RecordTerminator[1] {
		return nil, protocolErrorf(ReasonMalformed, "missing record terminator")
	}
	rec.Path = string(path[:pathLen])
	return rec, nil
}
