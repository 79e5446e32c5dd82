package tcpfs

import (
	"fmt"
	"math"
)

// Opcode is the first byte of every request.
type Opcode uint8

const (
	OpUpload          Opcode = 0x01
	OpDownload        Opcode = 0x02
	OpDelete          Opcode = 0x03
	OpList            Opcode = 0x04
	OpCreateNamespace Opcode = 0x05
	OpDeleteNamespace Opcode = 0x06
)

func (o Opcode) String() string {
	switch o {
	case OpUpload:
		return "UPLOAD"
	case OpDownload:
		return "DOWNLOAD"
	case OpDelete:
		return "DELETE"
	case OpList:
		return "LIST"
	case OpCreateNamespace:
		return "CREATE_NAMESPACE"
	case OpDeleteNamespace:
		return "DELETE_NAMESPACE"
	default:
		return fmt.Sprintf("OPCODE(0x%02x)", uint8(o))
	}
}

const (
	// NamespaceSize is the length of a namespace id on the wire.
	NamespaceSize = 16

	// DefaultMaxPathLength bounds path_len unless configured otherwise.
	DefaultMaxPathLength = 4096

	// DefaultMaxObjectSize bounds file_len unless configured otherwise.
	DefaultMaxObjectSize = 1 << 30

	// MaxWireObjectSize is the largest file_len the u32 field can carry.
	MaxWireObjectSize = math.MaxUint32
)

// RecordTerminator ends every LIST response record.
var RecordTerminator = [2]byte{'\r', '\n'}

// Limits bounds the untrusted lengths declared in request headers.
type Limits struct {
	// MaxPathLength is the largest accepted path_len.
	MaxPathLength uint32

	// MaxObjectSize is the largest accepted file_len.
	MaxObjectSize uint64
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxPathLength: DefaultMaxPathLength,
		MaxObjectSize: DefaultMaxObjectSize,
	}
}

// normalized fills zero fields with defaults and clamps MaxObjectSize to
// what the wire can express.
func (l Limits) normalized() Limits {
	if l.MaxPathLength == 0 {
		l.MaxPathLength = DefaultMaxPathLength
	}
	if l.MaxObjectSize == 0 {
		l.MaxObjectSize = DefaultMaxObjectSize
	}
	if l.MaxObjectSize > MaxWireObjectSize {
		l.MaxObjectSize = MaxWireObjectSize
	}
	return l
}
