package tcpfs

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// Service is the object store the handlers execute against.
// *objectstore.Service satisfies it.
type Service interface {
	Upload(ctx context.Context, ns uuid.UUID, path string, r io.Reader, size uint64) (*metadata.Object, error)
	Download(ctx context.Context, ns uuid.UUID, path string) (*metadata.Object, io.ReadCloser, error)
	Delete(ctx context.Context, ns uuid.UUID, path string) (uint64, error)
	List(ctx context.Context, ns uuid.UUID, prefix string) ([]metadata.Entry, error)
	CreateNamespace(ctx context.Context) (*metadata.Namespace, error)
	DeleteNamespace(ctx context.Context, ns uuid.UUID) (uint64, error)
}

// Exchange is the per-connection state handed to a command's Execute.
//
// Reader is positioned right after the decoded header; for UPLOAD the payload
// is still unread. Writer receives the response.
type Exchange struct {
	Reader  io.Reader
	Writer  io.Writer
	Service Service
}

// Result reports the payload bytes moved by a command.
type Result struct {
	// BytesIn is the number of payload bytes read from the client.
	BytesIn uint64

	// BytesOut is the number of response bytes written to the client.
	BytesOut uint64
}

// ============================================================================
// Dispatch Table
// ============================================================================

// CommandInfo describes how one opcode is decoded and executed.
type CommandInfo struct {
	// Name is the command name for logging and metrics (e.g., "UPLOAD")
	Name string

	// Decode reads the request header following the opcode.
	Decode func(r io.Reader, limits Limits) (any, error)

	// Execute runs the decoded request and writes the response.
	Execute func(ctx context.Context, ex *Exchange, req any) (Result, error)
}

// dispatchTable maps opcodes to their command. Initialized once in init.
var dispatchTable map[Opcode]*CommandInfo

func init() {
	dispatchTable = map[Opcode]*CommandInfo{
		OpUpload:          command(OpUpload, DecodeUpload, executeUpload),
		OpDownload:        command(OpDownload, DecodeDownload, executeDownload),
		OpDelete:          command(OpDelete, DecodeDelete, executeDelete),
		OpList:            command(OpList, DecodeList, executeList),
		OpCreateNamespace: command(OpCreateNamespace, DecodeCreateNamespace, executeCreateNamespace),
		OpDeleteNamespace: command(OpDeleteNamespace, DecodeDeleteNamespace, executeDeleteNamespace),
	}
}

// Lookup returns the command registered for op.
func Lookup(op Opcode) (*CommandInfo, bool) {
	info, ok := dispatchTable[op]
	return info, ok
}

// command adapts a typed decoder and executor to the table's signatures.
func command[R any](
	op Opcode,
	decode func(io.Reader, Limits) (*R, error),
	execute func(context.Context, *Exchange, *R) (Result, error),
) *CommandInfo {
	return &CommandInfo{
		Name: op.String(),
		Decode: func(r io.Reader, limits Limits) (any, error) {
			return decode(r, limits)
		},
		Execute: func(ctx context.Context, ex *Exchange, req any) (Result, error) {
			return execute(ctx, ex, req.(*R))
		},
	}
}
