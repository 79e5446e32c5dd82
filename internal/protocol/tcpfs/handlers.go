package tcpfs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"

	"github.com/marmos91/tcpfs/internal/logger"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// ============================================================================
// Command Handlers
// ============================================================================
//
// A handler returns nil only after its response is fully written. Any error
// aborts the connection; the adapter decides between a clean and an abortive
// close from the error class.

func executeUpload(ctx context.Context, ex *Exchange, req *UploadRequest) (Result, error) {
	obj, err := ex.Service.Upload(ctx, req.Namespace, req.Path, ex.Reader, req.Size)
	if err != nil {
		return Result{}, err
	}
	logger.Debug("UPLOAD %s/%s: %d bytes, blake3=%s", req.Namespace, req.Path, obj.Size, obj.Checksum)
	return Result{BytesIn: obj.Size}, nil
}

func executeDownload(ctx context.Context, ex *Exchange, req *DownloadRequest) (Result, error) {
	obj, rc, err := ex.Service.Download(ctx, req.Namespace, req.Path)
	if err != nil {
		return Result{}, err
	}
	defer rc.Close()

	buf := GetBuffer(copyBufferSize)
	defer PutBuffer(buf)

	n, err := io.CopyBuffer(ex.Writer, io.LimitReader(rc, int64(obj.Size)), buf)
	result := Result{BytesOut: uint64(n)}
	if err != nil {
		return result, fmt.Errorf("stream %s: %w", req.Path, err)
	}
	if uint64(n) != obj.Size {
		return result, metadata.NewInternalError(
			fmt.Sprintf("content holds %d of %d bytes", n, obj.Size), req.Path, nil)
	}
	return result, nil
}

func executeDelete(ctx context.Context, ex *Exchange, req *DeleteRequest) (Result, error) {
	freed, err := ex.Service.Delete(ctx, req.Namespace, req.Path)
	if err != nil {
		return Result{}, err
	}
	if err := WriteBytesFreed(ex.Writer, freed); err != nil {
		return Result{}, err
	}
	return Result{BytesOut: 8}, nil
}

func executeList(ctx context.Context, ex *Exchange, req *ListRequest) (Result, error) {
	entries, err := ex.Service.List(ctx, req.Namespace, req.Prefix)
	if err != nil {
		return Result{}, err
	}

	counter := &countingWriter{w: ex.Writer}
	bw := bufio.NewWriterSize(counter, copyBufferSize)
	for _, entry := range entries {
		size := entry.Size
		if size > math.MaxUint32 {
			size = math.MaxUint32
		}
		err := EncodeListRecord(bw, ListRecord{
			IsDir:     entry.IsDir,
			Namespace: req.Namespace,
			Size:      uint32(size),
			Path:      entry.Path,
		})
		if err != nil {
			return Result{BytesOut: counter.n}, err
		}
	}
	if err := bw.Flush(); err != nil {
		return Result{BytesOut: counter.n}, err
	}

	logger.Debug("LIST %s %q: %d entries", req.Namespace, req.Prefix, len(entries))
	return Result{BytesOut: counter.n}, nil
}

func executeCreateNamespace(ctx context.Context, ex *Exchange, _ *CreateNamespaceRequest) (Result, error) {
	ns, err := ex.Service.CreateNamespace(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := WriteNamespace(ex.Writer, ns.ID); err != nil {
		return Result{}, err
	}
	return Result{BytesOut: NamespaceSize}, nil
}

func executeDeleteNamespace(ctx context.Context, ex *Exchange, req *DeleteNamespaceRequest) (Result, error) {
	freed, err := ex.Service.DeleteNamespace(ctx, req.Namespace)
	if err != nil {
		return Result{}, err
	}
	if err := WriteBytesFreed(ex.Writer, freed); err != nil {
		return Result{}, err
	}
	return Result{BytesOut: 8}, nil
}

type countingWriter struct {
	w io.Writer
	n uint64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += uint64(n)
	return n, err
}
