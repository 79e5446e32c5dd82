package content

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// CopyExact copies exactly size bytes from src to dst and returns the
// hex-encoded BLAKE3 digest of the copied bytes.
//
// A source that ends early yields ErrShortWrite. Cancelling ctx interrupts
// the copy at the next read.
func CopyExact(ctx context.Context, dst io.Writer, src io.Reader, size uint64) (string, error) {
	hasher := blake3.New()
	reader := io.TeeReader(&contextReader{ctx: ctx, r: src}, hasher)

	n, err := io.CopyN(dst, reader, int64(size))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", fmt.Errorf("%w: got %d of %d bytes", ErrShortWrite, n, size)
		}
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Checksum returns the hex-encoded BLAKE3 digest of data.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// contextReader fails reads once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
