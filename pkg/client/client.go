// Package client is a Go client for the tcpfs wire protocol.
//
// Every command opens its own TCP connection, writes one request, reads the
// response until the server closes, and classifies the close:
//
//   - clean close after a complete response: success
//   - clean close with no response bytes: ErrNotFound (see each method)
//   - connection reset: ErrServerFailure
//
// Example:
//
//	c := client.New(client.Config{Address: "localhost:7070"})
//	ns, err := c.CreateNamespace(ctx)
//	err = c.Upload(ctx, ns, "docs/a.txt", f, size)
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/google/uuid"
	protocol "github.com/marmos91/tcpfs/internal/protocol/tcpfs"
)

var (
	// ErrNotFound is returned when the server closed cleanly without a
	// response, which is how it reports a missing namespace or object.
	ErrNotFound = errors.New("tcpfs: not found")

	// ErrServerFailure is returned when the server reset the connection,
	// which is how it reports every failure other than not found.
	ErrServerFailure = errors.New("tcpfs: server reset the connection")
)

// Config configures a Client.
type Config struct {
	// Address is the server's host:port.
	Address string

	// DialTimeout bounds connection establishment. Default: 10s.
	DialTimeout time.Duration

	// IOTimeout bounds every read and write. 0 means no timeout.
	IOTimeout time.Duration

	// MaxPathLength bounds the path_len accepted in LIST responses.
	// Default: 4096.
	MaxPathLength uint32
}

// Client issues tcpfs commands. Safe for concurrent use.
type Client struct {
	config Config
	dialer net.Dialer
}

// New creates a Client.
func New(config Config) *Client {
	if config.DialTimeout == 0 {
		config.DialTimeout = 10 * time.Second
	}
	if config.MaxPathLength == 0 {
		config.MaxPathLength = protocol.DefaultMaxPathLength
	}
	return &Client{
		config: config,
		dialer: net.Dialer{Timeout: config.DialTimeout},
	}
}

// Address returns the configured server address.
func (c *Client) Address() string {
	return c.config.Address
}

// CreateNamespace asks the server for a new namespace.
func (c *Client) CreateNamespace(ctx context.Context) (uuid.UUID, error) {
	var resp []byte
	err := c.roundTrip(ctx, protocol.EncodeCreateNamespace, nil, func(r io.Reader) error {
		var err error
		resp, err = io.ReadAll(r)
		return err
	})
	if err != nil {
		return uuid.Nil, err
	}
	if len(resp) != protocol.NamespaceSize {
		return uuid.Nil, fmt.Errorf("tcpfs: CREATE_NAMESPACE returned %d bytes, want %d", len(resp), protocol.NamespaceSize)
	}
	return protocol.ReadNamespace(bytes.NewReader(resp))
}

// DeleteNamespace deletes ns and every object in it, returning the bytes freed.
// Returns ErrNotFound when ns does not exist.
func (c *Client) DeleteNamespace(ctx context.Context, ns uuid.UUID) (uint64, error) {
	return c.bytesFreed(ctx, "DELETE_NAMESPACE", func(w io.Writer) error {
		return protocol.EncodeDeleteNamespace(w, ns)
	})
}

// Upload stores size bytes read from r at (ns, path), replacing any existing
// object there.
//
// A clean close means the object was committed. The protocol reports an
// unknown namespace (servers with implicit namespaces disabled) the same way,
// so callers of such servers should create namespaces with CreateNamespace.
func (c *Client) Upload(ctx context.Context, ns uuid.UUID, path string, r io.Reader, size uint64) error {
	encode := func(w io.Writer) error {
		return protocol.EncodeUpload(w, ns, path, size)
	}
	payload := func(w io.Writer) error {
		n, err := io.CopyN(w, r, int64(size))
		if err != nil {
			return fmt.Errorf("tcpfs: send payload (%d of %d bytes): %w", n, size, err)
		}
		return nil
	}
	return c.roundTrip(ctx, encode, payload, func(r io.Reader) error {
		_, err := io.Copy(io.Discard, r)
		return err
	})
}

// Download writes the object at (ns, path) to w and returns its length.
//
// Returns ErrNotFound when the server sent nothing. An empty object looks the
// same on the wire, so a zero-length object also reports ErrNotFound.
func (c *Client) Download(ctx context.Context, ns uuid.UUID, path string, w io.Writer) (int64, error) {
	var n int64
	err := c.roundTrip(ctx, func(cw io.Writer) error {
		return protocol.EncodeDownload(cw, ns, path)
	}, nil, func(r io.Reader) error {
		var err error
		n, err = io.Copy(w, r)
		return err
	})
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

// Delete removes the object at (ns, path) and returns its size.
// Returns ErrNotFound when no such object exists.
func (c *Client) Delete(ctx context.Context, ns uuid.UUID, path string) (uint64, error) {
	return c.bytesFreed(ctx, "DELETE", func(w io.Writer) error {
		return protocol.EncodeDelete(w, ns, path)
	})
}

// List returns the direct children of prefix in ns.
//
// An unknown namespace and an empty listing are indistinguishable on the
// wire; both return an empty slice.
func (c *Client) List(ctx context.Context, ns uuid.UUID, prefix string) ([]protocol.ListRecord, error) {
	var records []protocol.ListRecord
	err := c.roundTrip(ctx, func(w io.Writer) error {
		return protocol.EncodeList(w, ns, prefix)
	}, nil, func(r io.Reader) error {
		for {
			rec, err := protocol.DecodeListRecord(r, c.config.MaxPathLength)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			records = append(records, *rec)
		}
	})
	return records, err
}

// bytesFreed runs a command whose response is a single bytes_freed u64.
func (c *Client) bytesFreed(ctx context.Context, command string, encode func(io.Writer) error) (uint64, error) {
	var resp []byte
	err := c.roundTrip(ctx, encode, nil, func(r io.Reader) error {
		var err error
		resp, err = io.ReadAll(r)
		return err
	})
	if err != nil {
		return 0, err
	}
	switch len(resp) {
	case 0:
		return 0, ErrNotFound
	case 8:
		return protocol.ReadBytesFreed(bytes.NewReader(resp))
	default:
		return 0, fmt.Errorf("tcpfs: %s returned %d bytes, want 8", command, len(resp))
	}
}

// roundTrip dials, writes the request header and optional payload, then hands
// the response stream to read. A reset at any point becomes ErrServerFailure.
func (c *Client) roundTrip(ctx context.Context, encode, payload func(io.Writer) error, read func(io.Reader) error) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.config.Address)
	if err != nil {
		return fmt.Errorf("tcpfs: dial %s: %w", c.config.Address, err)
	}
	defer conn.Close()

	// Unblock I/O when ctx ends
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	rw := &timeoutConn{conn: conn, timeout: c.config.IOTimeout}

	if err := encode(rw); err != nil {
		return c.classify(ctx, fmt.Errorf("tcpfs: send request: %w", err))
	}
	if payload != nil {
		if err := payload(rw); err != nil {
			return c.classify(ctx, err)
		}
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.CloseWrite()
	}

	if err := read(rw); err != nil {
		return c.classify(ctx, fmt.Errorf("tcpfs: read response: %w", err))
	}
	return nil
}

func (c *Client) classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	if isReset(err) {
		return fmt.Errorf("%w: %w", ErrServerFailure, err)
	}
	return err
}

// isReset reports whether err means the peer reset the connection. A write
// into a connection the server already reset surfaces as EPIPE.
func isReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE)
}

type timeoutConn struct {
	conn    net.Conn
	timeout time.Duration
}

func (t *timeoutConn) Read(p []byte) (int, error) {
	if t.timeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.timeout))
	}
	return t.conn.Read(p)
}

func (t *timeoutConn) Write(p []byte) (int, error) {
	if t.timeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.timeout))
	}
	return t.conn.Write(p)
}
