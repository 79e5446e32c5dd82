package tcpfs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/tcpfs/internal/logger"
	protocol "github.com/marmos91/tcpfs/internal/protocol/tcpfs"
)

// connState is the position of a connection in its single command.
type connState int

const (
	stateAwaitingOpcode connState = iota
	stateReadingHeader
	stateReadingPayload
	stateExecuting
	stateResponding
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateAwaitingOpcode:
		return "awaiting_opcode"
	case stateReadingHeader:
		return "reading_header"
	case stateReadingPayload:
		return "reading_payload"
	case stateExecuting:
		return "executing"
	case stateResponding:
		return "responding"
	case stateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TCPFSConnection serves the one command carried by an accepted connection.
//
// States advance strictly forward:
//
//	AwaitingOpcode -> ReadingHeader -> [ReadingPayload] -> Executing -> Responding -> Closed
//
// Any failure jumps straight to Closed. There is no retry within a connection.
type TCPFSConnection struct {
	server *TCPFSAdapter
	conn   net.Conn
	state  connState
}

func NewTCPFSConnection(server *TCPFSAdapter, conn net.Conn) *TCPFSConnection {
	return &TCPFSConnection{
		server: server,
		conn:   conn,
		state:  stateAwaitingOpcode,
	}
}

// Serve runs the connection to completion and closes the socket.
//
// The close encodes the outcome: success and NotFound close cleanly (FIN),
// everything else resets the connection (RST) so a client can tell a failed
// command from one that succeeded with an empty response.
//
// Panics are recovered and treated as failures so a single misbehaving
// command cannot crash the server.
func (c *TCPFSConnection) Serve(ctx context.Context) {
	clientAddr := c.conn.RemoteAddr().String()

	var err error
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in tcpfs connection handler from %s (state %s): %v",
				clientAddr, c.state, r)
			err = fmt.Errorf("panic: %v", r)
		}
		c.close(err)
	}()

	err = c.handleCommand(ctx, clientAddr)
}

// handleCommand reads, executes and answers a single command.
func (c *TCPFSConnection) handleCommand(ctx context.Context, clientAddr string) error {
	rw := &deadlineConn{
		conn:         c.conn,
		readTimeout:  c.server.config.ReadTimeout,
		writeTimeout: c.server.config.WriteTimeout,
	}
	reader := bufio.NewReaderSize(rw, 4096)

	op, err := protocol.ReadOpcode(reader)
	if err != nil {
		c.logFailure(clientAddr, "", err)
		return err
	}
	info, _ := protocol.Lookup(op)

	c.state = stateReadingHeader
	req, err := info.Decode(reader, c.server.config.limits())
	if err != nil {
		c.logFailure(clientAddr, info.Name, err)
		return err
	}

	// Check context before dispatching to handler
	select {
	case <-ctx.Done():
		logger.Debug("tcpfs %s from %s cancelled before handler: %v", info.Name, clientAddr, ctx.Err())
		return ctx.Err()
	default:
	}

	var body io.Reader = reader
	if upload, ok := req.(*protocol.UploadRequest); ok {
		c.state = stateReadingPayload
		body = &payloadReader{r: reader, remaining: upload.Size, conn: c}
	} else {
		c.state = stateExecuting
	}

	c.server.metrics.RecordRequestStart(info.Name)
	defer c.server.metrics.RecordRequestEnd(info.Name)

	startTime := time.Now()
	result, err := info.Execute(ctx, &protocol.Exchange{
		Reader:  body,
		Writer:  &stateWriter{w: rw, conn: c},
		Service: c.server.service,
	}, req)
	duration := time.Since(startTime)

	outcome := protocol.Classify(err)
	c.server.metrics.RecordRequest(info.Name, duration, outcome)
	if result.BytesIn > 0 {
		c.server.metrics.RecordBytesTransferred(info.Name, "read", result.BytesIn)
	}
	if result.BytesOut > 0 {
		c.server.metrics.RecordBytesTransferred(info.Name, "write", result.BytesOut)
	}

	if err != nil {
		c.logFailure(clientAddr, info.Name, err)
		return err
	}

	logger.Debug("tcpfs %s from %s: in=%s out=%s (%v)", info.Name, clientAddr,
		humanize.IBytes(result.BytesIn), humanize.IBytes(result.BytesOut), duration)
	return nil
}

// logFailure logs the error that ended a command at a level matching its class.
func (c *TCPFSConnection) logFailure(clientAddr, command string, err error) {
	if command == "" {
		command = "command"
	}

	switch protocol.Classify(err) {
	case protocol.OutcomeEOF:
		if c.state == stateAwaitingOpcode {
			logger.Debug("tcpfs connection from %s closed by client before sending a command", clientAddr)
		} else {
			logger.Debug("tcpfs %s from %s: client closed during %s: %v", command, clientAddr, c.state, err)
		}
	case protocol.OutcomeNotFound:
		logger.Debug("tcpfs %s from %s: %v", command, clientAddr, err)
	case protocol.OutcomeTimeout:
		logger.Info("tcpfs %s from %s timed out during %s", command, clientAddr, c.state)
	case protocol.OutcomeCancelled:
		logger.Debug("tcpfs %s from %s cancelled during %s: %v", command, clientAddr, c.state, err)
	case protocol.OutcomeProtocolError:
		logger.Warn("tcpfs protocol error from %s: %v", clientAddr, err)
	default:
		logger.Error("tcpfs %s from %s failed during %s: %v", command, clientAddr, c.state, err)
	}
}

// close releases the socket, cleanly for success and NotFound and with a
// reset for everything else.
func (c *TCPFSConnection) close(err error) {
	c.state = stateClosed

	switch protocol.Classify(err) {
	case protocol.OutcomeSuccess, protocol.OutcomeNotFound:
		// Send FIN before close so the peer sees a clean end of stream even
		// if unread request bytes are still queued on our side.
		if tcpConn, ok := c.conn.(*net.TCPConn); ok {
			_ = tcpConn.CloseWrite()
		}
		_ = c.conn.Close()
	default:
		_ = abort(c.conn)
	}
}

// abort closes conn with SO_LINGER=0, which makes the kernel send RST.
func abort(conn net.Conn) error {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetLinger(0)
	}
	return conn.Close()
}

// deadlineConn re-arms the socket deadline before every read and write.
type deadlineConn struct {
	conn         net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (d *deadlineConn) Read(p []byte) (int, error) {
	if d.readTimeout > 0 {
		if err := d.conn.SetReadDeadline(time.Now().Add(d.readTimeout)); err != nil {
			return 0, fmt.Errorf("set read deadline: %w", err)
		}
	}
	return d.conn.Read(p)
}

func (d *deadlineConn) Write(p []byte) (int, error) {
	if d.writeTimeout > 0 {
		if err := d.conn.SetWriteDeadline(time.Now().Add(d.writeTimeout)); err != nil {
			return 0, fmt.Errorf("set write deadline: %w", err)
		}
	}
	return d.conn.Write(p)
}

// payloadReader moves the connection to Executing once the declared payload
// has been read in full.
type payloadReader struct {
	r         io.Reader
	remaining uint64
	conn      *TCPFSConnection
}

func (p *payloadReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if uint64(n) >= p.remaining {
		p.remaining = 0
	} else {
		p.remaining -= uint64(n)
	}
	if p.remaining == 0 && p.conn.state == stateReadingPayload {
		p.conn.state = stateExecuting
	}
	return n, err
}

// stateWriter moves the connection to Responding on the first response byte.
type stateWriter struct {
	w    io.Writer
	conn *TCPFSConnection
}

func (s *stateWriter) Write(p []byte) (int, error) {
	if s.conn.state != stateResponding {
		s.conn.state = stateResponding
	}
	return s.w.Write(p)
}
