package tcpfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/marmos91/tcpfs/pkg/store/content"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// Reason classifies a ProtocolError.
type Reason int

const (
	// ReasonUnknownOpcode: the first byte is not a known command
	ReasonUnknownOpcode Reason = iota + 1

	// ReasonPathTooLong: path_len exceeds the configured maximum
	ReasonPathTooLong

	// ReasonObjectTooLarge: file_len exceeds the configured maximum
	ReasonObjectTooLarge

	// ReasonInvalidPath: empty, not UTF-8, contains NUL or ends in "/"
	ReasonInvalidPath

	// ReasonTruncated: the peer closed the stream inside a field
	ReasonTruncated

	// ReasonMalformed: a response record does not follow the framing
	ReasonMalformed
)

func (r Reason) String() string {
	switch r {
	case ReasonUnknownOpcode:
		return "UnknownOpcode"
	case ReasonPathTooLong:
		return "PathTooLong"
	case ReasonObjectTooLarge:
		return "ObjectTooLarge"
	case ReasonInvalidPath:
		return "InvalidPath"
	case ReasonTruncated:
		return "Truncated"
	case ReasonMalformed:
		return "Malformed"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// ProtocolError reports a request that violates the wire format or its
// limits. The connection is closed without side effects.
type ProtocolError struct {
	Reason Reason
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	msg := "protocol error: " + e.Reason.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// AsProtocolError extracts a *ProtocolError from err.
func AsProtocolError(err error) (*ProtocolError, bool) {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}

func protocolErrorf(reason Reason, format string, args ...any) *ProtocolError {
	return &ProtocolError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// readFailure wraps an error from reading field. End of stream inside a
// field becomes ReasonTruncated; other errors (timeouts, resets) are kept so
// the caller can classify them.
func readFailure(field string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ProtocolError{Reason: ReasonTruncated, Detail: field, Err: err}
	}
	return fmt.Errorf("read %s: %w", field, err)
}

// Outcome classes used in logs and metrics.
const (
	OutcomeSuccess       = "success"
	OutcomeNotFound      = "not_found"
	OutcomeProtocolError = "protocol_error"
	OutcomeTimeout       = "timeout"
	OutcomeCancelled     = "cancelled"
	OutcomeEOF           = "eof"
	OutcomeError         = "error"
)

// Classify buckets the error that ended a command.
func Classify(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	if metadata.IsNotFound(err) {
		return OutcomeNotFound
	}
	if _, ok := AsProtocolError(err); ok {
		return OutcomeProtocolError
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return OutcomeCancelled
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, content.ErrShortWrite) {
		return OutcomeEOF
	}
	return OutcomeError
}
