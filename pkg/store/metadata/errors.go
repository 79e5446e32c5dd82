package metadata

import (
	"errors"
	"fmt"
)

// StoreError represents a domain error from index operations.
//
// Protocol handlers translate StoreError codes into the wire behavior of the
// command (clean close for ErrNotFound, abortive close otherwise).
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the logical path related to the error (if applicable)
	Path string

	// Err is the underlying cause (if any)
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = msg + ": " + e.Path
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// ErrorCode represents the category of an index error.
type ErrorCode int

const (
	// ErrNotFound indicates the namespace or object does not exist
	ErrNotFound ErrorCode = iota

	// ErrConflict indicates a uniqueness violation
	ErrConflict

	// ErrInvalidArgument indicates invalid parameters were provided
	ErrInvalidArgument

	// ErrIndex indicates a transaction failure; the transaction was rolled back
	ErrIndex

	// ErrInternal indicates corruption: metadata and content disagree
	ErrInternal
)

// String returns the error code name.
func (c ErrorCode) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrConflict:
		return "Conflict"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrIndex:
		return "IndexError"
	case ErrInternal:
		return "Internal"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// NewNotFoundError returns an ErrNotFound error for what ("namespace", "object").
func NewNotFoundError(what, path string) *StoreError {
	return &StoreError{
		Code:    ErrNotFound,
		Message: what + " not found",
		Path:    path,
	}
}

// NewIndexError wraps a transaction failure.
func NewIndexError(op string, err error) *StoreError {
	return &StoreError{
		Code:    ErrIndex,
		Message: op + " failed",
		Err:     err,
	}
}

// NewInternalError reports a metadata/content inconsistency.
func NewInternalError(message, path string, err error) *StoreError {
	return &StoreError{
		Code:    ErrInternal,
		Message: message,
		Path:    path,
		Err:     err,
	}
}

// CodeOf extracts the ErrorCode from err.
// The second return value is false if err is not a *StoreError.
func CodeOf(err error) (ErrorCode, bool) {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code, true
	}
	return 0, false
}

// IsNotFound reports whether err is an ErrNotFound StoreError.
func IsNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrNotFound
}

// IsConflict reports whether err is an ErrConflict StoreError.
func IsConflict(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == ErrConflict
}
