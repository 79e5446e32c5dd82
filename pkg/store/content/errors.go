package content

import "errors"

var (
	// ErrContentNotFound indicates no bytes are stored at the location.
	ErrContentNotFound = errors.New("content not found")

	// ErrShortWrite indicates the source ended before the declared size was
	// read.
	ErrShortWrite = errors.New("content shorter than declared size")

	// ErrInvalidLocation indicates a location that is not a clean relative
	// path produced by this package.
	ErrInvalidLocation = errors.New("invalid content location")

	// ErrLocationsExhausted indicates Put could not find a free location.
	ErrLocationsExhausted = errors.New("no free content location")
)
