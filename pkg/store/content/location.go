package content

import (
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileName is the final path component of every location.
const FileName = "file.data"

// TempPattern is the os.CreateTemp pattern for in-flight writes. Temp files
// share the destination directory so the final rename never crosses a
// filesystem boundary.
const TempPattern = FileName + ".tmp-*"

// Clock hands out strictly increasing UTC timestamps.
//
// Next returns max(now, last+1ns), so two calls never return the same instant
// even when the wall clock stalls or steps backwards.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewClock returns a Clock reading the wall clock.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockWithSource returns a Clock reading now. Used by tests.
func NewClockWithSource(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Next returns the next timestamp.
func (c *Clock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Round(0) strips the monotonic reading so comparisons use wall time only.
	t := c.now().UTC().Round(0)
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t
	return t
}

// NewLocation returns the location for bytes placed at t:
//
//	<namespace>/<YYYY>/<MM>/<DD>/<hh>/<mm>/<ss>/<nanos>/file.data
func NewLocation(namespace uuid.UUID, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%02d/%02d/%02d/%09d/%s",
		namespace,
		t.Year(), int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
		t.Nanosecond(),
		FileName,
	)
}

// ValidateLocation checks that location is a clean, relative, slash-separated
// path that stays below the store root.
func ValidateLocation(location string) error {
	switch {
	case location == "":
		return fmt.Errorf("%w: empty", ErrInvalidLocation)
	case strings.HasPrefix(location, "/"):
		return fmt.Errorf("%w: %q is absolute", ErrInvalidLocation, location)
	case strings.ContainsAny(location, "\\\x00"):
		return fmt.Errorf("%w: %q contains a forbidden character", ErrInvalidLocation, location)
	case path.Clean(location) != location:
		return fmt.Errorf("%w: %q is not clean", ErrInvalidLocation, location)
	case location == ".", location == "..", strings.HasPrefix(location, "../"):
		return fmt.Errorf("%w: %q escapes the store root", ErrInvalidLocation, location)
	}
	return nil
}

// NamespaceOf returns the namespace component of a location.
func NamespaceOf(location string) (uuid.UUID, error) {
	first, _, _ := strings.Cut(location, "/")
	id, err := uuid.Parse(first)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q has no namespace component", ErrInvalidLocation, location)
	}
	return id, nil
}
