package metadata

import (
	"strings"
	"unicode/utf8"
)

// Separator is the logical path separator used to emulate directories over
// the flat (namespace, path) key space.
const Separator = "/"

// NormalizePrefix returns the listing prefix used for child matching.
//
// An empty prefix lists the namespace root (paths containing no separator).
// A non-empty prefix gets a trailing separator appended when missing, so
// "a/b" and "a/b/" list the same children.
func NormalizePrefix(prefix string) string {
	if prefix == "" || strings.HasSuffix(prefix, Separator) {
		return prefix
	}
	return prefix + Separator
}

// ChildName returns the name of path relative to the normalized prefix when
// path is a direct child of it: path starts with prefix, is longer than it,
// and has no further separator after it.
func ChildName(prefix, path string) (string, bool) {
	if len(path) <= len(prefix) || !strings.HasPrefix(path, prefix) {
		return "", false
	}
	name := path[len(prefix):]
	if strings.Contains(name, Separator) {
		return "", false
	}
	return name, true
}

// DescendantPrefix returns the prefix shared by every object nested below path.
func DescendantPrefix(path string) string {
	return path + Separator
}

// ValidatePath checks that path is acceptable as an object key.
func ValidatePath(path string) error {
	switch {
	case path == "":
		return &StoreError{Code: ErrInvalidArgument, Message: "empty path"}
	case !utf8.ValidString(path):
		return &StoreError{Code: ErrInvalidArgument, Message: "path is not valid UTF-8"}
	case strings.IndexByte(path, 0) >= 0:
		return &StoreError{Code: ErrInvalidArgument, Message: "path contains NUL", Path: path}
	case strings.HasSuffix(path, Separator):
		return &StoreError{Code: ErrInvalidArgument, Message: "path ends with separator", Path: path}
	}
	return nil
}

// ValidatePrefix checks that prefix is acceptable as a listing prefix.
// The empty prefix is valid.
func ValidatePrefix(prefix string) error {
	switch {
	case !utf8.ValidString(prefix):
		return &StoreError{Code: ErrInvalidArgument, Message: "prefix is not valid UTF-8"}
	case strings.IndexByte(prefix, 0) >= 0:
		return &StoreError{Code: ErrInvalidArgument, Message: "prefix contains NUL", Path: prefix}
	}
	return nil
}
