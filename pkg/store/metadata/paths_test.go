package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "", NormalizePrefix(""))
	assert.Equal(t, "/", NormalizePrefix("/"))
	assert.Equal(t, "/a/", NormalizePrefix("/a"))
	assert.Equal(t, "/a/", NormalizePrefix("/a/"))
	assert.Equal(t, "docs/", NormalizePrefix("docs"))
}

func TestChildName(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		name   string
		ok     bool
	}{
		{"/a/", "/a/x", "x", true},
		{"/a/", "/a/y", "y", true},
		{"/a/", "/a/y/z", "", false},
		{"/a/", "/a/", "", false},
		{"/a/", "/b/x", "", false},
		{"/a/", "/ab", "", false},
		{"", "top", "top", true},
		{"", "/a", "", false},
		{"/", "/a", "a", true},
	}

	for _, tt := range tests {
		name, ok := ChildName(tt.prefix, tt.path)
		assert.Equal(t, tt.ok, ok, "prefix=%q path=%q", tt.prefix, tt.path)
		assert.Equal(t, tt.name, name, "prefix=%q path=%q", tt.prefix, tt.path)
	}
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, ValidatePath("/a/b.txt"))
	assert.NoError(t, ValidatePath("plain"))

	for _, bad := range []string{"", "/a/", "a\x00b", string([]byte{0xff, 0xfe})} {
		err := ValidatePath(bad)
		code, ok := CodeOf(err)
		assert.True(t, ok, "path %q", bad)
		assert.Equal(t, ErrInvalidArgument, code, "path %q", bad)
	}
}

func TestValidatePrefix(t *testing.T) {
	assert.NoError(t, ValidatePrefix(""))
	assert.NoError(t, ValidatePrefix("/a/"))
	assert.Error(t, ValidatePrefix("a\x00"))
}

func TestStoreErrorHelpers(t *testing.T) {
	err := NewNotFoundError("object", "/a")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
	assert.Equal(t, "object not found: /a", err.Error())

	cause := assert.AnError
	idxErr := NewIndexError("put object", cause)
	assert.ErrorIs(t, idxErr, cause)
	code, ok := CodeOf(idxErr)
	assert.True(t, ok)
	assert.Equal(t, ErrIndex, code)
	assert.Equal(t, "IndexError", code.String())

	_, ok = CodeOf(cause)
	assert.False(t, ok)
}
