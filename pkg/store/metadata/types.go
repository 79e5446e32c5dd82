package metadata

import (
	"time"

	"github.com/google/uuid"
)

// Namespace is an isolated collection of objects.
type Namespace struct {
	// ID is the 128-bit identifier used on the wire.
	ID uuid.UUID

	// TotalSize is the sum of the sizes of all objects in the namespace.
	// Maintained exclusively by the index.
	TotalSize uint64

	// CreatedAt is when the namespace row was created.
	CreatedAt time.Time
}

// Object is an indexed object.
type Object struct {
	// ID is the server-assigned sequence number.
	// Zero on input to PutObject; assigned by the index.
	ID int64

	// Namespace is the owning namespace.
	Namespace uuid.UUID

	// Path is the logical key, unique within the namespace.
	Path string

	// Location is the physical location of the bytes in the content store.
	// Never exposed to clients.
	Location string

	// Size is the object length in bytes.
	Size uint64

	// Checksum is the hex-encoded BLAKE3 digest of the bytes.
	Checksum string

	// CreatedAt is when the object was committed.
	CreatedAt time.Time
}

// Entry is one row of a directory-style listing.
type Entry struct {
	// Name is the path component after the listed prefix.
	Name string

	// Path is the full logical path of the object.
	Path string

	// Size is the object length in bytes.
	Size uint64

	// IsDir is true when further objects exist below Path + "/".
	IsDir bool
}

// NamespaceDeletion describes the outcome of DeleteNamespace.
type NamespaceDeletion struct {
	// Namespace is the row as it was before deletion.
	Namespace Namespace

	// Objects are all rows removed by the cascade.
	Objects []Object
}

// BytesFreed returns the sum of the sizes of the deleted objects.
func (d *NamespaceDeletion) BytesFreed() uint64 {
	var total uint64
	for _, obj := range d.Objects {
		total += obj.Size
	}
	return total
}
