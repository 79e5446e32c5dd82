package metadata

import (
	"context"

	"github.com/google/uuid"
)

// ============================================================================
// Index Interface
// ============================================================================

// Index is the transactional metadata index of namespaces and objects.
//
// The index is the single source of truth for object existence: an object is
// visible to clients if and only if its row is present. Physical bytes live in
// a content store and are referenced by Object.Location.
//
// Size Accounting:
// Every namespace carries a TotalSize aggregate that always equals the sum of
// the sizes of the objects it contains. Implementations maintain the aggregate
// inside the same transaction as the object mutation (database triggers,
// read-modify-write under optimistic concurrency, ...). Callers never compute
// or write it.
//
// Error Handling:
// Business errors are returned as *StoreError (see errors.go). Transaction
// failures are reported with ErrIndex and leave the index unchanged.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Index interface {
	// ========================================================================
	// Namespace Operations
	// ========================================================================

	// CreateNamespace creates an empty namespace with a server-generated
	// random UUID and returns it.
	CreateNamespace(ctx context.Context) (*Namespace, error)

	// GetNamespace returns the namespace with the given id.
	//
	// Returns ErrNotFound if the namespace does not exist.
	GetNamespace(ctx context.Context, id uuid.UUID) (*Namespace, error)

	// DeleteNamespace removes the namespace and, by cascade, every object
	// in it, in a single transaction.
	//
	// The deleted objects are returned so the caller can release their
	// physical locations after the transaction committed.
	//
	// Returns ErrNotFound if the namespace does not exist.
	DeleteNamespace(ctx context.Context, id uuid.UUID) (*NamespaceDeletion, error)

	// ========================================================================
	// Object Operations
	// ========================================================================

	// PutObject inserts the object row, replacing any existing row with the
	// same (namespace, path). The namespace total is adjusted by the size
	// delta in the same transaction.
	//
	// If opts.CreateNamespace is true a missing namespace is created
	// implicitly; otherwise ErrNotFound is returned.
	//
	// Returns the replaced object (nil if the key was new) so the caller can
	// release its physical location.
	PutObject(ctx context.Context, obj *Object, opts PutOptions) (replaced *Object, err error)

	// GetObject returns the object stored at (namespace, path).
	//
	// Returns ErrNotFound if no row exists.
	GetObject(ctx context.Context, namespace uuid.UUID, path string) (*Object, error)

	// DeleteObject removes the object stored at (namespace, path) and returns
	// the deleted row.
	//
	// Returns ErrNotFound if no row exists.
	DeleteObject(ctx context.Context, namespace uuid.UUID, path string) (*Object, error)

	// ListChildren returns the direct children of prefix within the
	// namespace, ordered bytewise by path. See NormalizePrefix and
	// ChildName for the exact matching rules.
	//
	// Returns ErrNotFound if the namespace does not exist.
	ListChildren(ctx context.Context, namespace uuid.UUID, prefix string) ([]Entry, error)

	// ========================================================================
	// Maintenance
	// ========================================================================

	// ListLocations returns every physical location referenced by any
	// object. Used by the reconciliation sweep.
	ListLocations(ctx context.Context) ([]string, error)

	// Healthcheck verifies the index is reachable and operational.
	Healthcheck(ctx context.Context) error

	// Close releases all resources held by the index.
	Close() error
}

// PutOptions controls PutObject behavior.
type PutOptions struct {
	// CreateNamespace creates the namespace if it does not exist yet.
	CreateNamespace bool
}
