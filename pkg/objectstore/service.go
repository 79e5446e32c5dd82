// Package objectstore coordinates the metadata index and the content store.
//
// Every mutation follows write-file-then-commit: bytes are durably placed at
// a fresh location first, and only then does the index transaction make them
// visible. Physical files belonging to rows that a transaction removed or
// replaced are unlinked after the commit; failures there are logged and left
// to the reconciliation sweep (pkg/gc), never reported to the client.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/internal/logger"
	"github.com/marmos91/tcpfs/pkg/metrics"
	"github.com/marmos91/tcpfs/pkg/store/content"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// Config controls Service behavior.
type Config struct {
	// ImplicitNamespaces creates a namespace on the first upload into it.
	// When false, uploads into an unknown namespace fail with ErrNotFound
	// before any payload byte is read.
	ImplicitNamespaces bool
}

// Service implements the object store operations on top of an index and a
// content store.
//
// Thread Safety:
// Safe for concurrent use. All serialization happens inside the index.
type Service struct {
	index   metadata.Index
	content content.ContentStore
	config  Config
	metrics metrics.ObjectStoreMetrics
}

// New creates a Service. A nil metrics uses the no-op implementation.
func New(index metadata.Index, store content.ContentStore, config Config, m metrics.ObjectStoreMetrics) *Service {
	if m == nil {
		m = metrics.NewNoopObjectStoreMetrics()
	}
	return &Service{
		index:   index,
		content: store,
		config:  config,
		metrics: m,
	}
}

// Index returns the underlying metadata index.
func (s *Service) Index() metadata.Index {
	return s.index
}

// Content returns the underlying content store.
func (s *Service) Content() content.ContentStore {
	return s.content
}

// ============================================================================
// Namespaces
// ============================================================================

// CreateNamespace creates an empty namespace with a random id.
func (s *Service) CreateNamespace(ctx context.Context) (ns *metadata.Namespace, err error) {
	defer s.observe("create_namespace", time.Now(), &err)

	ns, err = s.index.CreateNamespace(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Created namespace %s", ns.ID)
	return ns, nil
}

// GetNamespace returns the namespace row, including its total size.
func (s *Service) GetNamespace(ctx context.Context, id uuid.UUID) (*metadata.Namespace, error) {
	return s.index.GetNamespace(ctx, id)
}

// DeleteNamespace removes the namespace and every object in it, then unlinks
// their files. Returns the sum of the deleted object sizes.
func (s *Service) DeleteNamespace(ctx context.Context, id uuid.UUID) (freed uint64, err error) {
	defer s.observe("delete_namespace", time.Now(), &err)

	deletion, err := s.index.DeleteNamespace(ctx, id)
	if err != nil {
		return 0, err
	}

	locations := make([]string, 0, len(deletion.Objects))
	for _, obj := range deletion.Objects {
		locations = append(locations, obj.Location)
	}
	s.unlink(ctx, "delete_namespace", locations...)

	freed = deletion.BytesFreed()
	logger.Info("Deleted namespace %s: %d objects, %s freed",
		id, len(deletion.Objects), humanize.IBytes(freed))
	return freed, nil
}

// ============================================================================
// Objects
// ============================================================================

// Upload stores exactly size bytes read from r at (ns, path), replacing any
// existing object at that key.
//
// r is not read at all when the request is rejected up front (invalid path,
// unknown namespace in explicit mode).
func (s *Service) Upload(ctx context.Context, ns uuid.UUID, path string, r io.Reader, size uint64) (obj *metadata.Object, err error) {
	defer s.observe("upload", time.Now(), &err)

	if err := metadata.ValidatePath(path); err != nil {
		return nil, err
	}
	if !s.config.ImplicitNamespaces {
		if _, err := s.index.GetNamespace(ctx, ns); err != nil {
			return nil, err
		}
	}

	placement, err := s.content.Put(ctx, ns, r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to store content for %s: %w", path, err)
	}

	obj = &metadata.Object{
		Namespace: ns,
		Path:      path,
		Location:  placement.Location,
		Size:      placement.Size,
		Checksum:  placement.Checksum,
	}
	replaced, err := s.index.PutObject(ctx, obj, metadata.PutOptions{
		CreateNamespace: s.config.ImplicitNamespaces,
	})
	if err != nil {
		if metadata.IsNotFound(err) {
			// Namespace vanished between the check and the commit; the row
			// was definitely not written.
			s.unlink(context.WithoutCancel(ctx), "upload", placement.Location)
		} else {
			logger.Warn("Upload of %s/%s failed after placing %s, left for sweep: %v",
				ns, path, placement.Location, err)
		}
		return nil, err
	}

	if replaced != nil {
		s.unlink(ctx, "upload", replaced.Location)
		logger.Debug("Replaced %s/%s (%s -> %s)", ns, path,
			humanize.IBytes(replaced.Size), humanize.IBytes(obj.Size))
	} else {
		logger.Debug("Uploaded %s/%s (%s)", ns, path, humanize.IBytes(obj.Size))
	}
	return obj, nil
}

// Download opens the object at (ns, path). The caller must close the reader.
//
// Returns ErrNotFound when no row exists and ErrInternal when the row exists
// but its bytes are missing. A missing file triggers one more lookup first, in
// case a concurrent replace moved the row to a new location.
func (s *Service) Download(ctx context.Context, ns uuid.UUID, path string) (obj *metadata.Object, rc io.ReadCloser, err error) {
	defer s.observe("download", time.Now(), &err)

	if err := metadata.ValidatePath(path); err != nil {
		return nil, nil, err
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		obj, err = s.index.GetObject(ctx, ns, path)
		if err != nil {
			return nil, nil, err
		}

		rc, err = s.content.Open(ctx, obj.Location)
		if err == nil {
			return obj, rc, nil
		}
		if !errors.Is(err, content.ErrContentNotFound) {
			return nil, nil, fmt.Errorf("failed to open content for %s: %w", path, err)
		}
		lastErr = err
	}

	logger.Error("Object %s/%s is indexed at %s but its bytes are missing", ns, path, obj.Location)
	return nil, nil, metadata.NewInternalError("object content missing", path, lastErr)
}

// Delete removes the object at (ns, path) and unlinks its file. Returns the
// size of the deleted object.
func (s *Service) Delete(ctx context.Context, ns uuid.UUID, path string) (freed uint64, err error) {
	defer s.observe("delete", time.Now(), &err)

	if err := metadata.ValidatePath(path); err != nil {
		return 0, err
	}

	obj, err := s.index.DeleteObject(ctx, ns, path)
	if err != nil {
		return 0, err
	}
	s.unlink(ctx, "delete", obj.Location)

	logger.Debug("Deleted %s/%s (%s)", ns, path, humanize.IBytes(obj.Size))
	return obj.Size, nil
}

// List returns the direct children of prefix in ns. See
// metadata.NormalizePrefix for how prefix is interpreted.
func (s *Service) List(ctx context.Context, ns uuid.UUID, prefix string) (entries []metadata.Entry, err error) {
	defer s.observe("list", time.Now(), &err)

	if err := metadata.ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	return s.index.ListChildren(ctx, ns, prefix)
}

// ============================================================================
// Lifecycle
// ============================================================================

// Healthcheck verifies both stores.
func (s *Service) Healthcheck(ctx context.Context) error {
	if err := s.index.Healthcheck(ctx); err != nil {
		return fmt.Errorf("metadata index: %w", err)
	}
	if err := s.content.Healthcheck(ctx); err != nil {
		return fmt.Errorf("content store: %w", err)
	}
	return nil
}

// Close closes the index and the content store.
func (s *Service) Close() error {
	return errors.Join(s.index.Close(), s.content.Close())
}

// unlink removes physical files whose rows are gone. Errors are logged.
func (s *Service) unlink(ctx context.Context, operation string, locations ...string) {
	// The rows are already committed away; finish even if the request
	// context was cancelled in the meantime.
	ctx = context.WithoutCancel(ctx)

	for _, location := range locations {
		if err := s.content.Delete(ctx, location); err != nil {
			s.metrics.RecordUnlinkFailure(operation)
			logger.Warn("Failed to unlink %s, left for sweep: %v", location, err)
		}
	}
}

func (s *Service) observe(operation string, start time.Time, err *error) {
	s.metrics.ObserveOperation(operation, time.Since(start), *err)
}
