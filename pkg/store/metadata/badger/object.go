package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// PutObject writes the object record and adjusts the namespace total in one
// transaction. A replaced record keeps its ID.
func (s *BadgerMetadataStore) PutObject(ctx context.Context, obj *metadata.Object, opts metadata.PutOptions) (*metadata.Object, error) {
	if err := metadata.ValidatePath(obj.Path); err != nil {
		return nil, err
	}
	if obj.CreatedAt.IsZero() {
		obj.CreatedAt = time.Now()
	}

	var replaced *metadata.Object
	err := s.update(ctx, "put object", func(txn *badger.Txn) error {
		ns, err := getNamespace(txn, obj.Namespace)
		if metadata.IsNotFound(err) && opts.CreateNamespace {
			ns, err = &metadata.Namespace{ID: obj.Namespace, CreatedAt: time.Now()}, nil
		}
		if err != nil {
			return err
		}

		replaced, err = getObject(txn, obj.Namespace, obj.Path)
		if err != nil && !metadata.IsNotFound(err) {
			return err
		}

		if replaced != nil {
			obj.ID = replaced.ID
			ns.TotalSize -= replaced.Size
		} else {
			id, err := s.nextObjectID()
			if err != nil {
				return err
			}
			obj.ID = id
		}
		ns.TotalSize += obj.Size

		data, err := encodeObject(obj)
		if err != nil {
			return err
		}
		if err := txn.Set(keyObject(obj.Namespace, obj.Path), data); err != nil {
			return err
		}
		return putNamespace(txn, ns)
	})
	if err != nil {
		return nil, err
	}
	return replaced, nil
}

// GetObject returns the object record at (namespace, path).
func (s *BadgerMetadataStore) GetObject(ctx context.Context, namespace uuid.UUID, path string) (*metadata.Object, error) {
	var obj *metadata.Object
	err := s.view(ctx, "get object", func(txn *badger.Txn) error {
		var err error
		obj, err = getObject(txn, namespace, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// DeleteObject removes the record and subtracts its size from the namespace
// total.
func (s *BadgerMetadataStore) DeleteObject(ctx context.Context, namespace uuid.UUID, path string) (*metadata.Object, error) {
	var deleted *metadata.Object
	err := s.update(ctx, "delete object", func(txn *badger.Txn) error {
		var err error
		deleted, err = getObject(txn, namespace, path)
		if err != nil {
			return err
		}

		ns, err := getNamespace(txn, namespace)
		if err != nil {
			return err
		}
		if ns.TotalSize < deleted.Size {
			return fmt.Errorf("namespace %s total %d below object size %d", namespace, ns.TotalSize, deleted.Size)
		}
		ns.TotalSize -= deleted.Size

		if err := txn.Delete(keyObject(namespace, path)); err != nil {
			return err
		}
		return putNamespace(txn, ns)
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ListLocations returns the location of every stored object.
func (s *BadgerMetadataStore) ListLocations(ctx context.Context) ([]string, error) {
	locations := make([]string, 0)
	err := s.view(ctx, "list locations", func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixObject)

		it := txn.NewIterator(opts)
		defer it.Close()

		processed := 0
		for it.Rewind(); it.Valid(); it.Next() {
			processed++
			if processed%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			err := it.Item().Value(func(val []byte) error {
				obj, err := decodeObject(uuid.Nil, "", val)
				if err != nil {
					return err
				}
				locations = append(locations, obj.Location)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return locations, nil
}

// nextObjectID leases the next object ID. IDs start at 1.
func (s *BadgerMetadataStore) nextObjectID() (int64, error) {
	for {
		id, err := s.seq.Next()
		if err != nil {
			return 0, fmt.Errorf("failed to allocate object id: %w", err)
		}
		if id != 0 {
			return int64(id), nil
		}
	}
}

func getObject(txn *badger.Txn, namespace uuid.UUID, path string) (*metadata.Object, error) {
	item, err := txn.Get(keyObject(namespace, path))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, metadata.NewNotFoundError("object", path)
	}
	if err != nil {
		return nil, err
	}

	var obj *metadata.Object
	err = item.Value(func(val []byte) error {
		obj, err = decodeObject(namespace, path, val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return obj, nil
}
