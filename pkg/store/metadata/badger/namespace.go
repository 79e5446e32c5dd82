package badger

import (
	"context"
	"errors"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// maxCreateAttempts bounds retries if a random UUID is already taken.
const maxCreateAttempts = 3

// CreateNamespace stores a new namespace with a random UUID and zero total.
func (s *BadgerMetadataStore) CreateNamespace(ctx context.Context) (*metadata.Namespace, error) {
	var ns *metadata.Namespace
	err := s.update(ctx, "create namespace", func(txn *badger.Txn) error {
		for attempt := 0; attempt < maxCreateAttempts; attempt++ {
			candidate := &metadata.Namespace{ID: uuid.New(), CreatedAt: time.Now()}
			_, err := txn.Get(keyNamespace(candidate.ID))
			if err == nil {
				continue
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := putNamespace(txn, candidate); err != nil {
				return err
			}
			ns = candidate
			return nil
		}
		return &metadata.StoreError{
			Code:    metadata.ErrConflict,
			Message: "could not allocate a unique namespace id",
		}
	})
	if err != nil {
		return nil, err
	}
	return ns, nil
}

// GetNamespace returns the namespace record.
func (s *BadgerMetadataStore) GetNamespace(ctx context.Context, id uuid.UUID) (*metadata.Namespace, error) {
	var ns *metadata.Namespace
	err := s.view(ctx, "get namespace", func(txn *badger.Txn) error {
		var err error
		ns, err = getNamespace(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ns, nil
}

// DeleteNamespace removes the namespace record and every object key below it
// in a single transaction.
func (s *BadgerMetadataStore) DeleteNamespace(ctx context.Context, id uuid.UUID) (*metadata.NamespaceDeletion, error) {
	var deletion *metadata.NamespaceDeletion
	err := s.update(ctx, "delete namespace", func(txn *badger.Txn) error {
		ns, err := getNamespace(txn, id)
		if err != nil {
			return err
		}

		objects, keys, err := collectNamespaceObjects(txn, id)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		if err := txn.Delete(keyNamespace(id)); err != nil {
			return err
		}

		deletion = &metadata.NamespaceDeletion{Namespace: *ns, Objects: objects}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deletion, nil
}

// collectNamespaceObjects returns every object of the namespace, in path
// order, along with copies of their keys.
func collectNamespaceObjects(txn *badger.Txn, id uuid.UUID) ([]metadata.Object, [][]byte, error) {
	prefix := keyObjectNamespacePrefix(id)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	objects := make([]metadata.Object, 0)
	keys := make([][]byte, 0)
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := item.KeyCopy(nil)
		path := pathFromObjectKey(prefix, key)
		err := item.Value(func(val []byte) error {
			obj, err := decodeObject(id, path, val)
			if err != nil {
				return err
			}
			objects = append(objects, *obj)
			return nil
		})
		if err != nil {
			return nil, nil, err
		}
		keys = append(keys, key)
	}
	return objects, keys, nil
}

func getNamespace(txn *badger.Txn, id uuid.UUID) (*metadata.Namespace, error) {
	item, err := txn.Get(keyNamespace(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, metadata.NewNotFoundError("namespace", id.String())
	}
	if err != nil {
		return nil, err
	}

	var ns *metadata.Namespace
	err = item.Value(func(val []byte) error {
		ns, err = decodeNamespace(id, val)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ns, nil
}

func putNamespace(txn *badger.Txn, ns *metadata.Namespace) error {
	data, err := encodeNamespace(ns)
	if err != nil {
		return err
	}
	return txn.Set(keyNamespace(ns.ID), data)
}
