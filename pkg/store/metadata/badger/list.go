package badger

import (
	"context"
	"strings"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// ListChildren returns the direct children of prefix in key order.
//
// The scan covers the key range of the prefix. Whenever a key lies below a
// child (contains a further separator) the iterator seeks past that whole
// subtree, so deep trees cost one seek per child rather than one step per
// descendant.
func (s *BadgerMetadataStore) ListChildren(ctx context.Context, namespace uuid.UUID, prefix string) ([]metadata.Entry, error) {
	if err := metadata.ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	prefix = metadata.NormalizePrefix(prefix)

	entries := make([]metadata.Entry, 0)
	err := s.view(ctx, "list children", func(txn *badger.Txn) error {
		if _, err := getNamespace(txn, namespace); err != nil {
			return err
		}

		nsPrefix := keyObjectNamespacePrefix(namespace)
		scanPrefix := append(append([]byte{}, nsPrefix...), prefix...)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = scanPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// probe checks for descendants with a key-only iterator.
		probeOpts := badger.DefaultIteratorOptions
		probeOpts.PrefetchValues = false
		probe := txn.NewIterator(probeOpts)
		defer probe.Close()

		it.Rewind()
		for it.Valid() {
			item := it.Item()
			path := pathFromObjectKey(nsPrefix, item.Key())
			rest := path[len(prefix):]

			if i := strings.Index(rest, metadata.Separator); i >= 0 {
				it.Seek(skipSubtree(nsPrefix, prefix+rest[:i]))
				continue
			}
			if rest == "" {
				it.Next()
				continue
			}

			entry := metadata.Entry{Name: rest, Path: path}
			err := item.Value(func(val []byte) error {
				obj, err := decodeObject(namespace, path, val)
				if err != nil {
					return err
				}
				entry.Size = obj.Size
				return nil
			})
			if err != nil {
				return err
			}

			descendants := keyObject(namespace, metadata.DescendantPrefix(path))
			probe.Seek(descendants)
			entry.IsDir = probe.ValidForPrefix(descendants)

			entries = append(entries, entry)
			it.Next()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
