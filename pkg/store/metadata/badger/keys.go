package badger

import (
	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// Database Key Layout
// ===================
//
// Data Type        Prefix   Key Format                 Value Type
// ================================================================
// Namespaces       "ns:"    ns:<uuid>                  namespaceData (JSON)
// Objects          "o:"     o:<uuid>:<path>            objectData (JSON)
// Object ID seq    "seq:"   seq:objects                badger.Sequence
//
// Object keys embed the full path, so all objects of a namespace are a
// contiguous key range and a listing prefix maps to a key prefix. Keys sort
// bytewise, which is the listing order.

const (
	prefixNamespace = "ns:"
	prefixObject    = "o:"
	prefixSequence  = "seq:"
)

// keyNamespace returns "ns:<uuid>".
func keyNamespace(id uuid.UUID) []byte {
	return []byte(prefixNamespace + id.String())
}

// keyObjectNamespacePrefix returns "o:<uuid>:", the prefix shared by every
// object of the namespace.
func keyObjectNamespacePrefix(ns uuid.UUID) []byte {
	return []byte(prefixObject + ns.String() + ":")
}

// keyObject returns "o:<uuid>:<path>".
func keyObject(ns uuid.UUID, path string) []byte {
	return append(keyObjectNamespacePrefix(ns), path...)
}

// keyObjectSequence is the key backing the object ID sequence.
func keyObjectSequence() []byte {
	return []byte(prefixSequence + "objects")
}

// pathFromObjectKey strips the namespace prefix from an object key.
func pathFromObjectKey(nsPrefix, key []byte) string {
	return string(key[len(nsPrefix):])
}

// skipSubtree returns the smallest key greater than every key below
// path + Separator.
func skipSubtree(nsPrefix []byte, path string) []byte {
	key := make([]byte, 0, len(nsPrefix)+len(path)+1)
	key = append(key, nsPrefix...)
	key = append(key, path...)
	return append(key, metadata.Separator[0]+1)
}
