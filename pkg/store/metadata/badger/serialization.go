package badger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

// Records are stored as JSON: human-readable with badger's tooling and
// tolerant of added fields.

// namespaceData is the stored form of a namespace.
type namespaceData struct {
	TotalSize uint64 `json:"total_size"`
	CreatedAt int64  `json:"created_at"`
}

// objectData is the stored form of an object. Namespace and path are part
// of the key.
type objectData struct {
	ID        int64  `json:"id"`
	Location  string `json:"location"`
	Size      uint64 `json:"size"`
	Checksum  string `json:"checksum,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

func encodeNamespace(ns *metadata.Namespace) ([]byte, error) {
	data, err := json.Marshal(namespaceData{
		TotalSize: ns.TotalSize,
		CreatedAt: ns.CreatedAt.UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode namespace: %w", err)
	}
	return data, nil
}

func decodeNamespace(id uuid.UUID, data []byte) (*metadata.Namespace, error) {
	var nd namespaceData
	if err := json.Unmarshal(data, &nd); err != nil {
		return nil, fmt.Errorf("failed to decode namespace %s: %w", id, err)
	}
	return &metadata.Namespace{
		ID:        id,
		TotalSize: nd.TotalSize,
		CreatedAt: time.Unix(0, nd.CreatedAt),
	}, nil
}

func encodeObject(obj *metadata.Object) ([]byte, error) {
	data, err := json.Marshal(objectData{
		ID:        obj.ID,
		Location:  obj.Location,
		Size:      obj.Size,
		Checksum:  obj.Checksum,
		CreatedAt: obj.CreatedAt.UnixNano(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode object: %w", err)
	}
	return data, nil
}

func decodeObject(ns uuid.UUID, path string, data []byte) (*metadata.Object, error) {
	var od objectData
	if err := json.Unmarshal(data, &od); err != nil {
		return nil, fmt.Errorf("failed to decode object %s: %w", path, err)
	}
	return &metadata.Object{
		ID:        od.ID,
		Namespace: ns,
		Path:      path,
		Location:  od.Location,
		Size:      od.Size,
		Checksum:  od.Checksum,
		CreatedAt: time.Unix(0, od.CreatedAt),
	}, nil
}
