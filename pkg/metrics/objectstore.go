package metrics

import "time"

// ObjectStoreMetrics provides observability for object store operations,
// independent of the protocol that invoked them.
type ObjectStoreMetrics interface {
	// ObserveOperation records a completed operation.
	//
	// Parameters:
	//   - operation: "upload", "download", "delete", "list",
	//     "create_namespace", "delete_namespace"
	//   - duration: time taken
	//   - err: nil on success
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordUnlinkFailure counts physical files that could not be removed
	// after their rows were committed away. They are left to the sweep.
	RecordUnlinkFailure(operation string)
}

// NewNoopObjectStoreMetrics returns an ObjectStoreMetrics that discards
// everything.
func NewNoopObjectStoreMetrics() ObjectStoreMetrics {
	return noopObjectStoreMetrics{}
}

type noopObjectStoreMetrics struct{}

func (noopObjectStoreMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopObjectStoreMetrics) RecordUnlinkFailure(string)                    {}
