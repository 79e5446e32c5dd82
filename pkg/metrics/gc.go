package metrics

import "time"

// GCMetrics provides observability for the reconciliation sweep.
type GCMetrics interface {
	// RecordRun records one completed sweep.
	//
	// Parameters:
	//   - duration: wall time of the sweep
	//   - err: nil on success
	RecordRun(duration time.Duration, err error)

	// RecordScanned adds the number of physical items inspected.
	RecordScanned(count int)

	// RecordOrphansDeleted adds the number and total size of removed orphans.
	RecordOrphansDeleted(count int, bytes uint64)

	// RecordDeleteFailures adds the number of orphans that could not be removed.
	RecordDeleteFailures(count int)
}

// NewNoopGCMetrics returns a GCMetrics that discards everything.
func NewNoopGCMetrics() GCMetrics {
	return noopGCMetrics{}
}

type noopGCMetrics struct{}

func (noopGCMetrics) RecordRun(time.Duration, error)   {}
func (noopGCMetrics) RecordScanned(int)                {}
func (noopGCMetrics) RecordOrphansDeleted(int, uint64) {}
func (noopGCMetrics) RecordDeleteFailures(int)         {}
