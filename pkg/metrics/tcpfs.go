package metrics

import "time"

// TCPFSMetrics provides observability for the tcpfs protocol adapter.
//
// This interface is optional - if not provided to the adapter, a no-op
// implementation is used with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	m := prometheus.NewTCPFSMetrics()
//	adapter := tcpfs.New(config, service, m)
//
//	// Without metrics (no-op)
//	adapter := tcpfs.New(config, service, nil)
type TCPFSMetrics interface {
	// RecordRequest records a completed command.
	//
	// Parameters:
	//   - operation: command name (e.g., "UPLOAD", "LIST")
	//   - duration: time from opcode to the last response byte
	//   - status: outcome class ("success", "not_found", "protocol_error",
	//     "timeout", "error")
	RecordRequest(operation string, duration time.Duration, status string)

	// RecordRequestStart increments the in-flight gauge for operation.
	RecordRequestStart(operation string)

	// RecordRequestEnd decrements the in-flight gauge for operation.
	RecordRequestEnd(operation string)

	// RecordBytesTransferred records payload bytes.
	//
	// Parameters:
	//   - operation: command name
	//   - direction: "read" (from client) or "write" (to client)
	//   - bytes: number of bytes
	RecordBytesTransferred(operation string, direction string, bytes uint64)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the closed connections counter.
	RecordConnectionClosed()

	// RecordConnectionForceClosed counts connections closed because the
	// shutdown timeout expired.
	RecordConnectionForceClosed()

	// RecordConnectionRejected counts connections refused at accept time.
	//
	// Parameters:
	//   - reason: "rate_limit"
	RecordConnectionRejected(reason string)
}

// NewNoopTCPFSMetrics returns a TCPFSMetrics that discards everything.
func NewNoopTCPFSMetrics() TCPFSMetrics {
	return noopTCPFSMetrics{}
}

type noopTCPFSMetrics struct{}

func (noopTCPFSMetrics) RecordRequest(string, time.Duration, string)   {}
func (noopTCPFSMetrics) RecordRequestStart(string)                     {}
func (noopTCPFSMetrics) RecordRequestEnd(string)                       {}
func (noopTCPFSMetrics) RecordBytesTransferred(string, string, uint64) {}
func (noopTCPFSMetrics) SetActiveConnections(int32)                    {}
func (noopTCPFSMetrics) RecordConnectionAccepted()                     {}
func (noopTCPFSMetrics) RecordConnectionClosed()                       {}
func (noopTCPFSMetrics) RecordConnectionForceClosed()                  {}
func (noopTCPFSMetrics) RecordConnectionRejected(string)               {}
