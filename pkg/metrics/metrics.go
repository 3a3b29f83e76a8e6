// Package metrics defines the observability interfaces implemented by the
// Prometheus backend in pkg/metrics/prometheus. All interfaces are optional:
// a nil implementation disables collection with zero overhead.
package metrics

import (
	"time"
)

// VFSMetrics provides observability for dispatched filesystem operations.
//
// Pass nil to disable metrics collection with zero overhead.
type VFSMetrics interface {
	// RecordOperation records a completed operation with its name, the
	// mount prefix it resolved to, duration, and the errno name if it
	// failed (empty on success).
	RecordOperation(op string, mount string, duration time.Duration, errorCode string)

	// RecordBytesTransferred records bytes moved through read or write.
	// Direction is "read" or "write".
	RecordBytesTransferred(mount string, direction string, bytes int)

	// SetOpenDescriptors updates the current descriptor count for a
	// session's fd table.
	SetOpenDescriptors(count int)
}

// StoreMetrics provides observability for the record store.
//
// Pass nil to disable metrics collection with zero overhead.
type StoreMetrics interface {
	// RecordTransaction records a committed or failed store transaction.
	RecordTransaction(duration time.Duration, retries int, err error)
}
