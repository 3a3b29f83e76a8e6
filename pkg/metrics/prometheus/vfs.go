// Package prometheus implements the pkg/metrics interfaces using Prometheus
// collectors registered through promauto.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentfs/agentfs/pkg/metrics"
)

// vfsMetrics is the Prometheus implementation of metrics.VFSMetrics.
type vfsMetrics struct {
	operations      *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	bytesTransfered *prometheus.CounterVec
	openDescriptors prometheus.Gauge
}

// NewVFSMetrics creates a Prometheus-backed VFSMetrics registered on reg.
// A nil reg registers on the default registerer.
func NewVFSMetrics(reg prometheus.Registerer) metrics.VFSMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &vfsMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentfs_operations_total",
				Help: "Total number of dispatched filesystem operations by operation, mount, and errno",
			},
			[]string{"op", "mount", "error"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "agentfs_operation_duration_milliseconds",
				Help: "Duration of dispatched filesystem operations in milliseconds",
				Buckets: []float64{
					0.1,  // 100us - fd table hits
					0.5,  // 500us
					1,    // 1ms - single-row store reads
					5,    // 5ms
					10,   // 10ms
					50,   // 50ms - multi-range writes
					100,  // 100ms
					500,  // 500ms - busy retry territory
					1000, // 1s
				},
			},
			[]string{"op", "mount"},
		),
		bytesTransfered: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentfs_bytes_transferred_total",
				Help: "Total bytes moved through read and write operations",
			},
			[]string{"mount", "direction"},
		),
		openDescriptors: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "agentfs_open_descriptors",
				Help: "Current number of bound virtual file descriptors",
			},
		),
	}
}

func (m *vfsMetrics) RecordOperation(op string, mount string, duration time.Duration, errorCode string) {
	m.operations.WithLabelValues(op, mount, errorCode).Inc()
	m.duration.WithLabelValues(op, mount).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *vfsMetrics) RecordBytesTransferred(mount string, direction string, bytes int) {
	m.bytesTransfered.WithLabelValues(mount, direction).Add(float64(bytes))
}

func (m *vfsMetrics) SetOpenDescriptors(count int) {
	m.openDescriptors.Set(float64(count))
}
