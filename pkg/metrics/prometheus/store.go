package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/agentfs/agentfs/pkg/metrics"
	vfserrors "github.com/agentfs/agentfs/pkg/vfs/errors"
)

// storeMetrics is the Prometheus implementation of metrics.StoreMetrics.
type storeMetrics struct {
	transactions *prometheus.CounterVec
	duration     prometheus.Histogram
	retries      prometheus.Counter
}

// NewStoreMetrics creates a Prometheus-backed StoreMetrics registered on
// reg. A nil reg registers on the default registerer.
func NewStoreMetrics(reg prometheus.Registerer) metrics.StoreMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &storeMetrics{
		transactions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentfs_store_transactions_total",
				Help: "Total number of record store transactions by outcome",
			},
			[]string{"outcome"},
		),
		duration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agentfs_store_transaction_duration_milliseconds",
				Help:    "Duration of record store transactions in milliseconds",
				Buckets: []float64{0.5, 1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),
		retries: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "agentfs_store_busy_retries_total",
				Help: "Total number of transaction retries caused by store write-lock contention",
			},
		),
	}
}

func (m *storeMetrics) RecordTransaction(duration time.Duration, retries int, err error) {
	outcome := "ok"
	switch {
	case vfserrors.IsStorageBusyError(err):
		outcome = "busy"
	case err != nil:
		outcome = "error"
	}
	m.transactions.WithLabelValues(outcome).Inc()
	m.duration.Observe(float64(duration.Microseconds()) / 1000.0)
	m.retries.Add(float64(retries))
}
