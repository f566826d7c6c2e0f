package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/fotoprobe/pkg/metrics"
)

type contentMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
}

// NewContentMetrics returns Prometheus-backed ContentMetrics labelled with
// the store type, or the no-op implementation when metrics are disabled.
func NewContentMetrics(store string) metrics.ContentMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopContentMetrics()
	}
	reg := metrics.GetRegistry()
	labels := prometheus.Labels{"store": store}

	return &contentMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name:        "fotoprobe_content_operations_total",
				Help:        "Content store backend calls by operation and status",
				ConstLabels: labels,
			},
			[]string{"operation", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "fotoprobe_content_operation_duration_milliseconds",
				Help:        "Content store backend call duration in milliseconds",
				Buckets:     []float64{1, 10, 50, 100, 500, 1000, 5000},
				ConstLabels: labels,
			},
			[]string{"operation"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name:        "fotoprobe_content_bytes_total",
				Help:        "Bytes moved by content store operations",
				ConstLabels: labels,
			},
			[]string{"operation"},
		),
	}
}

func (m *contentMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.duration.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))
}

func (m *contentMetrics) RecordBytes(operation string, bytes int64) {
	m.bytes.WithLabelValues(operation).Add(float64(bytes))
}
