package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/fotoprobe/pkg/metrics"
)

type retrievalMetrics struct {
	retrievals    *prometheus.CounterVec
	bytesRead     prometheus.Histogram
	cycles        prometheus.Histogram
	duration      *prometheus.HistogramVec
	windowLength  prometheus.Histogram
	chunkAttempts *prometheus.CounterVec
}

// NewRetrievalMetrics returns a Prometheus-backed RetrievalMetrics, or the
// no-op implementation when the registry is not initialized.
func NewRetrievalMetrics() metrics.RetrievalMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopRetrievalMetrics()
	}
	reg := metrics.GetRegistry()

	byteBuckets := prometheus.ExponentialBuckets(4096, 2, 12) // 4KiB .. 8MiB

	return &retrievalMetrics{
		retrievals: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fotoprobe_retrievals_total",
				Help: "Finished retrievals by outcome status and error kind",
			},
			[]string{"status", "kind"},
		),
		bytesRead: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "fotoprobe_retrieval_bytes_read",
			Help:    "Bytes read per retrieval",
			Buckets: byteBuckets,
		}),
		cycles: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "fotoprobe_retrieval_cycles",
			Help:    "Read/decode cycles per retrieval",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fotoprobe_retrieval_duration_milliseconds",
				Help:    "Retrieval duration in milliseconds",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000, 30000},
			},
			[]string{"status"},
		),
		windowLength: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "fotoprobe_read_window_bytes",
			Help:    "Length of requested read windows",
			Buckets: byteBuckets,
		}),
		chunkAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fotoprobe_chunk_attempts_total",
				Help: "Window fetches and retries by result",
			},
			[]string{"result"},
		),
	}
}

func (m *retrievalMetrics) ObserveRetrieval(status, kind string, bytesRead uint64, cycles int, elapsed time.Duration) {
	m.retrievals.WithLabelValues(status, kind).Inc()
	m.bytesRead.Observe(float64(bytesRead))
	m.cycles.Observe(float64(cycles))
	m.duration.WithLabelValues(status).Observe(float64(elapsed.Milliseconds()))
}

func (m *retrievalMetrics) RecordWindow(length uint64) {
	m.windowLength.Observe(float64(length))
}

func (m *retrievalMetrics) RecordChunkAttempt(result string) {
	m.chunkAttempts.WithLabelValues(result).Inc()
}
