package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/fotoprobe/pkg/metrics"
)

type fetchMetrics struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	bytesServed         prometheus.Counter
	activeConnections   prometheus.Gauge
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
	rateLimited         prometheus.Counter
}

// NewFetchMetrics returns a Prometheus-backed FetchMetrics, or the no-op
// implementation when the registry is not initialized.
func NewFetchMetrics() metrics.FetchMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopFetchMetrics()
	}
	reg := metrics.GetRegistry()

	return &fetchMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fotoprobe_fetch_requests_total",
				Help: "Fetch protocol calls by procedure and reply status",
			},
			[]string{"procedure", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fotoprobe_fetch_request_duration_milliseconds",
				Help:    "Duration of fetch protocol calls in milliseconds",
				Buckets: []float64{1, 10, 100, 1000, 10000},
			},
			[]string{"procedure"},
		),
		bytesServed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "fotoprobe_fetch_bytes_served_total",
			Help: "Payload bytes returned by READ",
		}),
		activeConnections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "fotoprobe_fetch_active_connections",
			Help: "Currently open fetch connections",
		}),
		connectionsAccepted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "fotoprobe_fetch_connections_accepted_total",
			Help: "Accepted fetch connections",
		}),
		connectionsClosed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "fotoprobe_fetch_connections_closed_total",
			Help: "Closed fetch connections",
		}),
		rateLimited: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "fotoprobe_fetch_rate_limited_total",
			Help: "Calls rejected by the per-connection rate limiter",
		}),
	}
}

func (m *fetchMetrics) RecordRequest(procedure, status string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(procedure, status).Inc()
	m.requestDuration.WithLabelValues(procedure).Observe(float64(duration.Milliseconds()))
}

func (m *fetchMetrics) RecordBytesServed(bytes int64) {
	m.bytesServed.Add(float64(bytes))
}

func (m *fetchMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *fetchMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *fetchMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *fetchMetrics) RecordRateLimited() {
	m.rateLimited.Inc()
}
