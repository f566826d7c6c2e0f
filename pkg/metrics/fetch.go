package metrics

import "time"

// FetchMetrics provides observability for the fetch protocol adapter.
//
// If none is given to the adapter a no-op implementation is used.
//
//	adapter := fetch.New(config, prometheus.NewFetchMetrics())
type FetchMetrics interface {
	// RecordRequest records a completed call by procedure and reply status.
	RecordRequest(procedure string, status string, duration time.Duration)

	// RecordBytesServed adds the payload size of a READ reply.
	RecordBytesServed(bytes int64)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	RecordConnectionAccepted()
	RecordConnectionClosed()

	// RecordRateLimited counts calls rejected by the per-connection limiter.
	RecordRateLimited()
}

type noopFetchMetrics struct{}

// NewNoopFetchMetrics returns a FetchMetrics that does nothing.
func NewNoopFetchMetrics() FetchMetrics {
	return noopFetchMetrics{}
}

func (noopFetchMetrics) RecordRequest(string, string, time.Duration) {}
func (noopFetchMetrics) RecordBytesServed(int64)                     {}
func (noopFetchMetrics) SetActiveConnections(int32)                  {}
func (noopFetchMetrics) RecordConnectionAccepted()                   {}
func (noopFetchMetrics) RecordConnectionClosed()                     {}
func (noopFetchMetrics) RecordRateLimited()                          {}
