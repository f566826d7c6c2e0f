package metrics

import "time"

// RetrievalMetrics observes the retrieval engine.
//
// A nil RetrievalMetrics is never passed around: consumers fall back to
// NewNoopRetrievalMetrics.
type RetrievalMetrics interface {
	// ObserveRetrieval records one finished retrieval. kind is empty unless
	// the status is "failed" or "incomplete".
	ObserveRetrieval(status, kind string, bytesRead uint64, cycles int, elapsed time.Duration)

	// RecordWindow records the length of a requested read window.
	RecordWindow(length uint64)

	// RecordChunkAttempt counts window fetches and retries by result
	// ("ok", "retry", "failed").
	RecordChunkAttempt(result string)
}

type noopRetrievalMetrics struct{}

// NewNoopRetrievalMetrics returns a RetrievalMetrics that does nothing.
func NewNoopRetrievalMetrics() RetrievalMetrics {
	return noopRetrievalMetrics{}
}

func (noopRetrievalMetrics) ObserveRetrieval(string, string, uint64, int, time.Duration) {}
func (noopRetrievalMetrics) RecordWindow(uint64)                                         {}
func (noopRetrievalMetrics) RecordChunkAttempt(string)                                   {}
