package metrics

import "time"

// ContentMetrics observes a remote content store such as S3.
type ContentMetrics interface {
	// ObserveOperation records one backend call and whether it failed.
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes adds bytes moved by operation.
	RecordBytes(operation string, bytes int64)
}

type noopContentMetrics struct{}

// NewNoopContentMetrics returns a ContentMetrics that does nothing.
func NewNoopContentMetrics() ContentMetrics {
	return noopContentMetrics{}
}

func (noopContentMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopContentMetrics) RecordBytes(string, int64)                     {}
