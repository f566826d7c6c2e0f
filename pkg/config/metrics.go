package config

import (
	"github.com/marmos91/fotoprobe/pkg/metrics"
	promMetrics "github.com/marmos91/fotoprobe/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// The collectors below are never nil; they are no-ops when disabled.
	Retrieval metrics.RetrievalMetrics
	Fetch     metrics.FetchMetrics
	Content   metrics.ContentMetrics
}

// InitializeMetrics creates all metrics components.
//
// If metrics are enabled the shared Prometheus registry is initialized, the
// HTTP server is created and every collector is Prometheus-backed. If they
// are disabled the server is nil and every collector is a no-op.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			Retrieval: metrics.NewNoopRetrievalMetrics(),
			Fetch:     metrics.NewNoopFetchMetrics(),
			Content:   metrics.NewNoopContentMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server: metrics.NewServer(metrics.ServerConfig{
			Port: cfg.Server.Metrics.Port,
		}),
		Retrieval: promMetrics.NewRetrievalMetrics(),
		Fetch:     promMetrics.NewFetchMetrics(),
		Content:   promMetrics.NewContentMetrics(cfg.Content.Type),
	}
}
