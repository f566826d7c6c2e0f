package config

import (
	"fmt"

	"github.com/marmos91/fotoprobe/pkg/adapter"
	"github.com/marmos91/fotoprobe/pkg/adapter/fetch"
	"github.com/marmos91/fotoprobe/pkg/metrics"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

// CreateAdapters creates all enabled protocol adapters serving backend.
//
// Parameters:
//   - cfg: The complete fotoprobe configuration
//   - backend: The session adapters read media from
//   - fetchMetrics: Optional FETCH metrics collector (nil = no metrics)
func CreateAdapters(cfg *Config, backend retrieval.Session, fetchMetrics metrics.FetchMetrics) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.Fetch.Enabled {
		fetchAdapter, err := fetch.New(cfg.Adapters.Fetch, backend, fetchMetrics)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, fetchAdapter)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
