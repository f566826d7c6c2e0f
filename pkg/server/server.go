// Package server runs the protocol adapters and the metrics endpoint that
// expose one retrieval backend.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/fotoprobe/internal/logger"
	"github.com/marmos91/fotoprobe/pkg/adapter"
	"github.com/marmos91/fotoprobe/pkg/metrics"
)

// Server manages the lifecycle of the adapters serving a backend session.
//
// Lifecycle:
//  1. Creation: New() with a shutdown timeout
//  2. Registration: AddAdapter() for each protocol, SetMetricsServer() optionally
//  3. Startup: Serve() starts everything concurrently
//  4. Shutdown: context cancellation or the first adapter failure stops all
//     adapters in reverse registration order
//
// Serve may only be called once.
type Server struct {
	shutdownTimeout time.Duration

	mu       sync.Mutex
	adapters []adapter.Adapter
	metrics  *metrics.Server
	served   bool
}

// New creates a server whose Stop calls share shutdownTimeout. Zero means
// 30 seconds.
func New(shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &Server{shutdownTimeout: shutdownTimeout}
}

// AddAdapter registers an adapter. Duplicate protocols and port conflicts
// are rejected.
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		return errors.New("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return errors.New("cannot add adapter after Serve() has been called")
	}

	protocol, port := a.Protocol(), a.Port()
	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// SetMetricsServer attaches the Prometheus endpoint. nil disables it.
func (s *Server) SetMetricsServer(m *metrics.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// Adapters returns a snapshot of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]adapter.Adapter(nil), s.adapters...)
}

type adapterError struct {
	protocol string
	err      error
}

// Serve starts all adapters and blocks until ctx is cancelled or one of
// them fails. It returns ctx.Err() after a cancellation-driven shutdown and
// the adapter error otherwise.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("Serve() has already been called")
	}
	s.served = true
	adapters := append([]adapter.Adapter(nil), s.adapters...)
	metricsServer := s.metrics
	s.mu.Unlock()

	if len(adapters) == 0 {
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan adapterError, len(adapters)+1)
	var wg sync.WaitGroup

	if metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Start(runCtx); err != nil && runCtx.Err() == nil {
				// Metrics failures are logged, never fatal.
				logger.Error("Metrics server failed: %v", err)
			}
		}()
	}

	logger.Info("Starting %d adapter(s)", len(adapters))
	var adaptersWG sync.WaitGroup
	for _, a := range adapters {
		adaptersWG.Add(1)
		go func(a adapter.Adapter) {
			defer adaptersWG.Done()
			protocol := a.Protocol()

			err := a.Serve(runCtx)
			switch {
			case err == nil:
				logger.Info("%s adapter stopped", protocol)
			case errors.Is(err, context.Canceled) || runCtx.Err() != nil:
				logger.Debug("%s adapter stopped during shutdown: %v", protocol, err)
			default:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			}
		}(a)
	}

	allDone := make(chan struct{})
	go func() {
		adaptersWG.Wait()
		close(allDone)
	}()

	var result error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		result = ctx.Err()
	case ae := <-errChan:
		logger.Error("Adapter %s failed, shutting down the others", ae.protocol)
		result = fmt.Errorf("%s adapter error: %w", ae.protocol, ae.err)
	case <-allDone:
		select {
		case ae := <-errChan:
			result = fmt.Errorf("%s adapter error: %w", ae.protocol, ae.err)
		default:
			logger.Info("All adapters exited")
		}
	}

	s.stopAll(adapters)
	cancel()
	<-allDone
	wg.Wait()

	logger.Info("Server stopped")
	return result
}

// stopAll signals every adapter in reverse registration order. It does not
// wait for Serve to return; the caller does that.
func (s *Server) stopAll(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	for i := len(adapters) - 1; i >= 0; i-- {
		a := adapters[i]
		if err := a.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", a.Protocol(), err)
		}
	}
}
