// Package fetch serves a retrieval backend over the FETCH RPC protocol.
package fetch

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/fotoprobe/internal/logger"
	proto "github.com/marmos91/fotoprobe/internal/protocol/fetch"
	"github.com/marmos91/fotoprobe/pkg/metrics"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

// FetchAdapter accepts FETCH connections and serves them from a backend
// session.
//
// Shutdown follows the same sequence whether triggered by context
// cancellation or Stop(): the listener closes, in-flight calls see their
// context cancelled, and active connections are drained until
// ShutdownTimeout before being force-closed.
type FetchAdapter struct {
	config Config

	listener net.Listener

	handler *backendHandler

	metrics metrics.FetchMetrics

	activeConns sync.WaitGroup

	shutdownOnce sync.Once

	shutdown chan struct{}

	connCount atomic.Int32

	// connSemaphore bounds concurrent connections when MaxConnections > 0.
	connSemaphore chan struct{}

	// shutdownCtx is cancelled on shutdown to abort in-flight calls.
	shutdownCtx context.Context

	cancelRequests context.CancelFunc

	// activeConnections tracks connections for forced closure.
	activeConnections sync.Map
}

// Config controls the FETCH listener.
type Config struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the TCP port to listen on.
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// MaxConnections limits concurrent connections. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections" validate:"min=0"`

	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`

	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`

	// IdleTimeout closes connections with no traffic.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"min=0"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`

	// HandleTTL is how long an OPEN handle stays valid.
	HandleTTL time.Duration `mapstructure:"handle_ttl" yaml:"handle_ttl" validate:"min=0"`

	// MaxRead is the largest READ count advertised and accepted.
	MaxRead uint32 `mapstructure:"max_read" yaml:"max_read" validate:"max=1048576"`

	// Tokens lists accepted AUTH_TOKEN credentials. When empty, OPEN and
	// READ are served without credentials.
	Tokens []string `mapstructure:"tokens" yaml:"tokens,omitempty"`

	// RevokedTokens are answered with AUTH_REJECTEDCRED so clients know
	// to re-authenticate instead of retrying.
	RevokedTokens []string `mapstructure:"revoked_tokens" yaml:"revoked_tokens,omitempty"`

	// RateLimit is the sustained calls per second admitted per connection.
	// 0 disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" validate:"min=0"`

	RateBurst int `mapstructure:"rate_burst" yaml:"rate_burst" validate:"min=0"`

	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" yaml:"metrics_log_interval" validate:"min=0"`
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 7465
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 2 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.HandleTTL == 0 {
		c.HandleTTL = 10 * time.Minute
	}
	if c.MaxRead == 0 {
		c.MaxRead = proto.MaxReadSize
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid max_connections %d: must be >= 0", c.MaxConnections)
	}
	if c.MaxRead > proto.MaxReadSize {
		return fmt.Errorf("invalid max_read %d: must be <= %d", c.MaxRead, proto.MaxReadSize)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown_timeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.HandleTTL <= 0 {
		return fmt.Errorf("invalid handle_ttl %v: must be > 0", c.HandleTTL)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("invalid rate_limit %v: must be >= 0", c.RateLimit)
	}
	return nil
}

// New creates a FetchAdapter serving backend. The backend is serialized
// because connections call it concurrently.
func New(config Config, backend retrieval.Session, fetchMetrics metrics.FetchMetrics) (*FetchAdapter, error) {
	if backend == nil {
		return nil, errors.New("fetch adapter: nil backend")
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("fetch adapter: %w", err)
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("FETCH connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("FETCH connection limit: unlimited")
	}

	if fetchMetrics == nil {
		fetchMetrics = metrics.NewNoopFetchMetrics()
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	return &FetchAdapter{
		config: config,
		handler: &backendHandler{
			backend: retrieval.Serialize(backend),
			handles: NewHandleTable(config.HandleTTL),
			maxRead: config.MaxRead,
			metrics: fetchMetrics,
		},
		metrics:        fetchMetrics,
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}, nil
}

// Serve listens on the configured port and blocks until ctx is cancelled.
func (s *FetchAdapter) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create FETCH listener on port %d: %w", s.config.Port, err)
	}
	return s.ServeListener(ctx, listener)
}

// ServeListener serves connections accepted from listener, which the
// adapter takes ownership of.
func (s *FetchAdapter) ServeListener(ctx context.Context, listener net.Listener) error {
	s.listener = listener
	logger.Info("FETCH server listening on %s", listener.Addr())
	logger.Debug("FETCH config: max_connections=%d read_timeout=%v write_timeout=%v idle_timeout=%v handle_ttl=%v max_read=%d",
		s.config.MaxConnections, s.config.ReadTimeout, s.config.WriteTimeout, s.config.IdleTimeout,
		s.config.HandleTTL, s.config.MaxRead)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("FETCH shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	go s.sweepHandles()
	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics()
	}

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := s.listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}

			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting FETCH connection: %v", err)
				continue
			}
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)

		connAddr := tcpConn.RemoteAddr().String()
		s.activeConnections.Store(connAddr, tcpConn)

		s.metrics.RecordConnectionAccepted()
		currentConns := s.connCount.Load()
		s.metrics.SetActiveConnections(currentConns)

		logger.Debug("FETCH connection accepted from %s (active: %d)", connAddr, currentConns)

		conn := newConnection(s, tcpConn)
		go func(addr string) {
			defer func() {
				s.activeConnections.Delete(addr)

				s.activeConns.Done()
				s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}

				s.metrics.RecordConnectionClosed()
				currentConns := s.connCount.Load()
				s.metrics.SetActiveConnections(currentConns)

				logger.Debug("FETCH connection closed from %s (active: %d)", addr, currentConns)
			}()

			conn.Serve(s.shutdownCtx)
		}(connAddr)
	}
}

// Addr returns the listener address once serving, or nil.
func (s *FetchAdapter) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *FetchAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("FETCH shutdown initiated")

		close(s.shutdown)

		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing FETCH listener: %v", err)
			}
		}

		s.cancelRequests()
	})
}

func (s *FetchAdapter) gracefulShutdown() error {
	activeCount := s.connCount.Load()
	logger.Info("FETCH graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, s.config.ShutdownTimeout)

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("FETCH graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("FETCH shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		return fmt.Errorf("FETCH shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *FetchAdapter) forceCloseConnections() {
	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		addr := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection to %s: %v", addr, err)
		} else {
			closedCount++
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed %d FETCH connection(s)", closedCount)
	}
}

// Stop initiates shutdown and waits for connections to drain or for ctx
// to expire.
func (s *FetchAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("FETCH shutdown context cancelled: %d connection(s) still active: %v",
			remaining, ctx.Err())
		return ctx.Err()
	}
}

// sweepHandles drops expired OPEN handles until shutdown.
func (s *FetchAdapter) sweepHandles() {
	ticker := time.NewTicker(max(s.config.HandleTTL/2, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			if n := s.handler.handles.Sweep(); n > 0 {
				logger.Debug("FETCH swept %d expired handle(s)", n)
			}
		}
	}
}

func (s *FetchAdapter) logMetrics() {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("FETCH metrics: active_connections=%d open_handles=%d",
				s.connCount.Load(), s.handler.handles.Len())
		}
	}
}

// GetActiveConnections returns the current number of connections.
func (s *FetchAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// checkToken classifies a credential: accepted, revoked or unknown.
func (s *FetchAdapter) checkToken(token []byte) (accepted, revoked bool) {
	for _, t := range s.config.RevokedTokens {
		if subtle.ConstantTimeCompare([]byte(t), token) == 1 {
			return false, true
		}
	}
	for _, t := range s.config.Tokens {
		if subtle.ConstantTimeCompare([]byte(t), token) == 1 {
			return true, false
		}
	}
	return false, false
}

func (s *FetchAdapter) authRequired() bool {
	return len(s.config.Tokens) > 0
}

func (s *FetchAdapter) Port() int {
	return s.config.Port
}

func (s *FetchAdapter) Protocol() string {
	return "FETCH"
}
