package adapter

import "context"

// Adapter is a network front end that exposes a retrieval backend over a
// wire protocol and is managed by the server lifecycle.
//
// Lifecycle:
//  1. Creation: the adapter is built with its configuration and backend
//  2. Startup: Serve() listens and blocks until shutdown
//  3. Shutdown: Stop() stops accepting work and drains connections
//
// Implementations must allow Stop() to be called concurrently with Serve().
type Adapter interface {
	// Serve starts the protocol server and blocks until the context is
	// cancelled or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must stop accepting connections,
	// wait for active ones within its shutdown timeout and return nil.
	// Returning early with an error is treated as fatal by the server.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown. It is idempotent and respects the
	// context deadline.
	Stop(ctx context.Context) error

	// Protocol returns the protocol name for logging and metrics.
	Protocol() string

	// Port returns the configured TCP port.
	Port() int
}
