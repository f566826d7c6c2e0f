package retrieval

import (
	"context"
	"sync"
)

// Session is an authenticated, ordered connection to a media backend.
//
// Calls on one Session must be strictly sequenced. Implementations that
// cannot guarantee this themselves should be wrapped with Serialize before
// being shared between goroutines.
//
// OpenHandle fails with KindNotFound, KindUnauthorized, KindSessionExpired
// or KindTransient. ReadRange fails with KindTransient, KindProtocol,
// KindSessionExpired or KindNotFound. A ReadRange returning fewer bytes than
// requested signals the end of the object.
type Session interface {
	OpenHandle(ctx context.Context, ref MessageRef) (*FileHandle, error)
	ReadRange(ctx context.Context, h *FileHandle, w ByteWindow) ([]byte, error)
	Close() error
}

// serialSession admits one call at a time to the wrapped session.
type serialSession struct {
	mu    sync.Mutex
	inner Session
}

// Serialize returns a Session that forwards to s while holding an exclusive
// lock, so concurrent retrievals queue for the connection instead of
// interleaving unacknowledged calls.
func Serialize(s Session) Session {
	if _, ok := s.(*serialSession); ok {
		return s
	}
	return &serialSession{inner: s}
}

func (s *serialSession) OpenHandle(ctx context.Context, ref MessageRef) (*FileHandle, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.inner.OpenHandle(ctx, ref)
}

func (s *serialSession) ReadRange(ctx context.Context, h *FileHandle, w ByteWindow) ([]byte, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.inner.ReadRange(ctx, h, w)
}

func (s *serialSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}

// lock acquires the mutex, giving up if ctx ends while queued.
func (s *serialSession) lock(ctx context.Context) error {
	if s.mu.TryLock() {
		return nil
	}
	acquired := make(chan struct{})
	go func() {
		s.mu.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
		return nil
	case <-ctx.Done():
		// The goroutine still takes the lock; hand it straight back.
		go func() {
			<-acquired
			s.mu.Unlock()
		}()
		return NewError(KindOf(ctx.Err()), "session.queue", ctx.Err())
	}
}
