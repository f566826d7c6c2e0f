package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter blocks in Serve until its context ends or Stop is called.
type fakeAdapter struct {
	protocol string
	port     int
	failWith error

	stop    chan struct{}
	stopped atomic.Int32
}

func newFake(protocol string, port int) *fakeAdapter {
	return &fakeAdapter{protocol: protocol, port: port, stop: make(chan struct{})}
}

func (f *fakeAdapter) Serve(ctx context.Context) error {
	if f.failWith != nil {
		return f.failWith
	}
	select {
	case <-ctx.Done():
	case <-f.stop:
	}
	return nil
}

func (f *fakeAdapter) Stop(ctx context.Context) error {
	if f.stopped.Add(1) == 1 {
		close(f.stop)
	}
	return nil
}

func (f *fakeAdapter) Protocol() string { return f.protocol }
func (f *fakeAdapter) Port() int        { return f.port }

// ============================================================================
// Registration
// ============================================================================

func TestServer_AddAdapter(t *testing.T) {
	t.Run("RejectsNil", func(t *testing.T) {
		assert.Error(t, New(0).AddAdapter(nil))
	})

	t.Run("RejectsDuplicateProtocol", func(t *testing.T) {
		s := New(0)
		require.NoError(t, s.AddAdapter(newFake("FETCH", 7465)))
		assert.Error(t, s.AddAdapter(newFake("FETCH", 7466)))
	})

	t.Run("RejectsPortConflict", func(t *testing.T) {
		s := New(0)
		require.NoError(t, s.AddAdapter(newFake("FETCH", 7465)))
		assert.Error(t, s.AddAdapter(newFake("OTHER", 7465)))
	})

	t.Run("EphemeralPortsDoNotConflict", func(t *testing.T) {
		s := New(0)
		require.NoError(t, s.AddAdapter(newFake("FETCH", 0)))
		require.NoError(t, s.AddAdapter(newFake("OTHER", 0)))
		assert.Len(t, s.Adapters(), 2)
	})
}

// ============================================================================
// Serve
// ============================================================================

func TestServer_Serve(t *testing.T) {
	t.Run("NoAdapters", func(t *testing.T) {
		assert.Error(t, New(0).Serve(context.Background()))
	})

	t.Run("CancelStopsAll", func(t *testing.T) {
		s := New(time.Second)
		a, b := newFake("A", 1), newFake("B", 2)
		require.NoError(t, s.AddAdapter(a))
		require.NoError(t, s.AddAdapter(b))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Serve(ctx) }()

		cancel()
		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Fatal("Serve did not return after cancel")
		}
		assert.Equal(t, int32(1), a.stopped.Load())
		assert.Equal(t, int32(1), b.stopped.Load())
	})

	t.Run("AdapterFailureStopsOthers", func(t *testing.T) {
		s := New(time.Second)
		healthy := newFake("A", 1)
		broken := newFake("B", 2)
		broken.failWith = errors.New("bind: address in use")
		require.NoError(t, s.AddAdapter(healthy))
		require.NoError(t, s.AddAdapter(broken))

		err := s.Serve(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "B adapter error")
		assert.Equal(t, int32(1), healthy.stopped.Load())
	})

	t.Run("OnlyOnce", func(t *testing.T) {
		s := New(time.Second)
		require.NoError(t, s.AddAdapter(newFake("A", 1)))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_ = s.Serve(ctx)

		assert.Error(t, s.Serve(context.Background()))
		assert.Error(t, s.AddAdapter(newFake("B", 2)))
	})
}
