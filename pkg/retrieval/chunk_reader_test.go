package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transient() error {
	return NewError(KindTransient, "read", errors.New("connection reset"))
}

func TestChunkReader(t *testing.T) {
	policy := ChunkPolicy{
		MaxChunkBytes:  1024,
		MaxAttempts:    3,
		BackoffInitial: 100 * time.Millisecond,
		BackoffMax:     time.Second,
	}

	t.Run("RetriesTransientThenSucceeds", func(t *testing.T) {
		s := newFakeSession(50000)
		s.failures = []error{transient(), transient()}
		sl := &recordingSleep{}
		r := NewChunkReader(s, policy, WithSleep(sl.sleep))

		chunk, err := r.Fetch(context.Background(), s.handle, ByteWindow{Offset: 0, Length: 1024})
		require.NoError(t, err)
		assert.Len(t, chunk.Data, 1024)
		assert.Equal(t, 3, chunk.Attempts)
		assert.Equal(t, 3, s.readCount())
		assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, sl.waits)
	})

	t.Run("GivesUpAfterMaxAttempts", func(t *testing.T) {
		s := newFakeSession(50000)
		s.failures = []error{transient(), transient(), transient(), transient()}
		r := NewChunkReader(s, policy, WithSleep((&recordingSleep{}).sleep))

		_, err := r.Fetch(context.Background(), s.handle, ByteWindow{Offset: 0, Length: 512})
		require.Error(t, err)
		assert.Equal(t, KindTransient, KindOf(err))
		assert.Equal(t, 3, s.readCount())
	})

	t.Run("ProtocolErrorIsNotRetried", func(t *testing.T) {
		s := newFakeSession(50000)
		s.failures = []error{NewError(KindProtocol, "read", errors.New("bad offset"))}
		r := NewChunkReader(s, policy)

		_, err := r.Fetch(context.Background(), s.handle, ByteWindow{Offset: 0, Length: 512})
		assert.Equal(t, KindProtocol, KindOf(err))
		assert.Equal(t, 1, s.readCount())
	})

	t.Run("SessionExpiredIsNotRetried", func(t *testing.T) {
		s := newFakeSession(50000)
		s.failures = []error{NewError(KindSessionExpired, "read", nil)}
		r := NewChunkReader(s, policy)

		_, err := r.Fetch(context.Background(), s.handle, ByteWindow{Offset: 0, Length: 512})
		assert.Equal(t, KindSessionExpired, KindOf(err))
		assert.Equal(t, 1, s.readCount())
	})

	t.Run("UnclassifiedErrorBecomesProtocol", func(t *testing.T) {
		s := newFakeSession(50000)
		s.failures = []error{errors.New("boom")}
		r := NewChunkReader(s, policy)

		_, err := r.Fetch(context.Background(), s.handle, ByteWindow{Offset: 0, Length: 512})
		assert.Equal(t, KindProtocol, KindOf(err))
	})

	t.Run("SplitsWindowIntoChunks", func(t *testing.T) {
		s := newFakeSession(50000)
		r := NewChunkReader(s, policy)

		chunk, err := r.Fetch(context.Background(), s.handle, ByteWindow{Offset: 100, Length: 2500})
		require.NoError(t, err)
		assert.Equal(t, []ByteWindow{
			{Offset: 100, Length: 1024},
			{Offset: 1124, Length: 1024},
			{Offset: 2148, Length: 452},
		}, s.reads)
		require.Len(t, chunk.Data, 2500)
		for i, b := range chunk.Data {
			require.Equal(t, byte((100+i)%251), b)
		}
	})

	t.Run("HonoursHandleChunkLimit", func(t *testing.T) {
		s := newFakeSession(50000)
		h := *s.handle
		h.ChunkLimit = 256
		r := NewChunkReader(s, policy)

		_, err := r.Fetch(context.Background(), &h, ByteWindow{Offset: 0, Length: 1024})
		require.NoError(t, err)
		assert.Len(t, s.reads, 4)
	})

	t.Run("ShortReadMarksEOF", func(t *testing.T) {
		s := newFakeSession(1500)
		r := NewChunkReader(s, policy)

		chunk, err := r.Fetch(context.Background(), s.handle, ByteWindow{Offset: 0, Length: 4096})
		require.NoError(t, err)
		assert.True(t, chunk.EOF)
		assert.Len(t, chunk.Data, 1500)
		assert.Len(t, s.reads, 2)
	})

	t.Run("RetryAfterHintExtendsBackoff", func(t *testing.T) {
		s := newFakeSession(50000)
		flood := NewError(KindTransient, "read", errors.New("flood wait"))
		flood.RetryAfter = 3 * time.Second
		s.failures = []error{flood}
		sl := &recordingSleep{}
		r := NewChunkReader(s, policy, WithSleep(sl.sleep))

		_, err := r.Fetch(context.Background(), s.handle, ByteWindow{Offset: 0, Length: 10})
		require.NoError(t, err)
		assert.Equal(t, []time.Duration{3 * time.Second}, sl.waits)
	})

	t.Run("BackoffPastDeadlineIsNotStarted", func(t *testing.T) {
		s := newFakeSession(50000)
		flood := NewError(KindTransient, "read", errors.New("flood wait"))
		flood.RetryAfter = 3 * time.Second
		s.failures = []error{flood}
		sl := &recordingSleep{}
		r := NewChunkReader(s, policy, WithSleep(sl.sleep))

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := r.Fetch(ctx, s.handle, ByteWindow{Offset: 0, Length: 10})
		assert.Equal(t, KindIncomplete, KindOf(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Empty(t, sl.waits)
		assert.Equal(t, 1, s.readCount())
	})

	t.Run("CancellationStopsBetweenChunks", func(t *testing.T) {
		s := newFakeSession(50000)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := NewChunkReader(s, policy)

		_, err := r.Fetch(ctx, s.handle, ByteWindow{Offset: 0, Length: 4096})
		assert.Equal(t, KindCanceled, KindOf(err))
		assert.Zero(t, s.readCount())
	})

	t.Run("CancellationDuringBackoff", func(t *testing.T) {
		s := newFakeSession(50000)
		s.failures = []error{transient()}
		ctx, cancel := context.WithCancel(context.Background())
		r := NewChunkReader(s, policy, WithSleep(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}))

		_, err := r.Fetch(ctx, s.handle, ByteWindow{Offset: 0, Length: 10})
		assert.Equal(t, KindCanceled, KindOf(err))
		assert.Equal(t, 1, s.readCount())
	})
}

func TestBackoff(t *testing.T) {
	r := NewChunkReader(nil, ChunkPolicy{BackoffInitial: 100 * time.Millisecond, BackoffMax: 500 * time.Millisecond})

	assert.Equal(t, 100*time.Millisecond, r.backoff(1))
	assert.Equal(t, 200*time.Millisecond, r.backoff(2))
	assert.Equal(t, 400*time.Millisecond, r.backoff(3))
	assert.Equal(t, 500*time.Millisecond, r.backoff(4))
	assert.Equal(t, 500*time.Millisecond, r.backoff(40))
}
