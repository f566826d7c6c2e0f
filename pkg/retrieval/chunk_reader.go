package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/fotoprobe/internal/logger"
)

// ChunkPolicy bounds individual range reads.
type ChunkPolicy struct {
	// MaxChunkBytes is the largest single ReadRange request.
	MaxChunkBytes uint64
	// MaxAttempts is the total number of tries per chunk, including the first.
	MaxAttempts int
	// BackoffInitial is the wait after the first transient failure; each
	// further failure doubles it up to BackoffMax.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Chunk is the result of a window fetch.
type Chunk struct {
	Data []byte
	// EOF is set when the session returned fewer bytes than requested.
	EOF bool
	// Attempts counts ReadRange calls made, retries included.
	Attempts int
}

// ChunkReader covers a window with bounded ReadRange calls and retries
// transient failures with exponential backoff.
type ChunkReader struct {
	session Session
	policy  ChunkPolicy
	sleep   func(ctx context.Context, d time.Duration) error
	onRetry func(attempt int, err error)
}

// ChunkReaderOption customizes a ChunkReader.
type ChunkReaderOption func(*ChunkReader)

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ChunkReaderOption {
	return func(r *ChunkReader) { r.sleep = sleep }
}

// WithRetryHook is called before each backoff wait.
func WithRetryHook(hook func(attempt int, err error)) ChunkReaderOption {
	return func(r *ChunkReader) { r.onRetry = hook }
}

func NewChunkReader(session Session, policy ChunkPolicy, opts ...ChunkReaderOption) *ChunkReader {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	r := &ChunkReader{
		session: session,
		policy:  policy,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch reads window from h. Cancellation of ctx is observed between
// chunks and during backoff; a read already sent runs to completion on a
// context detached from ctx's cancellation. A backoff wait that would end
// after ctx's deadline is not started and fails with KindIncomplete.
func (r *ChunkReader) Fetch(ctx context.Context, h *FileHandle, window ByteWindow) (Chunk, error) {
	chunkSize := r.chunkSize(h)
	out := Chunk{Data: make([]byte, 0, window.Length)}

	for offset := window.Offset; offset < window.End(); {
		if err := ctx.Err(); err != nil {
			return out, NewError(KindOf(err), "chunk.fetch", err)
		}

		piece := ByteWindow{Offset: offset, Length: min(chunkSize, window.End()-offset)}
		data, attempts, err := r.readChunk(ctx, h, piece)
		out.Attempts += attempts
		if err != nil {
			return out, err
		}
		if uint64(len(data)) > piece.Length {
			return out, Errorf(KindProtocol, "chunk.fetch", "read %s returned %d bytes", piece, len(data))
		}

		out.Data = append(out.Data, data...)
		offset += uint64(len(data))
		if uint64(len(data)) < piece.Length {
			out.EOF = true
			break
		}
	}
	return out, nil
}

func (r *ChunkReader) chunkSize(h *FileHandle) uint64 {
	size := r.policy.MaxChunkBytes
	if h.ChunkLimit > 0 && (size == 0 || uint64(h.ChunkLimit) < size) {
		size = uint64(h.ChunkLimit)
	}
	if size == 0 {
		size = 512 * 1024
	}
	return size
}

// readChunk performs up to MaxAttempts reads of one piece.
func (r *ChunkReader) readChunk(ctx context.Context, h *FileHandle, piece ByteWindow) ([]byte, int, error) {
	inflight := context.WithoutCancel(ctx)

	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		data, err := r.session.ReadRange(inflight, h, piece)
		if err == nil {
			return data, attempt, nil
		}
		lastErr = err

		kind := KindOf(err)
		if !kind.Retryable() {
			if kind == KindUnknown {
				return nil, attempt, NewError(KindProtocol, "chunk.read", err)
			}
			return nil, attempt, err
		}
		if attempt == r.policy.MaxAttempts {
			return nil, attempt, err
		}

		wait := r.backoff(attempt)
		if hint := RetryAfter(err); hint > wait {
			wait = hint
		}
		logger.Debug("Transient failure reading %s (attempt %d/%d), retrying in %v: %v",
			piece, attempt, r.policy.MaxAttempts, wait, err)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return nil, attempt, NewError(KindIncomplete, "chunk.backoff",
				fmt.Errorf("retry in %v would pass the deadline: %w", wait, context.DeadlineExceeded))
		}
		if r.onRetry != nil {
			r.onRetry(attempt, err)
		}
		if err := r.sleep(ctx, wait); err != nil {
			return nil, attempt, NewError(KindOf(err), "chunk.backoff", err)
		}
	}
	return nil, r.policy.MaxAttempts, lastErr
}

// backoff returns the wait after the given failed attempt.
func (r *ChunkReader) backoff(attempt int) time.Duration {
	d := r.policy.BackoffInitial
	for i := 1; i < attempt; i++ {
		d *= 2
		if r.policy.BackoffMax > 0 && d >= r.policy.BackoffMax {
			return r.policy.BackoffMax
		}
	}
	if r.policy.BackoffMax > 0 && d > r.policy.BackoffMax {
		return r.policy.BackoffMax
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
