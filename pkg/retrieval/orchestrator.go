package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/fotoprobe/internal/logger"
	"github.com/marmos91/fotoprobe/pkg/metrics"
)

// Config holds the limits of one retrieval.
type Config struct {
	InitialWindowBytes  uint64
	MaxTotalBytes       uint64
	MaxChunkBytes       uint64
	MaxAttemptsPerChunk int
	RetrievalTimeout    time.Duration

	GrowthFactor   uint64
	MaxCycles      int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		InitialWindowBytes:  64 * 1024,
		MaxTotalBytes:       4 * 1024 * 1024,
		MaxChunkBytes:       512 * 1024,
		MaxAttemptsPerChunk: 4,
		RetrievalTimeout:    30 * time.Second,
		GrowthFactor:        2,
		MaxCycles:           16,
		BackoffInitial:      200 * time.Millisecond,
		BackoffMax:          5 * time.Second,
	}
}

func (c Config) validate() error {
	if c.MaxTotalBytes == 0 {
		return fmt.Errorf("max total bytes must be positive")
	}
	if c.InitialWindowBytes == 0 || c.InitialWindowBytes > c.MaxTotalBytes {
		return fmt.Errorf("initial window %d must be in (0, %d]", c.InitialWindowBytes, c.MaxTotalBytes)
	}
	if c.MaxChunkBytes == 0 {
		return fmt.Errorf("max chunk bytes must be positive")
	}
	if c.MaxAttemptsPerChunk < 1 {
		return fmt.Errorf("max attempts per chunk must be at least 1")
	}
	if c.GrowthFactor < 2 {
		return fmt.Errorf("growth factor must be at least 2")
	}
	if c.MaxCycles < 1 {
		return fmt.Errorf("max cycles must be at least 1")
	}
	return nil
}

// Orchestrator drives probe sizing, chunked reads and decoding of one
// object at a time. It holds no per-retrieval state and may be used by
// several goroutines provided its Session tolerates it (see Serialize).
type Orchestrator struct {
	session Session
	decoder Decoder
	config  Config
	metrics metrics.RetrievalMetrics
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records outcomes and chunk attempts.
func WithMetrics(m metrics.RetrievalMetrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock replaces time.Now when measuring the timeout budget.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithBackoffSleep replaces the wait between chunk retries.
func WithBackoffSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// New returns an Orchestrator or an error when cfg is inconsistent.
func New(session Session, decoder Decoder, cfg Config, opts ...Option) (*Orchestrator, error) {
	if session == nil || decoder == nil {
		return nil, errors.New("session and decoder are required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid retrieval config: %w", err)
	}
	o := &Orchestrator{
		session: session,
		decoder: decoder,
		config:  cfg,
		metrics: metrics.NewNoopRetrievalMetrics(),
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// RetrieveMessage resolves ref to a handle and retrieves its metadata. No
// read is issued when the handle cannot be opened. The open call counts
// against the retrieval timeout.
func (o *Orchestrator) RetrieveMessage(ctx context.Context, ref MessageRef) *Outcome {
	start := o.now()
	ctx, cancel, owned := o.withBudget(ctx)
	defer cancel()

	h, err := o.session.OpenHandle(ctx, ref)
	if err != nil {
		out := &Outcome{RetrievalID: uuid.NewString()}
		o.stop(out, owned, err)
		out.Elapsed = o.now().Sub(start)
		logger.Warn("Retrieval %s: open %s failed: %v", out.RetrievalID, ref, err)
		o.record(out)
		return out
	}
	logger.Debug("Opened %s as %s", ref, h)
	return o.retrieve(ctx, h, start, owned)
}

// withBudget bounds ctx by the retrieval timeout. owned reports whether the
// returned deadline is the retrieval's own rather than the caller's.
func (o *Orchestrator) withBudget(ctx context.Context) (context.Context, context.CancelFunc, bool) {
	if o.config.RetrievalTimeout <= 0 {
		return ctx, func() {}, false
	}
	deadline := time.Now().Add(o.config.RetrievalTimeout)
	if d, ok := ctx.Deadline(); ok && !d.After(deadline) {
		return ctx, func() {}, false
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	return ctx, cancel, true
}

// retrieval is the mutable state of one run through the state machine.
type retrieval struct {
	out      *Outcome
	handle   *FileHandle
	sizer    *ProbeSizer
	reader   *ChunkReader
	buf      *Buffer
	state    ParserState
	deadline time.Time
	// owned is set when ctx carries the retrieval's own deadline.
	owned bool
}

// Retrieve reads the leading bytes of h until the decoder reaches a verdict
// or a limit is hit.
func (o *Orchestrator) Retrieve(ctx context.Context, h *FileHandle) *Outcome {
	start := o.now()
	ctx, cancel, owned := o.withBudget(ctx)
	defer cancel()
	return o.retrieve(ctx, h, start, owned)
}

func (o *Orchestrator) retrieve(ctx context.Context, h *FileHandle, start time.Time, owned bool) *Outcome {
	r := &retrieval{
		out:    &Outcome{RetrievalID: uuid.NewString()},
		handle: h,
		sizer: NewProbeSizer(SizerPolicy{
			InitialWindow: o.config.InitialWindowBytes,
			MaxTotal:      o.config.MaxTotalBytes,
			GrowthFactor:  o.config.GrowthFactor,
		}, h.DeclaredSize, isIncremental(o.decoder)),
		buf:   NewBuffer(min(o.config.InitialWindowBytes, o.config.MaxTotalBytes)),
		owned: owned,
	}
	if o.config.RetrievalTimeout > 0 {
		r.deadline = start.Add(o.config.RetrievalTimeout)
	}
	r.reader = NewChunkReader(o.session, ChunkPolicy{
		MaxChunkBytes:  o.config.MaxChunkBytes,
		MaxAttempts:    o.config.MaxAttemptsPerChunk,
		BackoffInitial: o.config.BackoffInitial,
		BackoffMax:     o.config.BackoffMax,
	}, WithSleep(o.sleep), WithRetryHook(func(int, error) {
		o.metrics.RecordChunkAttempt("retry")
	}))

	o.run(ctx, r)

	r.out.BytesRead = r.buf.Len()
	r.out.Elapsed = o.now().Sub(start)
	o.log(r)
	o.record(r.out)
	return r.out
}

// run executes Init -> Probing -> Reading -> Decoding until a terminal state.
func (o *Orchestrator) run(ctx context.Context, r *retrieval) {
	window, ok := r.sizer.First()
	if !ok {
		o.incomplete(r.out, "object is empty")
		return
	}

	for {
		// Probing -> Reading
		if err := ctx.Err(); err != nil {
			o.stop(r.out, r.owned, err)
			return
		}
		if reason, over := o.overLimit(r); over {
			o.incomplete(r.out, reason)
			return
		}

		r.out.Cycles++
		r.out.Windows = append(r.out.Windows, window)
		o.metrics.RecordWindow(window.Length)

		chunk, err := r.reader.Fetch(ctx, r.handle, window)
		r.out.Attempts += chunk.Attempts
		if appendErr := r.buf.Append(window.Offset, chunk.Data); appendErr != nil {
			o.fail(r.out, KindProtocol, appendErr)
			return
		}
		if err != nil {
			o.metrics.RecordChunkAttempt("failed")
			o.stop(r.out, r.owned, err)
			return
		}
		o.metrics.RecordChunkAttempt("ok")

		// Reading -> Decoding
		if r.expired(o.now()) {
			o.incomplete(r.out, "retrieval timeout")
			return
		}
		res := o.decoder.Decode(r.buf.Bytes(), r.state)
		r.state = res.State

		switch res.Status {
		case DecodeComplete:
			r.out.Status = StatusSuccess
			r.out.Record = res.Record
			return
		case DecodeNotPresent:
			r.out.Status = StatusNotPresent
			return
		case DecodeMalformed:
			r.out.Status = StatusNotPresent
			r.out.Detail = res.Detail
			logger.Warn("Retrieval %s: malformed metadata in %s after %d bytes: %s",
				r.out.RetrievalID, r.handle, r.buf.Len(), res.Detail)
			return
		case DecodeNeedMore:
		default:
			o.fail(r.out, KindProtocol, fmt.Errorf("decoder returned status %d", res.Status))
			return
		}

		// Decoding -> Probing
		if chunk.EOF {
			o.incomplete(r.out, "end of object reached before metadata ended")
			return
		}
		next, ok := r.sizer.Next(r.buf.Len(), res.Hint)
		if !ok {
			o.incomplete(r.out, fmt.Sprintf("read limit of %d bytes reached", r.sizer.Limit()))
			return
		}
		window = next
	}
}

func (o *Orchestrator) overLimit(r *retrieval) (string, bool) {
	if r.out.Cycles >= o.config.MaxCycles {
		return fmt.Sprintf("attempt limit of %d cycles reached", o.config.MaxCycles), true
	}
	if r.buf.Len() >= o.config.MaxTotalBytes {
		return fmt.Sprintf("read limit of %d bytes reached", o.config.MaxTotalBytes), true
	}
	if r.expired(o.now()) {
		return "retrieval timeout", true
	}
	return "", false
}

func (r *retrieval) expired(now time.Time) bool {
	return !r.deadline.IsZero() && !now.Before(r.deadline)
}

// stop ends a retrieval on err. A deadline reached under the retrieval's
// own budget is reported as a timeout.
func (o *Orchestrator) stop(out *Outcome, owned bool, err error) {
	kind := KindOf(err)
	if kind == KindIncomplete && owned {
		o.incomplete(out, "retrieval timeout")
		out.Err = err
		return
	}
	o.fail(out, kind, err)
}

func (o *Orchestrator) fail(out *Outcome, kind ErrorKind, err error) {
	if kind == KindIncomplete {
		o.incomplete(out, err.Error())
		out.Err = err
		return
	}
	if kind == KindUnknown {
		kind = KindProtocol
	}
	out.Status = StatusFailed
	out.Kind = kind
	out.Err = err
}

func (o *Orchestrator) incomplete(out *Outcome, reason string) {
	out.Status = StatusIncomplete
	out.Kind = KindIncomplete
	out.Reason = reason
}

func (o *Orchestrator) log(r *retrieval) {
	out := r.out
	switch out.Status {
	case StatusSuccess:
		logger.Info("Retrieval %s: %d tags from %s in %d bytes, %d cycles, %v",
			out.RetrievalID, out.Record.Len(), r.handle, out.BytesRead, out.Cycles, out.Elapsed)
	case StatusNotPresent:
		logger.Info("Retrieval %s: no metadata in %s (%d bytes read)", out.RetrievalID, r.handle, out.BytesRead)
	case StatusIncomplete:
		logger.Warn("Retrieval %s: incomplete for %s after %d bytes: %s",
			out.RetrievalID, r.handle, out.BytesRead, out.Reason)
	default:
		logger.Error("Retrieval %s: failed for %s (%s): %v", out.RetrievalID, r.handle, out.Kind, out.Err)
	}
}

func (o *Orchestrator) record(out *Outcome) {
	kind := ""
	if out.Status == StatusFailed || out.Status == StatusIncomplete {
		kind = out.Kind.String()
	}
	o.metrics.ObserveRetrieval(out.Status.String(), kind, out.BytesRead, out.Cycles, out.Elapsed)
}
