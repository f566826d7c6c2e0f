package retrieval

import (
	"context"
	"sync"
	"time"
)

// fakeSession serves a synthetic object of size bytes where byte i is
// byte(i % 251). failures are returned by successive ReadRange calls
// before reads start succeeding; a nil entry means success.
type fakeSession struct {
	mu       sync.Mutex
	size     uint64
	handle   *FileHandle
	openErr  error
	onOpen   func()
	failures []error

	opens int
	reads []ByteWindow
}

func newFakeSession(size uint64) *fakeSession {
	return &fakeSession{
		size:   size,
		handle: &FileHandle{ID: []byte("fake"), DeclaredSize: size, Kind: ContentPhoto},
	}
}

func (s *fakeSession) OpenHandle(ctx context.Context, ref MessageRef) (*FileHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if s.onOpen != nil {
		s.onOpen()
	}
	if s.openErr != nil {
		return nil, s.openErr
	}
	return s.handle, nil
}

func (s *fakeSession) ReadRange(ctx context.Context, h *FileHandle, w ByteWindow) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, w)

	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		if err != nil {
			return nil, err
		}
	}

	if w.Offset >= s.size {
		return []byte{}, nil
	}
	end := min(w.End(), s.size)
	out := make([]byte, 0, end-w.Offset)
	for i := w.Offset; i < end; i++ {
		out = append(out, byte(i%251))
	}
	return out, nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reads)
}

// scriptDecoder returns statuses in order, repeating the last one, and
// records the prefix length of every call.
type scriptDecoder struct {
	statuses    []DecodeStatus
	hint        uint64
	incremental bool
	calls       []int
	onDecode    func(call int)
}

func (d *scriptDecoder) Decode(prefix []byte, state ParserState) Decoded {
	d.calls = append(d.calls, len(prefix))
	i := len(d.calls) - 1
	if d.onDecode != nil {
		d.onDecode(i)
	}
	status := d.statuses[min(i, len(d.statuses)-1)]

	res := Decoded{Status: status, State: len(prefix)}
	switch status {
	case DecodeComplete:
		res.Record = NewRecord(map[string]Value{
			"Make": {ID: 0x010f, IFD: "IFD0", Type: TypeString, Str: "Fake"},
		})
	case DecodeNeedMore:
		res.Hint = d.hint
	case DecodeMalformed:
		res.Detail = "truncated IFD"
	}
	return res
}

func (d *scriptDecoder) Incremental() bool { return d.incremental }

func testConfig() Config {
	return Config{
		InitialWindowBytes:  4096,
		MaxTotalBytes:       65536,
		MaxChunkBytes:       65536,
		MaxAttemptsPerChunk: 3,
		RetrievalTimeout:    time.Minute,
		GrowthFactor:        2,
		MaxCycles:           32,
		BackoffInitial:      10 * time.Millisecond,
		BackoffMax:          time.Second,
	}
}

// recordingSleep never blocks and remembers requested waits.
type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waits = append(r.waits, d)
	return ctx.Err()
}
