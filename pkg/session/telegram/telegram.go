// Package telegram implements retrieval.Session on top of an authorized
// MTProto client.
//
// OpenHandle resolves a message to its photo or document and packs the
// file location into the handle. ReadRange issues upload.getFile calls
// whose offsets are 4 KiB aligned and whose limits are powers of two that
// never cross a 1 MiB boundary, trimming the answers back to the window.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gotd/td/tg"

	"github.com/marmos91/fotoprobe/internal/logger"
	"github.com/marmos91/fotoprobe/internal/ratelimiter"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

const (
	// blockSize is the offset alignment upload.getFile requires.
	blockSize = 4 << 10

	// MaxPartSize is the largest limit upload.getFile accepts.
	MaxPartSize = 1 << 20

	// DefaultCallTimeout bounds one API call when no timeout is configured.
	DefaultCallTimeout = 30 * time.Second
)

// API is the subset of *tg.Client used by a Session.
type API interface {
	MessagesGetMessages(ctx context.Context, id []tg.InputMessageClass) (tg.MessagesMessagesClass, error)
	ChannelsGetMessages(ctx context.Context, request *tg.ChannelsGetMessagesRequest) (tg.MessagesMessagesClass, error)
	UploadGetFile(ctx context.Context, request *tg.UploadGetFileRequest) (tg.UploadFileClass, error)
}

var _ API = (*tg.Client)(nil)

// Option customises a Session.
type Option func(*Session)

// WithRateLimiter paces every API call through l.
func WithRateLimiter(l *ratelimiter.RateLimiter) Option {
	return func(s *Session) {
		s.limiter = l
	}
}

// WithCallTimeout bounds every API call. Expiry is reported as transient.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// Session reads media through api. It does not own the MTProto connection;
// Close only stops further calls.
type Session struct {
	api         API
	limiter     *ratelimiter.RateLimiter
	callTimeout time.Duration
	closed      chan struct{}
}

var _ retrieval.Session = (*Session)(nil)

// New wraps an authorized client.
func New(api API, opts ...Option) *Session {
	s := &Session{api: api, callTimeout: DefaultCallTimeout, closed: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenHandle fetches the message and describes its media.
func (s *Session) OpenHandle(ctx context.Context, ref retrieval.MessageRef) (*retrieval.FileHandle, error) {
	const op = "telegram.open"

	if err := s.begin(ctx, op); err != nil {
		return nil, err
	}

	ids := []tg.InputMessageClass{&tg.InputMessageID{ID: int(ref.MessageID)}}

	var res tg.MessagesMessagesClass
	err := s.call(ctx, op, func(ctx context.Context) (err error) {
		if ref.Peer == retrieval.PeerChannel {
			res, err = s.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
				Channel: &tg.InputChannel{ChannelID: ref.PeerID, AccessHash: ref.AccessHash},
				ID:      ids,
			})
		} else {
			res, err = s.api.MessagesGetMessages(ctx, ids)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	msg, err := findMessage(res, ref.MessageID)
	if err != nil {
		return nil, retrieval.NewError(retrieval.KindNotFound, op, fmt.Errorf("%s: %w", ref, err))
	}

	h, err := handleFor(msg)
	if err != nil {
		return nil, retrieval.NewError(retrieval.KindNotFound, op, fmt.Errorf("%s: %w", ref, err))
	}
	logger.Debug("Telegram message %s resolved: size=%d kind=%s mime=%s", ref, h.DeclaredSize, h.Kind, h.MimeType)
	return h, nil
}

// ReadRange downloads w. Bytes past the declared size are never requested.
func (s *Session) ReadRange(ctx context.Context, h *retrieval.FileHandle, w retrieval.ByteWindow) ([]byte, error) {
	const op = "telegram.read"

	loc, err := decodeLocation(h.ID)
	if err != nil {
		return nil, retrieval.NewError(retrieval.KindProtocol, op, err)
	}

	end := w.End()
	if h.SizeKnown() && end > h.DeclaredSize {
		end = h.DeclaredSize
	}

	out := make([]byte, 0, end-min(w.Offset, end))
	pos := w.Offset
	for pos < end {
		if err := s.begin(ctx, op); err != nil {
			return nil, err
		}

		offset, limit := alignedPart(pos, end)
		var res tg.UploadFileClass
		err := s.call(ctx, op, func(ctx context.Context) (err error) {
			res, err = s.api.UploadGetFile(ctx, &tg.UploadGetFileRequest{
				Location: loc.input(),
				Offset:   int64(offset),
				Limit:    int(limit),
			})
			return err
		})
		if err != nil {
			return nil, err
		}

		file, ok := res.(*tg.UploadFile)
		if !ok {
			return nil, retrieval.Errorf(retrieval.KindProtocol, op, "unexpected %T (CDN redirects are not supported)", res)
		}
		data := file.Bytes
		if uint64(len(data)) > limit {
			return nil, retrieval.Errorf(retrieval.KindProtocol, op, "got %d bytes for a %d byte part", len(data), limit)
		}

		skip := pos - offset
		if uint64(len(data)) <= skip {
			break
		}
		take := min(uint64(len(data)), end-offset)
		out = append(out, data[skip:take]...)
		pos = offset + take

		if uint64(len(data)) < limit {
			break
		}
	}
	return out, nil
}

// Close makes later calls fail with KindSessionExpired.
func (s *Session) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

func (s *Session) begin(ctx context.Context, op string) error {
	select {
	case <-s.closed:
		return retrieval.Errorf(retrieval.KindSessionExpired, op, "session closed")
	default:
	}
	if d := s.limiter.Delay(); d > time.Second {
		logger.Debug("Telegram %s waiting %v for the API rate limit", op, d)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return classify(op, err)
	}
	return nil
}

// call runs one API request under the per-call timeout. A request that
// outlives it is transient; the caller's own cancellation or deadline keeps
// its usual kind.
func (s *Session) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && callCtx.Err() != nil {
		return retrieval.NewError(retrieval.KindTransient, op,
			fmt.Errorf("no answer within %v: %w", s.callTimeout, err))
	}
	return classify(op, err)
}

// alignedPart returns the upload.getFile part covering pos: the offset is
// pos rounded down to a block, and the limit is the smallest power of two
// reaching end, shrunk until the offset is a multiple of it.
func alignedPart(pos, end uint64) (offset, limit uint64) {
	offset = pos &^ (blockSize - 1)

	limit = blockSize
	for limit < end-offset && limit < MaxPartSize {
		limit <<= 1
	}
	for offset%limit != 0 {
		limit >>= 1
	}
	return offset, limit
}

var errNoMedia = errors.New("message has no downloadable media")

func findMessage(res tg.MessagesMessagesClass, id int64) (*tg.Message, error) {
	var msgs []tg.MessageClass
	switch v := res.(type) {
	case *tg.MessagesMessages:
		msgs = v.Messages
	case *tg.MessagesMessagesSlice:
		msgs = v.Messages
	case *tg.MessagesChannelMessages:
		msgs = v.Messages
	default:
		return nil, fmt.Errorf("unexpected %T", res)
	}

	for _, m := range msgs {
		if msg, ok := m.(*tg.Message); ok && int64(msg.ID) == id {
			return msg, nil
		}
	}
	return nil, errors.New("message not found")
}

func handleFor(msg *tg.Message) (*retrieval.FileHandle, error) {
	media, ok := msg.GetMedia()
	if !ok {
		return nil, errNoMedia
	}

	var (
		loc location
		h   = &retrieval.FileHandle{ChunkLimit: MaxPartSize}
	)
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		pc, ok := m.GetPhoto()
		if !ok {
			return nil, errNoMedia
		}
		photo, ok := pc.(*tg.Photo)
		if !ok {
			return nil, errNoMedia
		}
		thumb, size, ok := largestSize(photo.Sizes)
		if !ok {
			return nil, errNoMedia
		}
		loc = location{
			Kind:          locationPhoto,
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     thumb,
			DCID:          int32(photo.DCID),
		}
		h.Kind = retrieval.ContentPhoto
		h.MimeType = "image/jpeg"
		h.DeclaredSize = size

	case *tg.MessageMediaDocument:
		dc, ok := m.GetDocument()
		if !ok {
			return nil, errNoMedia
		}
		doc, ok := dc.(*tg.Document)
		if !ok {
			return nil, errNoMedia
		}
		loc = location{
			Kind:          locationDocument,
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
			DCID:          int32(doc.DCID),
		}
		h.Kind = retrieval.ContentOther
		h.MimeType = doc.MimeType
		if doc.Size > 0 {
			h.DeclaredSize = uint64(doc.Size)
		}

	default:
		return nil, errNoMedia
	}

	id, err := loc.encode()
	if err != nil {
		return nil, err
	}
	h.ID = id
	return h, nil
}
