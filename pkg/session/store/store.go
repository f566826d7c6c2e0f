// Package store implements retrieval.Session over a local media library: a
// catalog mapping messages to content IDs plus a content store holding the
// bytes. It backs `fotoprobe serve` and offline probing of ingested files.
package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/marmos91/fotoprobe/internal/logger"
	"github.com/marmos91/fotoprobe/pkg/catalog"
	"github.com/marmos91/fotoprobe/pkg/content"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

// Option customises a Session.
type Option func(*Session)

// WithChunkLimit advertises a maximum read size on every handle, to mimic
// a backend that caps single reads.
func WithChunkLimit(n uint32) Option {
	return func(s *Session) {
		s.chunkLimit = n
	}
}

// Session serves one library. It is safe for concurrent use and owns the
// catalog and store: Close closes both.
type Session struct {
	catalog    catalog.Catalog
	store      content.Store
	chunkLimit uint32
}

var _ retrieval.Session = (*Session)(nil)

// New returns a Session over cat and store.
func New(cat catalog.Catalog, store content.Store, opts ...Option) *Session {
	s := &Session{catalog: cat, store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenHandle looks ref up in the catalog and sizes the object.
func (s *Session) OpenHandle(ctx context.Context, ref retrieval.MessageRef) (*retrieval.FileHandle, error) {
	const op = "store.open"

	entry, err := s.catalog.Get(ctx, ref)
	if err != nil {
		return nil, mapError(op, err)
	}

	size, err := s.store.GetContentSize(ctx, entry.ContentID)
	if err != nil {
		return nil, mapError(op, err)
	}

	return &retrieval.FileHandle{
		ID:           []byte(entry.ContentID),
		DeclaredSize: size,
		Kind:         entry.Kind,
		MimeType:     entry.MimeType,
		ChunkLimit:   s.chunkLimit,
	}, nil
}

// ReadRange reads w from the object behind h. A window running past the
// end returns the available bytes.
func (s *Session) ReadRange(ctx context.Context, h *retrieval.FileHandle, w retrieval.ByteWindow) ([]byte, error) {
	const op = "store.read"

	if s.chunkLimit > 0 && w.Length > uint64(s.chunkLimit) {
		return nil, retrieval.Errorf(retrieval.KindProtocol, op, "read of %d bytes exceeds limit %d", w.Length, s.chunkLimit)
	}

	data, err := content.ReadRange(ctx, s.store, content.ContentID(h.ID), w.Offset, w.Length)
	if err != nil {
		return nil, mapError(op, err)
	}
	return data, nil
}

// Close closes the catalog and the content store.
func (s *Session) Close() error {
	return errors.Join(s.catalog.Close(), s.store.Close())
}

func mapError(op string, err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, content.ErrContentNotFound):
		return retrieval.NewError(retrieval.KindNotFound, op, err)
	case errors.Is(err, catalog.ErrAccessHashMismatch), errors.Is(err, content.ErrAccessDenied):
		return retrieval.NewError(retrieval.KindUnauthorized, op, err)
	case errors.Is(err, content.ErrInvalidSize), errors.Is(err, content.ErrInvalidContentID):
		return retrieval.NewError(retrieval.KindProtocol, op, err)
	case errors.Is(err, context.Canceled):
		return retrieval.NewError(retrieval.KindCanceled, op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return retrieval.NewError(retrieval.KindIncomplete, op, err)
	default:
		// ErrUnavailable and plain I/O failures.
		return retrieval.NewError(retrieval.KindTransient, op, err)
	}
}

// ============================================================================
// Ingest
// ============================================================================

// ErrAlreadyIngested means the message or the content ID is already in the
// library and IngestOptions.Replace was not set.
var ErrAlreadyIngested = errors.New("already in library")

// IngestOptions control how a file enters the library.
type IngestOptions struct {
	// ContentID defaults to "<peer>/<peer id>/<message id>".
	ContentID content.ContentID

	// MimeType is sniffed from the data when empty.
	MimeType string

	// Document forces ContentOther even for image MIME types, the way a
	// photo sent as a file is not a photo message.
	Document bool

	// Replace overwrites an existing entry for the message and existing
	// content under the same ID.
	Replace bool
}

// Ingest writes data to store and registers it in cat under ref. Content
// written for a new ID is removed again when the catalog update fails.
func Ingest(ctx context.Context, cat catalog.Catalog, store content.WritableStore, ref retrieval.MessageRef, data []byte, opts IngestOptions) (*catalog.Entry, error) {
	id := opts.ContentID
	if id == "" {
		id = content.ContentID(fmt.Sprintf("%s/%d/%d", ref.Peer, ref.PeerID, ref.MessageID))
	}

	mime := opts.MimeType
	if mime == "" {
		mime = http.DetectContentType(data)
		if i := strings.IndexByte(mime, ';'); i >= 0 {
			mime = mime[:i]
		}
	}

	kind := retrieval.ContentOther
	if strings.HasPrefix(mime, "image/") && !opts.Document {
		kind = retrieval.ContentPhoto
	}

	previous, err := lookup(ctx, cat, ref)
	if err != nil {
		return nil, err
	}
	if previous != nil && !opts.Replace {
		return nil, fmt.Errorf("%s: %w", ref, ErrAlreadyIngested)
	}

	existed, err := store.ContentExists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", id, err)
	}
	if existed && !opts.Replace {
		return nil, fmt.Errorf("content %s: %w", id, ErrAlreadyIngested)
	}

	if err := store.WriteContent(ctx, id, data); err != nil {
		return nil, fmt.Errorf("write %s: %w", id, err)
	}

	entry := &catalog.Entry{
		Ref:       ref,
		ContentID: id,
		Kind:      kind,
		MimeType:  mime,
		Size:      uint64(len(data)),
		AddedAt:   time.Now().UTC(),
	}
	if err := cat.Put(ctx, entry); err != nil {
		if !existed {
			if delErr := store.Delete(context.WithoutCancel(ctx), id); delErr != nil {
				logger.Error("Ingest of %s: leaving orphaned content %s: %v", ref, id, delErr)
			}
		}
		return nil, fmt.Errorf("catalog %s: %w", ref, err)
	}

	if previous != nil && previous.ContentID != id {
		if err := releaseContent(ctx, cat, store, previous.ContentID); err != nil {
			logger.Warn("Ingest of %s: previous content %s not removed: %v", ref, previous.ContentID, err)
		}
	}

	logger.Debug("Ingested %s as %s (%d bytes, %s, %s)", ref, id, len(data), mime, kind)
	return entry, nil
}

// Remove deletes the entry for ref and its content, unless another entry
// still refers to the same content ID.
func Remove(ctx context.Context, cat catalog.Catalog, store content.WritableStore, ref retrieval.MessageRef) (*catalog.Entry, error) {
	entry, err := lookup(ctx, cat, ref)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%s: %w", ref, catalog.ErrNotFound)
	}

	if err := cat.Delete(ctx, entry.Ref); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", ref, err)
	}
	if err := releaseContent(ctx, cat, store, entry.ContentID); err != nil {
		return entry, fmt.Errorf("delete %s: %w", entry.ContentID, err)
	}

	logger.Debug("Removed %s (%s)", ref, entry.ContentID)
	return entry, nil
}

// lookup returns the entry for ref regardless of access hash, or nil.
func lookup(ctx context.Context, cat catalog.Catalog, ref retrieval.MessageRef) (*catalog.Entry, error) {
	ref.AccessHash = 0
	e, err := cat.Get(ctx, ref)
	switch {
	case err == nil:
		return e, nil
	case errors.Is(err, catalog.ErrNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("catalog %s: %w", ref, err)
	}
}

var errReferenced = errors.New("content referenced")

// releaseContent deletes id from store once no catalog entry refers to it.
func releaseContent(ctx context.Context, cat catalog.Catalog, store content.WritableStore, id content.ContentID) error {
	err := cat.List(ctx, func(e *catalog.Entry) error {
		if e.ContentID == id {
			return errReferenced
		}
		return nil
	})
	if errors.Is(err, errReferenced) {
		return nil
	}
	if err != nil {
		return err
	}
	return store.Delete(ctx, id)
}
