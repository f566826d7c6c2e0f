// Package catalog records which stored object holds the media of a message.
//
// A message library is two stores: the content store keeps bytes and the
// catalog maps message references to content IDs, MIME types and kinds.
// The store-backed session reads the catalog on OpenHandle and the content
// store on ReadRange.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/fotoprobe/pkg/content"
	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

var (
	// ErrNotFound means no entry exists for the reference.
	ErrNotFound = errors.New("catalog entry not found")

	// ErrAccessHashMismatch means the entry exists but the caller presented
	// a different access hash than the one it was registered with.
	ErrAccessHashMismatch = errors.New("access hash mismatch")
)

// Entry describes one media message.
type Entry struct {
	Ref       retrieval.MessageRef  `json:"ref"`
	ContentID content.ContentID     `json:"content_id"`
	Kind      retrieval.ContentKind `json:"kind"`
	MimeType  string                `json:"mime_type,omitempty"`
	// Size is informational; the content store is authoritative.
	Size    uint64    `json:"size,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// Catalog stores entries keyed by (peer kind, peer ID, message ID).
// Implementations must be safe for concurrent use.
type Catalog interface {
	// Get returns the entry for ref. A zero ref.AccessHash skips the
	// access hash check.
	Get(ctx context.Context, ref retrieval.MessageRef) (*Entry, error)

	// Put inserts or replaces an entry.
	Put(ctx context.Context, e *Entry) error

	// Delete removes the entry. Missing entries are ignored.
	Delete(ctx context.Context, ref retrieval.MessageRef) error

	// List calls fn for every entry in key order until fn returns an error.
	List(ctx context.Context, fn func(*Entry) error) error

	Close() error
}

// Key returns the storage key of ref. The access hash is not part of it.
func Key(ref retrieval.MessageRef) string {
	return fmt.Sprintf("msg:%d:%d:%020d", uint32(ref.Peer), ref.PeerID, ref.MessageID)
}

// checkAccess enforces the access hash rule shared by implementations.
func checkAccess(e *Entry, ref retrieval.MessageRef) error {
	if ref.AccessHash != 0 && e.Ref.AccessHash != 0 && ref.AccessHash != e.Ref.AccessHash {
		return fmt.Errorf("%s: %w", ref, ErrAccessHashMismatch)
	}
	return nil
}

func validate(e *Entry) error {
	if e == nil {
		return errors.New("nil catalog entry")
	}
	if e.ContentID == "" {
		return fmt.Errorf("%s: %w", e.Ref, content.ErrInvalidContentID)
	}
	return nil
}
