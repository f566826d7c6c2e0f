package content

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ContentID identifies one stored media object. The format is chosen by
// whoever writes the object and is opaque to the store:
//   - Filesystem: hex-encoded into a file name under the base directory
//   - S3: used as the object key below the configured prefix
//   - Memory: used as a map key
type ContentID string

// ============================================================================
// Store Interface
// ============================================================================

// Store provides random-access reads of media objects.
//
// The store only holds bytes. Which message an object belongs to, its MIME
// type and whether it is a photo are recorded by the catalog; the session
// backed by a store joins the two.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// ReadAt reads len(p) bytes starting at offset.
	//
	// It follows io.ReaderAt: when fewer than len(p) bytes are available
	// it returns the bytes read and io.EOF. An offset at or past the end
	// returns 0, io.EOF.
	//
	// Returns ErrContentNotFound if the object does not exist,
	// ErrAccessDenied if the backend refuses access, and ErrUnavailable
	// (wrapped) for failures worth retrying.
	ReadAt(ctx context.Context, id ContentID, p []byte, offset uint64) (int, error)

	// GetContentSize returns the object size without reading it.
	GetContentSize(ctx context.Context, id ContentID) (uint64, error)

	// ContentExists reports whether id exists. A missing object is
	// (false, nil), not an error.
	ContentExists(ctx context.Context, id ContentID) (bool, error)

	// Close releases resources held by the store.
	Close() error
}

// WritableStore extends Store with whole-object writes, used when ingesting
// media into a local or S3-backed library.
type WritableStore interface {
	Store

	// WriteContent replaces the object with data.
	WriteContent(ctx context.Context, id ContentID, data []byte) error

	// Delete removes the object. Deleting a missing object succeeds.
	Delete(ctx context.Context, id ContentID) error
}

// ReadRange reads up to length bytes at offset and returns them. Reaching
// the end of the object is not an error; the result is simply shorter.
func ReadRange(ctx context.Context, store Store, id ContentID, offset, length uint64) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	if length > MaxRangeLength {
		return nil, fmt.Errorf("range of %d bytes exceeds %d: %w", length, uint64(MaxRangeLength), ErrInvalidSize)
	}

	buf := make([]byte, length)
	n, err := store.ReadAt(ctx, id, buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// MaxRangeLength bounds a single ReadRange allocation.
const MaxRangeLength = 64 << 20
