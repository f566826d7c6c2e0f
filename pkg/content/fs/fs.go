// Package fs stores media objects as files under a base directory.
package fs

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/marmos91/fotoprobe/pkg/content"
)

// FSContentStore implements content.WritableStore on the local filesystem.
//
// Each object is one file named after the hex-encoded ContentID, so any
// string is a valid ID. Writes go to a temporary file that is renamed into
// place, so a concurrent reader sees either the old or the new object.
//
// Thread Safety:
// Safe for concurrent use. Open descriptors are shared through an FDCache.
type FSContentStore struct {
	basePath string
	fdCache  *FDCache
}

// NewFSContentStore creates the base directory if needed and returns a
// store rooted there.
//
// Parameters:
//   - ctx: Context for cancellation
//   - basePath: Root directory for object files
//
// Returns:
//   - *FSContentStore: Initialized store
//   - error: Directory creation failure or context cancellation
func NewFSContentStore(ctx context.Context, basePath string) (*FSContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	const defaultFDCacheSize = 128

	return &FSContentStore{
		basePath: basePath,
		fdCache:  NewFDCache(defaultFDCacheSize),
	}, nil
}

// getFilePath returns the file that holds id.
func (r *FSContentStore) getFilePath(id content.ContentID) string {
	// Hex keeps IDs containing slashes or NUL bytes filesystem-safe.
	return filepath.Join(r.basePath, hex.EncodeToString([]byte(id)))
}

// ReadAt reads from the object file through the descriptor cache.
//
// Context Cancellation:
// Checked before the read. A single pread is not interruptible.
func (r *FSContentStore) ReadAt(ctx context.Context, id content.ContentID, p []byte, offset uint64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if offset > uint64(1<<63-1) {
		return 0, io.EOF
	}

	path := r.getFilePath(id)
	file, release, err := r.fdCache.Acquire(id, func() (*os.File, error) {
		return os.Open(path)
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		if errors.Is(err, os.ErrPermission) {
			return 0, fmt.Errorf("content %s: %w", id, content.ErrAccessDenied)
		}
		return 0, fmt.Errorf("failed to open content: %w", err)
	}
	defer release()

	n, err := file.ReadAt(p, int64(offset))
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fmt.Errorf("failed to read content: %w", err)
	}
	return n, err
}

// GetContentSize stats the object file.
func (r *FSContentStore) GetContentSize(ctx context.Context, id content.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	info, err := os.Stat(r.getFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
		}
		return 0, fmt.Errorf("failed to stat content: %w", err)
	}

	return uint64(info.Size()), nil
}

// ContentExists reports whether the object file exists.
func (r *FSContentStore) ContentExists(ctx context.Context, id content.ContentID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(r.getFilePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check content existence: %w", err)
	}

	return true, nil
}

// WriteContent replaces the object with data.
//
// Context Cancellation:
// Checked before writing and again before the rename, so a cancelled write
// never replaces the existing object.
func (r *FSContentStore) WriteContent(ctx context.Context, id content.ContentID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return content.ErrInvalidContentID
	}

	tmp, err := os.CreateTemp(r.basePath, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close content: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.getFilePath(id)); err != nil {
		return fmt.Errorf("failed to commit content: %w", err)
	}
	r.fdCache.Invalidate(id)
	return nil
}

// Delete removes the object file. A missing file is not an error.
func (r *FSContentStore) Delete(ctx context.Context, id content.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.fdCache.Invalidate(id)
	if err := os.Remove(r.getFilePath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete content: %w", err)
	}
	return nil
}

// Close closes cached descriptors.
func (r *FSContentStore) Close() error {
	return r.fdCache.Close()
}
