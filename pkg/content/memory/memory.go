package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/fotoprobe/pkg/content"
)

// MemoryContentStore implements content.WritableStore in memory.
//
// It is meant for tests and for the demo library built by `fotoprobe
// serve` when no storage is configured. Data is lost on restart.
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Data is copied on the
// way in and out so callers never share buffers with the store.
type MemoryContentStore struct {
	data map[content.ContentID][]byte
	mu   sync.RWMutex
}

// NewMemoryContentStore creates an empty store.
func NewMemoryContentStore(ctx context.Context) (*MemoryContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &MemoryContentStore{
		data: make(map[content.ContentID][]byte),
	}, nil
}

// ReadAt copies up to len(p) bytes at offset into p.
func (s *MemoryContentStore) ReadAt(ctx context.Context, id content.ContentID, p []byte, offset uint64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.data[id]
	if !exists {
		return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	if offset >= uint64(len(data)) {
		return 0, io.EOF
	}

	n := copy(p, data[offset:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// GetContentSize returns the stored length of id.
func (s *MemoryContentStore) GetContentSize(ctx context.Context, id content.ContentID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.data[id]
	if !exists {
		return 0, fmt.Errorf("content %s: %w", id, content.ErrContentNotFound)
	}
	return uint64(len(data)), nil
}

// ContentExists reports whether id is stored.
func (s *MemoryContentStore) ContentExists(ctx context.Context, id content.ContentID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.data[id]
	return exists, nil
}

// WriteContent stores a copy of data under id.
func (s *MemoryContentStore) WriteContent(ctx context.Context, id content.ContentID, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return content.ErrInvalidContentID
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.data[id] = buf
	s.mu.Unlock()
	return nil
}

// Delete removes id. Missing objects are ignored.
func (s *MemoryContentStore) Delete(ctx context.Context, id content.ContentID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, id)
	s.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *MemoryContentStore) Close() error {
	return nil
}
