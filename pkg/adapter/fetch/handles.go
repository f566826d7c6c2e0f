package fetch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

// HandleTable maps wire handles to backend handles. Wire handles are random
// UUIDs that expire ttl after they were issued.
type HandleTable struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[uuid.UUID]handleEntry
}

type handleEntry struct {
	handle  *retrieval.FileHandle
	expires time.Time
}

// NewHandleTable returns an empty table.
func NewHandleTable(ttl time.Duration) *HandleTable {
	return &HandleTable{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[uuid.UUID]handleEntry),
	}
}

// Issue registers h and returns its 16-byte wire handle.
func (t *HandleTable) Issue(h *retrieval.FileHandle) []byte {
	id := uuid.New()

	t.mu.Lock()
	t.entries[id] = handleEntry{handle: h, expires: t.now().Add(t.ttl)}
	t.mu.Unlock()

	return id[:]
}

// Lookup returns the backend handle for a wire handle that has not expired.
func (t *HandleTable) Lookup(wire []byte) (*retrieval.FileHandle, bool) {
	id, err := uuid.FromBytes(wire)
	if err != nil {
		return nil, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	if !t.now().Before(e.expires) {
		delete(t.entries, id)
		return nil, false
	}
	return e.handle, true
}

// Sweep drops expired handles and returns how many were removed.
func (t *HandleTable) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for id, e := range t.entries {
		if !now.Before(e.expires) {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live and not yet swept handles.
func (t *HandleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
