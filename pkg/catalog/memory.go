package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/fotoprobe/pkg/retrieval"
)

// MemoryCatalog keeps entries in a map. Used for tests and for ephemeral
// libraries.
type MemoryCatalog struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCatalog returns an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{entries: make(map[string]Entry)}
}

func (c *MemoryCatalog) Get(ctx context.Context, ref retrieval.MessageRef) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	e, ok := c.entries[Key(ref)]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if err := checkAccess(&e, ref); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *MemoryCatalog) Put(ctx context.Context, e *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(e); err != nil {
		return err
	}

	c.mu.Lock()
	c.entries[Key(e.Ref)] = *e
	c.mu.Unlock()
	return nil
}

func (c *MemoryCatalog) Delete(ctx context.Context, ref retrieval.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.entries, Key(ref))
	c.mu.Unlock()
	return nil
}

func (c *MemoryCatalog) List(ctx context.Context, fn func(*Entry) error) error {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	snapshot := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		snapshot[k] = v
	}
	c.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		e := snapshot[k]
		if err := fn(&e); err != nil {
			return err
		}
	}
	return nil
}

func (c *MemoryCatalog) Close() error {
	return nil
}
