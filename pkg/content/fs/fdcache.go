package fs

import (
	"container/list"
	"os"
	"sync"

	"github.com/marmos91/fotoprobe/pkg/content"
)

// FDCache keeps recently read files open. Retrieval reads the same object
// several times in growing windows, so reopening it for every window is
// wasted work.
//
// Entries are reference counted: an evicted or invalidated file stays open
// until its last reader releases it.
type FDCache struct {
	maxSize int
	mu      sync.Mutex
	cache   map[content.ContentID]*list.Element
	lru     *list.List
}

type cacheEntry struct {
	id      content.ContentID
	file    *os.File
	refs    int
	evicted bool
}

func NewFDCache(maxSize int) *FDCache {
	if maxSize < 1 {
		maxSize = 256
	}
	return &FDCache{
		maxSize: maxSize,
		cache:   make(map[content.ContentID]*list.Element),
		lru:     list.New(),
	}
}

// Acquire returns an open file for id, calling open on a miss. The caller
// must call the returned release function when done with the file.
func (c *FDCache) Acquire(id content.ContentID, open func() (*os.File, error)) (*os.File, func(), error) {
	c.mu.Lock()
	if elem, ok := c.cache[id]; ok {
		c.lru.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.refs++
		c.mu.Unlock()
		return entry.file, c.releaser(entry), nil
	}
	c.mu.Unlock()

	file, err := open()
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another reader may have opened it meanwhile.
	if elem, ok := c.cache[id]; ok {
		_ = file.Close()
		c.lru.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry)
		entry.refs++
		return entry.file, c.releaser(entry), nil
	}

	for c.lru.Len() >= c.maxSize {
		c.evictLocked(c.lru.Back())
	}

	entry := &cacheEntry{id: id, file: file, refs: 1}
	c.cache[id] = c.lru.PushFront(entry)
	return file, c.releaser(entry), nil
}

func (c *FDCache) releaser(entry *cacheEntry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			entry.refs--
			if entry.evicted && entry.refs == 0 {
				_ = entry.file.Close()
			}
		})
	}
}

// Invalidate drops id so the next Acquire reopens it. Used after the file
// is replaced or deleted.
func (c *FDCache) Invalidate(id content.ContentID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[id]; ok {
		c.evictLocked(elem)
	}
}

func (c *FDCache) evictLocked(elem *list.Element) {
	if elem == nil {
		return
	}
	entry := elem.Value.(*cacheEntry)
	c.lru.Remove(elem)
	delete(c.cache, entry.id)

	entry.evicted = true
	if entry.refs == 0 {
		_ = entry.file.Close()
	}
}

// Close evicts every entry. Files still in use close on release.
func (c *FDCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.lru.Len() > 0 {
		c.evictLocked(c.lru.Back())
	}
	return nil
}

func (c *FDCache) Stats() (size int, maxSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len(), c.maxSize
}
