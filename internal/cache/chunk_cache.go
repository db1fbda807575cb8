package cache

import (
	"container/list"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/gridstore/resource"
)

// ChunkCache is a bounded FIFO memo of materialized array fragments with a
// single prefetch slot.
//
// Nodes are evicted strictly in insertion order; a hit never changes that
// order. The prefetch slot is not counted against MaxBytes or MaxNodes.
//
// ChunkCache holds no lock. The owning dataset handle serializes access;
// only Stats may be read concurrently.
type ChunkCache struct {
	cfg Config
	rc  *resource.Controller

	items map[Key]*list.Element
	order *list.List // front is oldest
	size  int64
	seq   uint64

	prefetch *Entry
	onEvict  func(*Entry)

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a ChunkCache. If rc is non-nil, every cached byte is charged
// to it.
func New(cfg Config, rc *resource.Controller) *ChunkCache {
	return &ChunkCache{
		cfg:   cfg,
		rc:    rc,
		items: make(map[Key]*list.Element),
		order: list.New(),
	}
}

// Config returns the cache policy.
func (c *ChunkCache) Config() Config {
	return c.cfg
}

// OnEvict registers fn to be called for every node removed by eviction or
// invalidation.
func (c *ChunkCache) OnEvict(fn func(*Entry)) {
	c.onEvict = fn
}

// Admit reports whether a fetch result of size bytes should be cached.
func (c *ChunkCache) Admit(size int64) bool {
	return c.cfg.MaxNodes > 0 && size >= c.cfg.MinBytes
}

// Lookup returns the bytes cached under key.
func (c *ChunkCache) Lookup(key Key) ([]byte, bool) {
	if el, ok := c.items[key]; ok {
		c.hits.Add(1)
		return el.Value.(*Entry).Data, true
	}
	c.misses.Add(1)
	return nil, false
}

// Insert caches data under key, replacing any node with the same key.
// Oldest nodes are evicted while the new node would not fit the byte
// budget or the node count is at its limit. A node larger than MaxBytes is
// still inserted and becomes the next eviction candidate.
//
// If the resource controller refuses the memory, Insert returns
// ErrOutOfMemory and the cache is unchanged.
func (c *ChunkCache) Insert(key Key, data []byte, vars *roaring.Bitmap, ext Extent) error {
	if c.cfg.MaxNodes <= 0 {
		return nil
	}

	size := int64(len(data))
	old, replacing := c.items[key]
	var oldSize int64
	if replacing {
		oldSize = old.Value.(*Entry).Size()
	}

	if !c.rc.TryAcquireMemory(size - oldSize) {
		return ErrOutOfMemory
	}

	if replacing {
		c.unlink(old)
		if oldSize > size {
			c.rc.ReleaseMemory(oldSize - size)
		}
	}

	for c.order.Len() > 0 && (c.overBudget(size) || c.order.Len() >= c.cfg.MaxNodes) {
		c.removeElement(c.order.Front(), true)
	}

	c.seq++
	e := &Entry{Key: key, Data: data, Vars: vars, Extent: ext, Seq: c.seq}
	c.items[key] = c.order.PushBack(e)
	c.size += size
	return nil
}

func (c *ChunkCache) overBudget(size int64) bool {
	return c.cfg.MaxBytes > 0 && c.size+size > c.cfg.MaxBytes
}

// Evict removes the node cached under key.
func (c *ChunkCache) Evict(key Key) bool {
	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el, true)
	return true
}

// Invalidate removes every node matching pred and returns how many were
// removed. The prefetch slot is not affected.
func (c *ChunkCache) Invalidate(pred func(*Entry) bool) int {
	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if pred(el.Value.(*Entry)) {
			c.removeElement(el, false)
			n++
		}
		el = next
	}
	return n
}

// InvalidateAll removes every node and clears the prefetch slot.
func (c *ChunkCache) InvalidateAll() {
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		c.removeElement(el, false)
		el = next
	}
	c.ClearPrefetch()
}

// SetPrefetch replaces the prefetch snapshot.
func (c *ChunkCache) SetPrefetch(data []byte, vars *roaring.Bitmap) error {
	size := int64(len(data))
	var oldSize int64
	if c.prefetch != nil {
		oldSize = c.prefetch.Size()
	}

	if !c.rc.TryAcquireMemory(size - oldSize) {
		return ErrOutOfMemory
	}
	if oldSize > size {
		c.rc.ReleaseMemory(oldSize - size)
	}

	c.seq++
	c.prefetch = &Entry{Key: "prefetch", Data: data, Vars: vars, Seq: c.seq}
	return nil
}

// Prefetch returns the prefetch snapshot.
func (c *ChunkCache) Prefetch() (*Entry, bool) {
	return c.prefetch, c.prefetch != nil
}

// ClearPrefetch drops the prefetch snapshot.
func (c *ChunkCache) ClearPrefetch() {
	if c.prefetch == nil {
		return
	}
	c.rc.ReleaseMemory(c.prefetch.Size())
	c.prefetch = nil
}

// Len returns the number of bounded nodes.
func (c *ChunkCache) Len() int {
	return c.order.Len()
}

// Size returns the bytes held by bounded nodes.
func (c *ChunkCache) Size() int64 {
	return c.size
}

// Keys returns the node keys from oldest to newest.
func (c *ChunkCache) Keys() []Key {
	keys := make([]Key, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*Entry).Key)
	}
	return keys
}

// Stats returns a snapshot of the cache counters.
func (c *ChunkCache) Stats() Stats {
	s := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Nodes:     c.order.Len(),
		Bytes:     c.size,
	}
	if c.prefetch != nil {
		s.PrefetchBytes = c.prefetch.Size()
	}
	return s
}

// unlink detaches el without touching the resource controller.
func (c *ChunkCache) unlink(el *list.Element) *Entry {
	e := c.order.Remove(el).(*Entry)
	delete(c.items, e.Key)
	c.size -= e.Size()
	return e
}

func (c *ChunkCache) removeElement(el *list.Element, evicted bool) {
	e := c.unlink(el)
	c.rc.ReleaseMemory(e.Size())
	if evicted {
		c.evictions.Add(1)
	}
	if c.onEvict != nil {
		c.onEvict(e)
	}
}
