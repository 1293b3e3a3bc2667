// ABOUTME: Thread-safe TTL cache for deduplicating transport message ids
// ABOUTME: The transport is at-least-once; redelivered messages must not be reprocessed

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Cache tracks recently seen message keys with a TTL and a size cap.
// Expired entries are pruned lazily on writes; insertion order is kept in a
// linked list so eviction at capacity is O(1).
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // oldest at front
	ttl     time.Duration
	maxSize int
}

// New creates a cache that remembers keys for ttl, holding at most maxSize.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// CheckAndMark atomically checks whether key was seen within the TTL and
// marks it if not. Returns true for a duplicate, false for a new key.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if e, ok := c.seen[key]; ok && now.Sub(e.seenAt) < c.ttl {
		return true
	}
	c.pruneExpired(now)
	c.mark(key, now)
	return false
}

// Unmark forgets a key so a later redelivery is seen as new. Used when the
// work the mark guarded did not actually complete.
func (c *Cache) Unmark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.seen[key]
	if !ok {
		return
	}
	c.order.Remove(e.element)
	delete(c.seen, key)
}

// Len returns the number of tracked keys, including not-yet-pruned expired
// ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) mark(key string, now time.Time) {
	if e, ok := c.seen[key]; ok {
		e.seenAt = now
		c.order.MoveToBack(e.element)
		return
	}
	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}
	c.seen[key] = &entry{seenAt: now, element: c.order.PushBack(key)}
}

func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

// pruneExpired removes expired entries from the front of the order list.
// Entries are in insertion order, so pruning stops at the first live one.
func (c *Cache) pruneExpired(now time.Time) {
	for {
		front := c.order.Front()
		if front == nil {
			return
		}
		key, _ := front.Value.(string)
		e := c.seen[key]
		if e == nil || now.Sub(e.seenAt) < c.ttl {
			return
		}
		c.order.Remove(front)
		delete(c.seen, key)
	}
}
