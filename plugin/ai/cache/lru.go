// Package cache provides an in-memory LRU with per-entry expiry.
package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	defaultCapacity = 1000
	defaultTTL      = 30 * time.Minute
)

// LRU is a fixed-capacity least-recently-used cache. Entries older than the
// TTL are treated as absent. It is safe for concurrent use.
type LRU[V any] struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently used
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// NewLRU creates an LRU. Non-positive arguments select the defaults.
func NewLRU[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	element, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	e := element.Value.(*entry[V])
	if c.now().After(e.expiresAt) {
		c.remove(element)
		return zero, false
	}
	c.order.MoveToFront(element)
	return e.value, true
}

func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if element, ok := c.entries[key]; ok {
		e := element.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		c.order.MoveToFront(element)
		return
	}

	for c.order.Len() >= c.capacity {
		c.remove(c.order.Back())
	}
	c.entries[key] = c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge removes every entry.
func (c *LRU[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// RemoveExpired evicts expired entries and returns how many were removed.
func (c *LRU[V]) RemoveExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for element := c.order.Back(); element != nil; {
		prev := element.Prev()
		if now.After(element.Value.(*entry[V]).expiresAt) {
			c.remove(element)
			removed++
		}
		element = prev
	}
	return removed
}

// remove must be called with the lock held.
func (c *LRU[V]) remove(element *list.Element) {
	c.order.Remove(element)
	delete(c.entries, element.Value.(*entry[V]).key)
}
