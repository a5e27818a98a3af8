// Package cache holds the in-memory caches used on the tick path.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Expiring is a map whose entries vanish ttl after they were last set or touched.
// Expired entries are dropped lazily on read and by Purge.
type Expiring[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[K]entry[V]
}

func NewExpiring[K comparable, V any](ttl time.Duration) *Expiring[K, V] {
	return &Expiring[K, V]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[K]entry[V]),
	}
}

// Get returns the live value stored under k.
func (c *Expiring[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(k)
}

func (c *Expiring[K, V]) get(k K) (V, bool) {
	e, ok := c.entries[k]
	if !ok {
		var zero V
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, k)
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *Expiring[K, V]) Set(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[k] = entry[V]{value: v, expiresAt: c.now().Add(c.ttl)}
}

// GetOrCreate returns the live value under k, storing create() first if there is none.
func (c *Expiring[K, V]) GetOrCreate(k K, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.get(k); ok {
		return v
	}
	v := create()
	c.entries[k] = entry[V]{value: v, expiresAt: c.now().Add(c.ttl)}
	return v
}

// Touch pushes the expiration of a live entry ttl into the future.
func (c *Expiring[K, V]) Touch(k K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.get(k)
	if !ok {
		return false
	}
	c.entries[k] = entry[V]{value: v, expiresAt: c.now().Add(c.ttl)}
	return true
}

func (c *Expiring[K, V]) Delete(k K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, k)
}

// Purge drops every expired entry and returns how many were dropped.
func (c *Expiring[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len counts entries, including expired ones not yet purged.
func (c *Expiring[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
