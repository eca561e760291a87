// Package cache provides a simple in-memory TTL cache.
// The Redis session store covers the multi-instance case.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a thread-safe in-memory cache with TTL.
// Every write refreshes the entry's expiry (sliding TTL).
type InMemory[T any] struct {
	mu    sync.RWMutex
	items map[string]entry[T]
	ttl   time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// DefaultTTL is used when New gets a non-positive TTL.
const DefaultTTL = 5 * time.Minute

// New creates a new in-memory cache with the given TTL.
// A non-positive ttl falls back to DefaultTTL.
func New[T any](ttl time.Duration) *InMemory[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &InMemory[T]{
		items: make(map[string]entry[T]),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	// Background cleanup goroutine
	go c.cleanup()
	return c
}

// Get retrieves a value from the cache. Returns false if not found or expired.
func (c *InMemory[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores a value in the cache with the configured TTL.
func (c *InMemory[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Compute atomically reads the current value of key, passes it to fn and
// stores what fn returns. ok is false when the key is missing or expired.
// If fn returns an error the cache is left untouched.
func (c *InMemory[T]) Compute(key string, fn func(current T, ok bool) (T, error)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.items[key]
	if ok && time.Now().After(current.expiresAt) {
		ok = false
		var zero T
		current.value = zero
	}

	next, err := fn(current.value, ok)
	if err != nil {
		var zero T
		return zero, err
	}

	c.items[key] = entry[T]{
		value:     next,
		expiresAt: time.Now().Add(c.ttl),
	}
	return next, nil
}

// Delete removes a value from the cache.
func (c *InMemory[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Len returns the number of entries, expired ones included until cleanup runs.
func (c *InMemory[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Close stops the cleanup goroutine. The cache stays usable.
func (c *InMemory[T]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanup periodically removes expired entries.
func (c *InMemory[T]) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for k, v := range c.items {
				if now.After(v.expiresAt) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
