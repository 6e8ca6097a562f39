// Package cache provides a small pull-based TTL cache plus a bounded
// time-windowed history list. There is no background refresh: a caller
// that arrives after expiry pays the acquisition cost itself, which
// bounds remote load to one in-flight refresh per key per TTL window.
package cache

import (
	"sync"
	"time"
)

// Producer acquires a fresh value for a cache key.
type Producer func() (any, error)

type entry struct {
	value     any
	fetchedAt time.Time

	// inflight is non-nil while a refresh is running; waiters block on it
	// instead of racing into duplicate producer calls.
	inflight chan struct{}
}

// Cache is a concurrency-safe TTL cache keyed by string.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry

	// now is swapped in tests to step time without sleeping.
	now func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// GetOrRefresh returns the cached value for key if its age is within ttl.
// Otherwise it invokes producer synchronously, stores the result, and
// returns it. Concurrent callers hitting an expired key are deduplicated:
// one runs the producer, the rest wait for its result. A failed refresh
// stores nothing, so the next caller retries.
func (c *Cache) GetOrRefresh(key string, ttl time.Duration, producer Producer) (any, error) {
	for {
		c.mu.Lock()
		e, ok := c.entries[key]

		if ok && e.inflight == nil && c.now().Sub(e.fetchedAt) < ttl {
			value := e.value
			c.mu.Unlock()
			return value, nil
		}

		if ok && e.inflight != nil {
			done := e.inflight
			c.mu.Unlock()
			<-done
			// Re-check: either a fresh value landed or the refresh
			// failed and this caller takes over.
			continue
		}

		done := make(chan struct{})
		e = &entry{inflight: done}
		c.entries[key] = e
		c.mu.Unlock()

		value, err := producer()

		c.mu.Lock()
		// Only touch the map if our entry is still current; Clear may
		// have run while the producer was out.
		if current, still := c.entries[key]; still && current == e {
			if err != nil {
				delete(c.entries, key)
			} else {
				e.value = value
				e.fetchedAt = c.now()
				e.inflight = nil
			}
		}
		c.mu.Unlock()
		close(done)

		return value, err
	}
}

// Peek returns the cached value for key without refreshing, along with
// whether a settled value is present. Age is not checked.
func (c *Cache) Peek(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.inflight != nil {
		return nil, false
	}
	return e.value, true
}

// Invalidate drops one key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear discards every entry unconditionally, forcing fresh probes.
// In-flight refreshes still deliver to their waiters but are not stored.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}
