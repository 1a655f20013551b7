// Package cache provides the time-bounded payload cache shared by the
// extraction layer. Entries expire lazily on read and are swept periodically
// by a background janitor.
package cache

import (
	"sync"
	"time"

	"github.com/lensvault/lensvault/internal/jsontree"
)

// MinGCInterval floors the janitor period so a misconfigured interval cannot
// busy-sweep the cache.
const MinGCInterval = 5 * time.Minute

type entry struct {
	payload  *jsontree.Value
	storedAt time.Time
}

// Cache maps fetch keys to decoded payloads with a fixed TTL. A zero TTL
// disables caching entirely: Get always misses and Set is a no-op.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]entry

	stop     chan struct{}
	stopOnce sync.Once
}

// New constructs a cache and, when both ttl and gcInterval are positive,
// starts the background sweep.
func New(ttl, gcInterval time.Duration) *Cache {
	return newCache(ttl, gcInterval, time.Now)
}

// NewWithClock constructs a cache with an injected clock and no background
// sweep. Intended for tests exercising expiry boundaries deterministically.
func NewWithClock(ttl time.Duration, now func() time.Time) *Cache {
	return newCache(ttl, 0, now)
}

func newCache(ttl, gcInterval time.Duration, now func() time.Time) *Cache {
	c := &Cache{
		ttl:      ttl,
		now:      now,
		entries:  make(map[string]entry),
		stop:     make(chan struct{}),
		stopOnce: sync.Once{},
	}
	if ttl > 0 && gcInterval > 0 {
		if gcInterval < MinGCInterval {
			gcInterval = MinGCInterval
		}
		go c.janitor(gcInterval)
	}
	return c
}

// Get returns the cached payload for key, lazily evicting an entry whose TTL
// has elapsed.
func (c *Cache) Get(key string) (*jsontree.Value, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if now.Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.payload, true
}

// Set stores the payload under key. No-op when caching is disabled.
func (c *Cache) Set(key string, payload *jsontree.Value) {
	if c == nil || c.ttl <= 0 || payload == nil {
		return
	}
	c.mu.Lock()
	c.entries[key] = entry{payload: payload, storedAt: c.now()}
	c.mu.Unlock()
}

// Delete removes the entry for key, if present.
func (c *Cache) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Sweep deletes every entry past its TTL.
func (c *Cache) Sweep() {
	if c == nil || c.ttl <= 0 {
		return
	}
	now := c.now()
	c.mu.Lock()
	for key, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background sweep and clears the cache. Safe to call more
// than once; required for clean process exit in short-lived batch runs.
func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

func (c *Cache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
