package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	response  map[string]any
	expiresAt time.Time
}

// MemoryCache is an in-process Cache guarded by a mutex. Expiry is checked
// lazily at read time; PurgeExpired sweeps the remainder.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	nowFn   func() time.Time
}

// NewMemoryCache constructs an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		nowFn:   time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, fingerprint string) (map[string]any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fingerprint]
	if !ok {
		return nil, false
	}
	if !c.nowFn().Before(entry.expiresAt) {
		delete(c.entries, fingerprint)
		return nil, false
	}
	return entry.response, true
}

func (c *MemoryCache) Put(_ context.Context, fingerprint string, response map[string]any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = memoryEntry{
		response:  response,
		expiresAt: c.nowFn().Add(ttl),
	}
}

func (c *MemoryCache) PurgeExpired(_ context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	removed := 0
	for fingerprint, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, fingerprint)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
}

// Len reports the number of live plus not-yet-swept entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
