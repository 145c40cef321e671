package folders

import (
	"sync"
	"time"
)

// pathCache maps (drive, path) keys to folder handles with TTL expiry.
// Entries are invalidated purely by expiry, never explicitly. Read-mostly;
// concurrent misses for the same key may each walk the path, which is
// harmless since resolution is idempotent.
type pathCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	handle  Handle
	expires time.Time
}

func newPathCache(ttl time.Duration, now func() time.Time) *pathCache {
	if now == nil {
		now = time.Now
	}

	return &pathCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		now:     now,
	}
}

func (c *pathCache) get(key string) (Handle, bool) {
	if c.ttl <= 0 {
		return Handle{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Handle{}, false
	}

	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return Handle{}, false
	}

	return e.handle, true
}

func (c *pathCache) put(key string, h Handle) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{handle: h, expires: c.now().Add(c.ttl)}
}
