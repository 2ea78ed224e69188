package application

import (
	"sync"
	"time"

	"github.com/bnema/continuity/internal/domain"
	"github.com/bnema/continuity/internal/ports"
)

// DefaultCacheTTL bounds how long an assembled bundle is reused.
const DefaultCacheTTL = 5 * time.Minute

// bundleCache memoizes assembly results per (strategy, query, options) key.
// Expired entries are swept lazily on insert, at most once per cleanup
// interval, so sweep cost stays bounded.
type bundleCache struct {
	clock        ports.Clock
	ttl          time.Duration
	cleanupEvery time.Duration

	mu        sync.Mutex
	entries   map[string]cacheEntry
	lastSweep time.Time
}

type cacheEntry struct {
	bundle    domain.ContextBundle
	expiresAt time.Time
}

func newBundleCache(clock ports.Clock, ttl time.Duration) *bundleCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &bundleCache{
		clock:        clock,
		ttl:          ttl,
		cleanupEvery: ttl / 2,
		entries:      make(map[string]cacheEntry),
	}
}

func (c *bundleCache) get(key string) (domain.ContextBundle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return domain.ContextBundle{}, false
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return domain.ContextBundle{}, false
	}
	return cloneBundle(entry.bundle), true
}

func (c *bundleCache) put(key string, bundle domain.ContextBundle) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) >= c.cleanupEvery {
		for k, entry := range c.entries {
			if !now.Before(entry.expiresAt) {
				delete(c.entries, k)
			}
		}
		c.lastSweep = now
	}

	c.entries[key] = cacheEntry{bundle: cloneBundle(bundle), expiresAt: now.Add(c.ttl)}
}

func (c *bundleCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func cloneBundle(b domain.ContextBundle) domain.ContextBundle {
	b.Items = append([]domain.ContextItem(nil), b.Items...)
	return b
}
