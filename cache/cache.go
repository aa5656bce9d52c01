// Package cache keeps recently served site differences in memory so the
// API does not rebuild them from the store on every request.
package cache

import (
	"sync"
	"time"

	"github.com/use-agent/cookiediff/models"
)

// entry holds cached differences with their creation timestamp.
type entry struct {
	diffs     models.SiteDifferences
	createdAt time.Time
}

// Cache is a simple in-memory cache of site differences keyed by domain.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	done       chan struct{}
	once       sync.Once
}

// New creates a Cache holding at most maxEntries sites for ttl each.
// A background goroutine evicts expired entries every ttl/2.
func New(maxEntries int, ttl time.Duration) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: max(maxEntries, 1),
		ttl:        ttl,
		done:       make(chan struct{}),
	}
	if ttl > 0 {
		go c.cleanupLoop(max(ttl/2, time.Second))
	}
	return c
}

// Get returns the cached differences of domain if present and fresh.
func (c *Cache) Get(domain string) (models.SiteDifferences, bool) {
	c.mu.RLock()
	e, ok := c.store[domain]
	c.mu.RUnlock()

	if !ok || c.expired(e, time.Now()) {
		return nil, false
	}
	return e.diffs, true
}

// Set stores the differences of domain. If the cache is at capacity,
// a random entry is evicted to make room.
func (c *Cache) Set(domain string, diffs models.SiteDifferences) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict one random entry if at capacity (map iteration is random in Go).
	if _, exists := c.store[domain]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[domain] = &entry{
		diffs:     diffs,
		createdAt: time.Now(),
	}
}

// Invalidate drops domain, e.g. after a new analysis shard stored it.
func (c *Cache) Invalidate(domain string) {
	c.mu.Lock()
	delete(c.store, domain)
	c.mu.Unlock()
}

// Len returns the number of cached sites, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Stop terminates the cleanup goroutine.
func (c *Cache) Stop() {
	c.once.Do(func() { close(c.done) })
}

func (c *Cache) expired(e *entry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.createdAt) > c.ttl
}

func (c *Cache) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case now := <-ticker.C:
			c.evictExpired(now)
		}
	}
}

func (c *Cache) evictExpired(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if c.expired(e, now) {
			delete(c.store, k)
		}
	}
}
