// Package transient is the expiring key-value cache used for derived CSS,
// page detection results and rate limit counters.
package transient

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxEntries = 4096

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a bounded LRU of values that expire after a per-entry TTL.
// Entries past their TTL are treated as absent and evicted on access.
type Cache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, entry]
	now   func() time.Time
}

type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates a cache holding at most maxEntries values. Non-positive sizes
// fall back to the default.
func New(maxEntries int, opts ...Option) *Cache {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	// lru.New only errors on non-positive size which we guard above.
	l, _ := lru.New[string, entry](maxEntries)
	c := &Cache{cache: l, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *Cache) getLocked(key string) (any, bool) {
	e, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.cache.Remove(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, entry{value: value, expiresAt: c.now().Add(ttl)})
}

// Hit counts one event against the counter under key. When the new count
// stays within limit it is stored with a fresh ttl and Hit reports true;
// otherwise the counter is left untouched and Hit reports false.
func (c *Cache) Hit(key string, limit int, ttl time.Duration) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	if v, ok := c.getLocked(key); ok {
		n, _ = v.(int)
	}
	n++
	if n > limit {
		return n, false
	}
	c.cache.Add(key, entry{value: n, expiresAt: c.now().Add(ttl)})
	return n, true
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Remove(key)
}

// DeletePrefix removes every key starting with prefix.
func (c *Cache) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, k := range c.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Remove(k)
			n++
		}
	}
	return n
}

func (c *Cache) Len() int {
	return c.cache.Len()
}
