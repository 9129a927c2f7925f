// Package querycache holds recently computed search results keyed by the
// query fingerprint. Entries age out by TTL, are evicted LRU when the cache
// is full, and are dropped wholesale when the corpus generation changes.
package querycache

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/atriumhq/atrium/internal/domain/search/result"
)

// Cache is an in-process result cache. A fingerprint already encodes the
// normalized query text, k and the confidence floor, so two requests share
// an entry only when they would rank identically.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	order      []string
	maxEntries int
	ttl        time.Duration
	generation uint64
	cacheTotal *prometheus.CounterVec
	now        func() time.Time
}

type entry struct {
	results  []result.Result
	storedAt time.Time
}

// New creates a cache bounded to maxEntries with per-entry ttl. cacheTotal
// is a counter vec with label "result" ("hit"/"miss"); nil disables it.
func New(maxEntries int, ttl time.Duration, cacheTotal *prometheus.CounterVec) *Cache {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		entries:    make(map[string]*entry),
		order:      make([]string, 0, maxEntries),
		maxEntries: maxEntries,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		now:        time.Now,
	}
}

// Get returns the cached results for fingerprint, refreshing its LRU
// position. Expired entries are removed on access.
func (c *Cache) Get(fingerprint string) ([]result.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fingerprint]
	if !ok {
		c.incCache("miss")
		return nil, false
	}

	if c.now().Sub(e.storedAt) > c.ttl {
		delete(c.entries, fingerprint)
		c.removeFromOrder(fingerprint)
		c.incCache("miss")
		return nil, false
	}

	c.moveToEnd(fingerprint)
	c.incCache("hit")
	return e.results, true
}

// Put stores results for fingerprint, evicting the least recently used
// entry when the cache is full. generation is the token the caller read
// via Generation before computing results; a write whose token no longer
// matches was computed against a corpus that has since changed and is
// dropped, so an in-flight search can never resurrect pre-invalidation
// results.
func (c *Cache) Put(fingerprint string, results []result.Result, generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}

	if _, ok := c.entries[fingerprint]; ok {
		c.entries[fingerprint] = &entry{results: results, storedAt: c.now()}
		c.moveToEnd(fingerprint)
		return
	}

	if len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	c.entries[fingerprint] = &entry{results: results, storedAt: c.now()}
	c.order = append(c.order, fingerprint)
}

// Invalidate drops every entry and bumps the generation, orphaning any
// write still in flight with an older token.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*entry)
	c.order = c.order[:0]
	c.generation++
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Generation returns the current corpus generation counter.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Cache) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *Cache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *Cache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *Cache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
