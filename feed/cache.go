package feed

import (
	"fmt"
	"sync"
	"time"

	"github.com/willyhc/futsim/market"
)

type cacheKey struct {
	product  market.Product
	interval market.Interval
}

// Cache keeps fetched series in memory, keyed by product and interval. A
// cached series is served as long as its ending bar covers the requested
// range; otherwise the whole key is refetched. Entries beyond the bound are
// evicted oldest-insertion first.
type Cache struct {
	src Source
	max int

	mu      sync.Mutex
	entries map[cacheKey]market.Series
	order   []cacheKey
}

func NewCache(src Source, maxEntries int) (*Cache, error) {
	if src == nil {
		return nil, fmt.Errorf("feed: cache needs a source")
	}
	if maxEntries <= 0 {
		return nil, fmt.Errorf("feed: cache bound %d must be positive", maxEntries)
	}
	return &Cache{
		src:     src,
		max:     maxEntries,
		entries: make(map[cacheKey]market.Series),
	}, nil
}

func (c *Cache) Fetch(product market.Product, interval market.Interval, from, to time.Time) (market.Series, error) {
	key := cacheKey{product: product, interval: interval}

	c.mu.Lock()
	if cached, ok := c.entries[key]; ok && cached.Covers(to) {
		c.mu.Unlock()
		return cached.Slice(from, to), nil
	}
	c.mu.Unlock()

	// Fetch the full range for the key so later narrower requests hit.
	fresh, err := c.src.Fetch(product, interval, time.Time{}, to)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
		for len(c.order) > c.max {
			evict := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, evict)
		}
	}
	c.entries[key] = fresh
	c.mu.Unlock()

	return fresh.Slice(from, to), nil
}

// Len reports the number of cached keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
