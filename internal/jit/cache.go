package jit

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/zeebo/xxh3"
)

// Cache holds compiled plans keyed by the hash of their query text.
// Admission and eviction follow ristretto's frequency-based policy; each
// plan costs one unit, so maxEntries bounds the number of cached plans.
type Cache struct {
	store *ristretto.Cache[uint64, *Executable]
	ttl   time.Duration
}

func newCache(maxEntries int64, ttl time.Duration) (*Cache, error) {
	store, err := ristretto.NewCache(&ristretto.Config[uint64, *Executable]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{store: store, ttl: ttl}, nil
}

func (c *Cache) Get(query string) (*Executable, bool) {
	return c.store.Get(xxh3.HashString(query))
}

func (c *Cache) Set(query string, exe *Executable) {
	key := xxh3.HashString(query)
	if c.ttl > 0 {
		c.store.SetWithTTL(key, exe, 1, c.ttl)
		return
	}
	c.store.Set(key, exe, 1)
}

// Wait blocks until pending writes are applied. Tests use it to observe a
// Set deterministically.
func (c *Cache) Wait() {
	c.store.Wait()
}

func (c *Cache) Stats() (hits, misses uint64) {
	return c.store.Metrics.Hits(), c.store.Metrics.Misses()
}

func (c *Cache) Close() {
	c.store.Close()
}
