package registry

import (
	"github.com/dgraph-io/ristretto"
)

const defaultCacheMaxItems = 1024

// configCache fronts endpoint and source config lookups. Entries are parsed
// immutable documents; invalidation drops everything at once.
type configCache struct {
	cache *ristretto.Cache
}

func newConfigCache(maxItems int64) *configCache {
	if maxItems <= 0 {
		maxItems = defaultCacheMaxItems
	}
	cache, _ := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * maxItems,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	return &configCache{cache: cache}
}

func (c *configCache) Get(key string) (interface{}, bool) {
	return c.cache.Get(key)
}

func (c *configCache) Set(key string, value interface{}) {
	c.cache.Set(key, value, 1)
}

func (c *configCache) Clear() {
	c.cache.Clear()
}

// wait flushes buffered writes; used by tests to make Set visible.
func (c *configCache) wait() {
	c.cache.Wait()
}
