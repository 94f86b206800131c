package embedder

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache provides in-memory LRU caching of embeddings by content hash.
type Cache struct {
	cache *lru.Cache[string, []float32]
}

// NewCache creates an embedding cache with LRU eviction.
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, []float32](maxLen)
	if err != nil {
		// Only reachable with a non-positive size, which is guarded above.
		cache, _ = lru.New[string, []float32](10000)
	}
	return &Cache{cache: cache}
}

// Get retrieves a copy of a cached vector. Returning a copy keeps caller
// mutations out of the cache.
func (c *Cache) Get(hash string) ([]float32, bool) {
	vec, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Set stores a vector; LRU eviction is automatic at capacity.
func (c *Cache) Set(hash string, vec []float32) {
	c.cache.Add(hash, vec)
}

// Size returns the current cache size.
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.cache.Purge()
}
