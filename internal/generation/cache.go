package generation

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// fingerprint keys the artifact cache by the exact text submitted.
func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// artifactCache is a bounded insert-order cache. Concurrent duplicate misses
// are tolerated: the second put for a key wins without growing the cache.
type artifactCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]string
	order   []string
}

func newArtifactCache(max int) *artifactCache {
	if max <= 0 {
		max = 1
	}
	return &artifactCache{max: max, entries: make(map[string]string, max)}
}

func (c *artifactCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *artifactCache) put(key, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.entries[key] = content
		return
	}
	for len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = content
	c.order = append(c.order, key)
}

func (c *artifactCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
