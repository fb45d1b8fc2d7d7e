package generation

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintIsStableAndDistinct(t *testing.T) {
	assert.Equal(t, fingerprint("same text"), fingerprint("same text"))
	assert.NotEqual(t, fingerprint("same text"), fingerprint("same text."))
	assert.Len(t, fingerprint("x"), 64)
}

func TestCacheEvictsOldestInsert(t *testing.T) {
	c := newArtifactCache(2)
	c.put("a", "1")
	c.put("b", "2")
	c.put("c", "3")

	_, ok := c.get("a")
	assert.False(t, ok, "oldest entry should be evicted")
	v, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, "2", v)
	_, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.len())
}

func TestCacheOverwriteDoesNotGrow(t *testing.T) {
	c := newArtifactCache(2)
	c.put("a", "1")
	c.put("a", "updated")
	c.put("b", "2")

	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, "updated", v)
	assert.Equal(t, 2, c.len())
}

func TestCacheNeverExceedsBound(t *testing.T) {
	c := newArtifactCache(4)
	for i := 0; i < 20; i++ {
		c.put(fmt.Sprintf("k%d", i), "v")
		assert.LessOrEqual(t, c.len(), 4)
	}
}
