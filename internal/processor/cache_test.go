package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auralis/auralis/internal/audio"
)

func TestChunkCacheGetMissThenHit(t *testing.T) {
	t.Parallel()

	c := newChunkCache(10, 1<<20)
	key := cacheKey{trackID: "t1", preset: "adaptive", intensityQ: 100, chunkIndex: 0}

	_, ok := c.get(key)
	assert.False(t, ok)

	chunk := audio.NewSilentBuffer(48000, 2, 1024)
	c.put(key, chunk)

	got, ok := c.get(key)
	require.True(t, ok)
	assert.Equal(t, chunk.Samples(), got.Samples())

	hits, misses, entries, _ := c.stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1, entries)
}

func TestChunkCacheEvictsByEntryCount(t *testing.T) {
	t.Parallel()

	c := newChunkCache(2, 1<<30)
	chunk := audio.NewSilentBuffer(48000, 1, 256)

	keyA := cacheKey{trackID: "a", chunkIndex: 0}
	keyB := cacheKey{trackID: "b", chunkIndex: 0}
	keyC := cacheKey{trackID: "c", chunkIndex: 0}

	c.put(keyA, chunk)
	c.put(keyB, chunk)
	c.put(keyC, chunk) // must evict the oldest (a) to respect maxEntries

	_, okA := c.get(keyA)
	_, okB := c.get(keyB)
	_, okC := c.get(keyC)
	assert.False(t, okA, "oldest entry must be evicted once maxEntries is exceeded")
	assert.True(t, okB)
	assert.True(t, okC)
}

func TestChunkCacheEvictsByByteBound(t *testing.T) {
	t.Parallel()

	chunk := audio.NewSilentBuffer(48000, 1, 1000) // 4000 bytes
	c := newChunkCache(100, 4500)                  // room for ~1 chunk only

	keyA := cacheKey{trackID: "a"}
	keyB := cacheKey{trackID: "b"}

	c.put(keyA, chunk)
	c.put(keyB, chunk)

	_, _, entries, bytes := c.stats()
	assert.LessOrEqual(t, bytes, int64(4500))
	assert.LessOrEqual(t, entries, 1)
}

func TestChunkCachePutIsIdempotentForSameKey(t *testing.T) {
	t.Parallel()

	c := newChunkCache(10, 1<<20)
	key := cacheKey{trackID: "t1"}
	chunk := audio.NewSilentBuffer(48000, 1, 128)

	c.put(key, chunk)
	c.put(key, chunk)

	_, _, entries, _ := c.stats()
	assert.Equal(t, 1, entries, "putting the same key twice must not double the entry or its byte accounting")
}

func TestQuantizeIntensityGroupsNearEqualValues(t *testing.T) {
	t.Parallel()

	a := quantizeIntensity(1.0)
	b := quantizeIntensity(1.0009)
	assert.Equal(t, a, b, "sub-hundredth intensity drift must quantize to the same cache bucket")

	c := quantizeIntensity(1.2)
	assert.NotEqual(t, a, c)
}
