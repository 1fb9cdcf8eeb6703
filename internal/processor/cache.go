package processor

import (
	"sync"

	"github.com/auralis/auralis/internal/audio"
	"github.com/auralis/auralis/internal/constants"
)

// cacheKey identifies one cached chunk. Intensity is quantized before
// being used as a key so near-identical intensities (e.g. 1.001 vs 1.0
// from floating point drift) share a cache entry.
type cacheKey struct {
	trackID    string
	preset     string
	intensityQ int
	chunkIndex int
}

func quantizeIntensity(intensity float64) int {
	return int(constants.ClampIntensity(intensity)*100 + 0.5)
}

type cacheEntry struct {
	key   cacheKey
	chunk audio.Buffer
	bytes int64
	seq   uint64
}

// chunkCache is a singleton, process-wide, count-and-byte-bounded LRU.
// Every read and write happens under one lock: this codebase never reads
// outside the lock, even under a double-checked-locking pattern, per the
// cache's single-writer-single-reader-path requirement. Modeled on the
// same slice+map+sequence-counter LRU shape as the dsp package's FFT
// window cache and the teacher's internal/events deduplicator.
type chunkCache struct {
	mu         sync.Mutex
	maxEntries int
	maxBytes   int64

	totalBytes int64
	entries    []*cacheEntry
	byKey      map[cacheKey]*cacheEntry
	seq        uint64

	hits   int64
	misses int64
}

func newChunkCache(maxEntries int, maxBytes int64) *chunkCache {
	return &chunkCache{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		byKey:      make(map[cacheKey]*cacheEntry),
	}
}

func (c *chunkCache) get(key cacheKey) (audio.Buffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.byKey[key]
	if !ok {
		c.misses++
		return audio.Buffer{}, false
	}
	c.hits++
	c.seq++
	e.seq = c.seq
	return e.chunk, true
}

func (c *chunkCache) put(key cacheKey, chunk audio.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byKey[key]; exists {
		return
	}

	size := chunkByteSize(chunk)
	c.seq++
	e := &cacheEntry{key: key, chunk: chunk, bytes: size, seq: c.seq}
	c.byKey[key] = e
	c.entries = append(c.entries, e)
	c.totalBytes += size

	for (len(c.entries) > c.maxEntries || c.totalBytes > c.maxBytes) && len(c.entries) > 0 {
		c.evictOldest()
	}
}

func (c *chunkCache) evictOldest() {
	oldestIdx := 0
	for i, e := range c.entries {
		if e.seq < c.entries[oldestIdx].seq {
			oldestIdx = i
		}
	}
	victim := c.entries[oldestIdx]
	delete(c.byKey, victim.key)
	c.entries = append(c.entries[:oldestIdx], c.entries[oldestIdx+1:]...)
	c.totalBytes -= victim.bytes
}

func (c *chunkCache) stats() (hits, misses int64, entries int, bytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.entries), c.totalBytes
}

func chunkByteSize(buf audio.Buffer) int64 {
	return int64(buf.Channels() * buf.Samples() * 4)
}

// globalChunkCache is the one process-wide chunk cache instance. A
// processor MUST NOT construct a private cache: that would defeat the
// cross-request reuse the cache exists for. Its bounds default to the
// constants package but can be overridden once, at startup, via
// ConfigureCache before the first call to New.
var (
	cacheOnce        sync.Once
	globalChunkCache *chunkCache
	cacheMaxEntries  = constants.ChunkCacheMaxEntries
	cacheMaxBytes    = int64(constants.ChunkCacheMaxBytes)
)

// ConfigureCache overrides the chunk cache bounds from configuration. It
// must be called before the first processor is constructed; calls after
// the cache has been lazily created have no effect.
func ConfigureCache(maxEntries int, maxBytes int64) {
	cacheMaxEntries = maxEntries
	cacheMaxBytes = maxBytes
}

func getChunkCache() *chunkCache {
	cacheOnce.Do(func() {
		globalChunkCache = newChunkCache(cacheMaxEntries, cacheMaxBytes)
	})
	return globalChunkCache
}
