package library

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/auralis/auralis/internal/fingerprint"
)

// queryCacheTTL and queryCacheCleanup mirror the ebird client's cache
// tuning: short-lived entries for read-mostly catalog lookups, cleaned
// up on a coarse timer rather than per-entry.
const (
	queryCacheTTL     = 5 * time.Minute
	queryCacheCleanup = 10 * time.Minute
)

// CachedTrackRepository wraps a TrackRepository with a read-through
// in-memory cache keyed by track id. It is a distinct cache instance
// from the DSP chunk cache: chunk cache entries are large PCM buffers
// bounded by byte size, this one holds small catalog rows bounded only
// by TTL.
type CachedTrackRepository struct {
	inner TrackRepository
	cache *cache.Cache
}

// NewCachedTrackRepository wraps inner with a read-through cache and
// subscribes itself so deletes invalidate both before and after the
// underlying row is removed.
func NewCachedTrackRepository(inner TrackRepository) *CachedTrackRepository {
	c := &CachedTrackRepository{inner: inner, cache: cache.New(queryCacheTTL, queryCacheCleanup)}
	inner.Subscribe(c)
	return c
}

func (c *CachedTrackRepository) InvalidateTrack(trackID string) {
	c.cache.Delete(trackCacheKey(trackID))
}

func trackCacheKey(id string) string { return fmt.Sprintf("track:%s", id) }

func (c *CachedTrackRepository) Get(ctx context.Context, id string) (Track, error) {
	if v, ok := c.cache.Get(trackCacheKey(id)); ok {
		return v.(Track), nil
	}
	t, err := c.inner.Get(ctx, id)
	if err != nil {
		return Track{}, err
	}
	c.cache.Set(trackCacheKey(id), t, cache.DefaultExpiration)
	return t, nil
}

func (c *CachedTrackRepository) List(ctx context.Context, orderBy string, limit, offset int) ([]Track, int64, error) {
	// List results are not cached: the cache key space (order_by x
	// limit x offset) grows unboundedly and paginated views go stale
	// the moment any track is added, so it isn't worth the complexity
	// for what is already an indexed, bounded-page query.
	return c.inner.List(ctx, orderBy, limit, offset)
}

func (c *CachedTrackRepository) Delete(ctx context.Context, id string) error {
	return c.inner.Delete(ctx, id)
}

func (c *CachedTrackRepository) Upsert(ctx context.Context, t Track) error {
	if err := c.inner.Upsert(ctx, t); err != nil {
		return err
	}
	c.cache.Set(trackCacheKey(t.ID), t, cache.DefaultExpiration)
	return nil
}

func (c *CachedTrackRepository) Subscribe(l InvalidationListener) {
	c.inner.Subscribe(l)
}

// fingerprintCacheKey namespaces fingerprint entries in the same cache
// instance used by a CachedFingerprintRepository, if one is layered on
// top of the same underlying cache.Cache.
func fingerprintCacheKey(trackID string) string { return fmt.Sprintf("fingerprint:%s", trackID) }

// CachedFingerprintRepository applies the same read-through pattern to
// fingerprint lookups, which are read far more often (every chunk
// request resolves processing params from the fingerprint) than
// written (once per completed analysis).
type CachedFingerprintRepository struct {
	inner FingerprintRepository
	cache *cache.Cache
}

func NewCachedFingerprintRepository(inner FingerprintRepository) *CachedFingerprintRepository {
	return &CachedFingerprintRepository{inner: inner, cache: cache.New(queryCacheTTL, queryCacheCleanup)}
}

func (c *CachedFingerprintRepository) Upsert(ctx context.Context, trackID string, fp fingerprint.Fingerprint) error {
	if err := c.inner.Upsert(ctx, trackID, fp); err != nil {
		return err
	}
	c.cache.Set(fingerprintCacheKey(trackID), fp, cache.DefaultExpiration)
	return nil
}

func (c *CachedFingerprintRepository) Get(ctx context.Context, trackID string) (fingerprint.Fingerprint, error) {
	if v, ok := c.cache.Get(fingerprintCacheKey(trackID)); ok {
		return v.(fingerprint.Fingerprint), nil
	}
	fp, err := c.inner.Get(ctx, trackID)
	if err != nil {
		return fingerprint.Fingerprint{}, err
	}
	c.cache.Set(fingerprintCacheKey(trackID), fp, cache.DefaultExpiration)
	return fp, nil
}

func (c *CachedFingerprintRepository) CountCompleted(ctx context.Context) (int64, error) {
	// Never cached: progress reporting must reflect the latest count.
	return c.inner.CountCompleted(ctx)
}

func (c *CachedFingerprintRepository) FindSimilar(ctx context.Context, fp fingerprint.Fingerprint, excludeTrackID string, limit int) ([]SimilarTrack, error) {
	// Never cached: the candidate set changes as the library is scanned
	// and a stale top-N would silently omit newly analyzed tracks.
	return c.inner.FindSimilar(ctx, fp, excludeTrackID, limit)
}
