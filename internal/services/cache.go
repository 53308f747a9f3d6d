package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/codyseavey/card-atlas/internal/metrics"
	"github.com/codyseavey/card-atlas/internal/models"
)

// DefaultCatalogTTL bounds how long an aggregated catalog index is served
// before a rebuild.
const DefaultCatalogTTL = 20 * time.Minute

// CatalogCache holds the single aggregated-index slot with a fixed TTL and
// de-duplicates concurrent builds: callers arriving while a build is in
// flight await that build instead of starting their own. It is process-local
// and holds no per-user state.
type CatalogCache struct {
	ttl   time.Duration
	group singleflight.Group

	mu        sync.Mutex
	entries   []models.CatalogIndexEntry
	expiresAt time.Time

	now func() time.Time // injectable for tests
}

func NewCatalogCache(ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &CatalogCache{
		ttl: ttl,
		now: time.Now,
	}
}

// Get returns the cached index, or runs build exactly once across all
// concurrent callers on a miss. A failed build leaves the slot empty so the
// next call retries from scratch.
func (c *CatalogCache) Get(ctx context.Context, build func(ctx context.Context) ([]models.CatalogIndexEntry, error)) ([]models.CatalogIndexEntry, error) {
	c.mu.Lock()
	if c.entries != nil && c.now().Before(c.expiresAt) {
		entries := c.entries
		c.mu.Unlock()
		metrics.CatalogCacheHits.Inc()
		return entries, nil
	}
	c.mu.Unlock()
	metrics.CatalogCacheMisses.Inc()

	result, err, _ := c.group.Do("catalog", func() (any, error) {
		// Re-check under single flight: a just-finished build may have
		// populated the slot while this caller was queued.
		c.mu.Lock()
		if c.entries != nil && c.now().Before(c.expiresAt) {
			entries := c.entries
			c.mu.Unlock()
			return entries, nil
		}
		c.mu.Unlock()

		start := time.Now()
		entries, err := build(ctx)
		if err != nil {
			return nil, err
		}
		metrics.CatalogBuildDuration.Observe(time.Since(start).Seconds())
		metrics.CatalogSize.Set(float64(len(entries)))

		c.mu.Lock()
		c.entries = entries
		c.expiresAt = c.now().Add(c.ttl)
		c.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.CatalogIndexEntry), nil
}

// Invalidate drops the cached slot so the next Get rebuilds.
func (c *CatalogCache) Invalidate() {
	c.mu.Lock()
	c.entries = nil
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}
