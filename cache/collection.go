package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// FetchFunc retrieves a full enumerable catalog from an upstream source.
type FetchFunc func(ctx context.Context) ([]string, error)

type collectionEntry struct {
	entries   []string
	fetchedAt time.Time
}

// CollectionCache is a read-through cache for catalogs that are fetched
// whole and filtered locally. With TTL zero an entry lives for the
// process lifetime, matching the observed upstream behavior; a nonzero
// TTL bounds staleness for operators who want it.
type CollectionCache struct {
	mu          sync.RWMutex
	collections map[string]collectionEntry
	group       singleflight.Group
	ttl         time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

// NewCollectionCache creates a collection cache. ttl == 0 disables expiry.
func NewCollectionCache(ttl time.Duration, log zerolog.Logger) *CollectionCache {
	return &CollectionCache{
		collections: make(map[string]collectionEntry),
		ttl:         ttl,
		now:         time.Now,
		log:         log.With().Str("component", "collection_cache").Logger(),
	}
}

func (c *CollectionCache) fresh(entry collectionEntry) bool {
	if c.ttl == 0 {
		return true
	}
	return c.now().Sub(entry.fetchedAt) < c.ttl
}

// Get returns the cached catalog for key, fetching it once when absent
// or stale. Concurrent populates for the same key share a single fetch.
func (c *CollectionCache) Get(ctx context.Context, key string, fetch FetchFunc) ([]string, error) {
	c.mu.RLock()
	entry, ok := c.collections[key]
	c.mu.RUnlock()
	if ok && c.fresh(entry) {
		return entry.entries, nil
	}

	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		current, ok := c.collections[key]
		c.mu.RUnlock()
		if ok && c.fresh(current) {
			return current.entries, nil
		}

		c.log.Info().Str("adapter", key).Msg("fetching full catalog")
		entries, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.collections[key] = collectionEntry{entries: entries, fetchedAt: c.now()}
		c.mu.Unlock()
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}
