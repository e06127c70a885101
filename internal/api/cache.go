package api

import (
	"context"
	"strings"
	"sync"
	"time"

	"giftscope/internal/filter"
	"giftscope/internal/logging"
)

// CatalogStore is the persistent half of CachedSource. *state.DB satisfies it.
type CatalogStore interface {
	GetCatalog(ctx context.Context, collection string) (filter.Catalog, time.Time, bool, error)
	PutCatalog(ctx context.Context, collection string, cat filter.Catalog) error
}

type cacheEntry struct {
	cat filter.Catalog
	at  time.Time
}

// CachedSource serves attribute catalogs from memory, then from the state DB,
// then from the wrapped Source. Entries older than ttl are refetched; ttl <= 0
// disables caching entirely.
type CachedSource struct {
	next  Source
	store CatalogStore
	ttl   time.Duration
	log   *logging.Logger
	now   func() time.Time

	mu  sync.RWMutex
	mem map[string]cacheEntry
}

func NewCachedSource(next Source, store CatalogStore, ttl time.Duration, log *logging.Logger) *CachedSource {
	return &CachedSource{next: next, store: store, ttl: ttl, log: log, now: time.Now, mem: map[string]cacheEntry{}}
}

func (c *CachedSource) Attributes(ctx context.Context, collection string) (filter.Catalog, error) {
	if c.ttl <= 0 {
		return c.next.Attributes(ctx, collection)
	}
	key := strings.ToLower(strings.TrimSpace(collection))
	if cat, ok := c.fresh(ctx, key, collection); ok {
		return cat, nil
	}
	cat, err := c.next.Attributes(ctx, collection)
	if err != nil {
		return nil, err
	}
	c.remember(ctx, key, collection, cat)
	return cat, nil
}

func (c *CachedSource) Items(ctx context.Context, q filter.Query) (*ItemsPage, error) {
	return c.next.Items(ctx, q)
}

// CollectionData passes through; a non-empty catalog fragment refreshes the cache.
func (c *CachedSource) CollectionData(ctx context.Context, q filter.Query) (*CollectionResult, error) {
	res, err := c.next.CollectionData(ctx, q)
	if err != nil {
		return nil, err
	}
	if c.ttl > 0 && !res.Attributes.Empty() {
		c.remember(ctx, strings.ToLower(strings.TrimSpace(q.Collection)), q.Collection, res.Attributes)
	}
	return res, nil
}

// Forget drops the in-memory entry for collection, or all entries when empty.
func (c *CachedSource) Forget(collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if collection == "" {
		c.mem = map[string]cacheEntry{}
		return
	}
	delete(c.mem, strings.ToLower(strings.TrimSpace(collection)))
}

func (c *CachedSource) fresh(ctx context.Context, key, collection string) (filter.Catalog, bool) {
	c.mu.RLock()
	e, ok := c.mem[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.at) < c.ttl {
		return e.cat, true
	}
	if c.store == nil {
		return nil, false
	}
	cat, at, ok, err := c.store.GetCatalog(ctx, collection)
	if err != nil {
		c.log.Warnf("catalog cache read %s: %v", collection, err)
		return nil, false
	}
	if !ok || cat.Empty() || c.now().Sub(at) >= c.ttl {
		return nil, false
	}
	c.mu.Lock()
	c.mem[key] = cacheEntry{cat: cat, at: at}
	c.mu.Unlock()
	c.log.Debugf("catalog cache hit %s (age %s)", collection, c.now().Sub(at).Round(time.Second))
	return cat, true
}

func (c *CachedSource) remember(ctx context.Context, key, collection string, cat filter.Catalog) {
	if cat.Empty() {
		return
	}
	c.mu.Lock()
	c.mem[key] = cacheEntry{cat: cat, at: c.now()}
	c.mu.Unlock()
	if c.store == nil {
		return
	}
	if err := c.store.PutCatalog(ctx, collection, cat); err != nil {
		c.log.Warnf("catalog cache write %s: %v", collection, err)
	}
}
