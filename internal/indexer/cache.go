package indexer

import (
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultCacheSize = 256

// queryCache keeps the releases of recent queries of one indexer, a nil cache stores nothing.
type queryCache struct {
	lru *expirable.LRU[string, []Release]
}

func newQueryCache(size int, ttl time.Duration) *queryCache {
	if ttl <= 0 {
		return nil
	}
	if size <= 0 {
		size = defaultCacheSize
	}
	return &queryCache{lru: expirable.NewLRU[string, []Release](size, nil, ttl)}
}

func (c *queryCache) get(q Query) ([]Release, bool) {
	if c == nil {
		return nil, false
	}
	releases, ok := c.lru.Get(q.cacheKey())
	if !ok {
		return nil, false
	}
	return slices.Clone(releases), true
}

func (c *queryCache) add(q Query, releases []Release) {
	if c == nil {
		return
	}
	c.lru.Add(q.cacheKey(), slices.Clone(releases))
}

func (c *queryCache) purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
