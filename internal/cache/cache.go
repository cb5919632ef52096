// Package cache provides an in-process, TTL-bounded classification cache
// so a target revisited within the same run or a nearby one skips a
// redundant Stage 2 port sweep.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

// entry pairs a Classification with the time it expires.
type entry struct {
	classification pipeline.Classification
	expiresAt      time.Time
}

func (e entry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// ClassifyCache holds recent Stage 2 classification results keyed by IP
// alone, so a target probed again within ttl skips re-classification.
type ClassifyCache struct {
	lru *lru.Cache[string, entry]
	ttl time.Duration
}

// NewClassifyCache creates a classification cache holding up to size
// entries, each valid for ttlSeconds. A size or ttl of zero disables
// caching: Get always misses and Set is a no-op.
func NewClassifyCache(size int, ttlSeconds int) (*ClassifyCache, error) {
	if size <= 0 || ttlSeconds <= 0 {
		return &ClassifyCache{}, nil
	}

	l, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}

	return &ClassifyCache{
		lru: l,
		ttl: time.Duration(ttlSeconds) * time.Second,
	}, nil
}

// Get returns the cached classification for ip, if present and unexpired.
func (c *ClassifyCache) Get(ip string) (pipeline.Classification, bool) {
	if c.lru == nil {
		return pipeline.Classification{}, false
	}

	e, ok := c.lru.Get(ip)
	if !ok {
		return pipeline.Classification{}, false
	}
	if e.expired() {
		c.lru.Remove(ip)
		return pipeline.Classification{}, false
	}
	return e.classification, true
}

// Set stores a classification result for ip, replacing any existing entry.
func (c *ClassifyCache) Set(ip string, class pipeline.Classification) {
	if c.lru == nil {
		return
	}
	c.lru.Add(ip, entry{
		classification: class,
		expiresAt:      time.Now().Add(c.ttl),
	})
}

// Len reports the number of entries currently cached.
func (c *ClassifyCache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

// Purge evicts every expired entry. Callers may run this periodically;
// Get already evicts lazily, so Purge is only useful to bound the LRU's
// resident set between lookups.
func (c *ClassifyCache) Purge() {
	if c.lru == nil {
		return
	}
	for _, ip := range c.lru.Keys() {
		if e, ok := c.lru.Peek(ip); ok && e.expired() {
			c.lru.Remove(ip)
		}
	}
}
