package services

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type cacheItem struct {
	result    *SearchResult
	expiresAt time.Time
}

// searchCache keeps recent search results keyed by location selector so that
// repeated lookups within the TTL skip the three provider fetches.
type searchCache struct {
	mu          sync.RWMutex
	items       map[string]cacheItem
	ttl         time.Duration
	maxSize     int
	logger      *zap.Logger
	stopCleanup chan struct{}
}

func newSearchCache(ttl time.Duration, maxSize int, logger *zap.Logger) *searchCache {
	c := &searchCache{
		items:       make(map[string]cacheItem),
		ttl:         ttl,
		maxSize:     maxSize,
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func (c *searchCache) Get(key string) (*SearchResult, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(item.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil, false
	}
	return item.result, true
}

func (c *searchCache) Set(key string, result *SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.items) >= c.maxSize {
		c.evictOldest()
	}

	c.items[key] = cacheItem{
		result:    result,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.logger.Debug("Search result cached", zap.String("key", key))
}

func (c *searchCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range c.items {
		if oldestKey == "" || item.expiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.items, oldestKey)
		c.logger.Debug("Evicted oldest cached search", zap.String("key", oldestKey))
	}
}

func (c *searchCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *searchCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	expired := 0
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
			expired++
		}
	}
	if expired > 0 {
		c.logger.Debug("Cleaned expired cached searches", zap.Int("count", expired))
	}
}

func (c *searchCache) Stop() {
	close(c.stopCleanup)
}
