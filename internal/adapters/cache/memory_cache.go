package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/core"
)

type memoryEntry struct {
	rep       *core.SenderReputation
	expiresAt time.Time
}

// MemoryCache is an in-memory core.ReputationCache with per-entry TTL
type MemoryCache struct {
	entries     map[string]*memoryEntry
	mu          sync.RWMutex
	logger      *zap.Logger
	ttl         time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewMemoryCache creates a new in-memory cache and starts its cleanup task
func NewMemoryCache(logger *zap.Logger, ttl, cleanupFreq time.Duration) *MemoryCache {
	cache := &MemoryCache{
		entries:     make(map[string]*memoryEntry),
		logger:      logger,
		ttl:         ttl,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	if cleanupFreq > 0 {
		go cache.startCleanupTask()
	}

	return cache
}

// Get retrieves a live cached record
func (c *MemoryCache) Get(_ context.Context, tenantID, email string) (*core.SenderReputation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[cacheKey(tenantID, email)]
	if !ok || !c.now().Before(entry.expiresAt) {
		return nil, core.ErrCacheMiss
	}
	return entry.rep.Clone(), nil
}

// Set stores a copy of the record for the cache TTL
func (c *MemoryCache) Set(_ context.Context, rep *core.SenderReputation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(rep.TenantID, rep.Email)] = &memoryEntry{
		rep:       rep.Clone(),
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

// Delete removes a cache entry
func (c *MemoryCache) Delete(_ context.Context, tenantID, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, cacheKey(tenantID, email))
	return nil
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cleanup removes expired entries
func (c *MemoryCache) Cleanup(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiredCount := 0

	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			expiredCount++
		}
	}

	c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expiredCount))
	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (c *MemoryCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Cleanup(context.Background()); err != nil {
				c.logger.Error("Failed to clean up cache", zap.Error(err))
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}

func cacheKey(tenantID, email string) string {
	return tenantID + "|" + core.NormalizeEmail(email)
}
