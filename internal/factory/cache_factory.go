package factory

import (
	"fmt"

	"github.com/mikey/mail-threat-engine/internal/adapters/cache"
	"github.com/mikey/mail-threat-engine/internal/config"
	"github.com/mikey/mail-threat-engine/internal/core"
	"go.uber.org/zap"
)

// CacheFactory creates reputation caches based on configuration
type CacheFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewCacheFactory creates a new cache factory
func NewCacheFactory(cfg *config.Config, logger *zap.Logger) *CacheFactory {
	return &CacheFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateReputationCache creates a reputation cache based on the
// configuration. It returns nil when caching is disabled.
func (f *CacheFactory) CreateReputationCache() (core.ReputationCache, error) {
	cacheCfg := f.cfg.GetCache()

	switch cacheCfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryCache(f.logger, cacheCfg.TTL, cacheCfg.CleanupFrequency), nil
	case "redis":
		redisCache, err := cache.NewRedisCache(cacheCfg.RedisURL, cacheCfg.KeyPrefix, cacheCfg.TTL, f.logger)
		if err != nil {
			return nil, err
		}
		return redisCache, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cacheCfg.Type)
	}
}

// WrapReputationStore puts the cache in front of store. A nil cache
// leaves the store unchanged.
func (f *CacheFactory) WrapReputationStore(store core.ReputationStore, repCache core.ReputationCache) core.ReputationStore {
	if repCache == nil {
		return store
	}
	return cache.NewCachedReputationStore(store, repCache, f.logger)
}
