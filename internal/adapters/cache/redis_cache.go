package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/core"
)

// RedisCache is a Redis-backed core.ReputationCache. Entries expire through
// Redis key TTLs.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewRedisCache connects to the Redis server at redisURL
func NewRedisCache(redisURL, keyPrefix string, ttl time.Duration, logger *zap.Logger) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheWithClient(client, keyPrefix, ttl, logger), nil
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "threat:rep"
	}
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger,
	}
}

func (c *RedisCache) key(tenantID, email string) string {
	return c.keyPrefix + ":" + tenantID + ":" + core.NormalizeEmail(email)
}

// Get retrieves a cached record
func (c *RedisCache) Get(ctx context.Context, tenantID, email string) (*core.SenderReputation, error) {
	data, err := c.client.Get(ctx, c.key(tenantID, email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	var rep core.SenderReputation
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &rep, nil
}

// Set stores the record with the cache TTL
func (c *RedisCache) Set(ctx context.Context, rep *core.SenderReputation) error {
	data, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := c.client.Set(ctx, c.key(rep.TenantID, rep.Email), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Delete removes a cache entry
func (c *RedisCache) Delete(ctx context.Context, tenantID, email string) error {
	if err := c.client.Del(ctx, c.key(tenantID, email)).Err(); err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

// Stop closes the Redis connection
func (c *RedisCache) Stop() {
	if err := c.client.Close(); err != nil {
		c.logger.Error("Failed to close Redis client", zap.Error(err))
	}
}
