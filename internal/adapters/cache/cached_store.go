package cache

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/core"
	"github.com/mikey/mail-threat-engine/internal/metrics"
)

const generationStripes = 64

// generation counts the writes to the keys hashing onto one stripe. A cache
// fill only lands when no write to the stripe happened since its store read.
type generation struct {
	mu  sync.Mutex
	gen uint64
}

// CachedReputationStore puts a ReputationCache in front of a
// ReputationStore. Reads populate the cache on a miss; writes refresh or
// invalidate the entry. Cache failures only cost latency.
type CachedReputationStore struct {
	store   core.ReputationStore
	cache   core.ReputationCache
	logger  *zap.Logger
	stripes [generationStripes]generation
}

// NewCachedReputationStore creates a new cache decorator
func NewCachedReputationStore(store core.ReputationStore, cache core.ReputationCache, logger *zap.Logger) *CachedReputationStore {
	return &CachedReputationStore{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Get reads through the cache
func (s *CachedReputationStore) Get(ctx context.Context, tenantID, email string) (*core.SenderReputation, error) {
	rep, err := s.cache.Get(ctx, tenantID, email)
	if err == nil {
		return rep, nil
	}
	if !errors.Is(err, core.ErrCacheMiss) {
		s.logger.Warn("Reputation cache read failed, falling back to store",
			zap.String("tenant_id", tenantID),
			zap.String("email", email),
			zap.Error(err))
		metrics.ReputationFailures.WithLabelValues("cache_get").Inc()
	}

	stripe := s.stripe(tenantID, email)
	seen := stripe.current()
	rep, err = s.store.Get(ctx, tenantID, email)
	if err != nil {
		return nil, err
	}

	stripe.mu.Lock()
	defer stripe.mu.Unlock()
	if stripe.gen == seen {
		s.refresh(ctx, rep)
	}
	return rep, nil
}

// RecordOutcome writes to the store and refreshes the cache with the
// result, unless another write to the sender raced this one
func (s *CachedReputationStore) RecordOutcome(ctx context.Context, tenantID, email string, isSpam bool, score float64) (*core.SenderReputation, error) {
	stripe := s.stripe(tenantID, email)
	seen := stripe.current()
	rep, err := s.store.RecordOutcome(ctx, tenantID, email, isSpam, score)

	stripe.mu.Lock()
	defer stripe.mu.Unlock()
	latest := stripe.gen == seen
	stripe.gen++
	if err != nil {
		s.invalidate(ctx, tenantID, email)
		return nil, err
	}
	if latest {
		s.refresh(ctx, rep)
	} else {
		s.invalidate(ctx, tenantID, email)
	}
	return rep, nil
}

// SetBlocked writes to the store and invalidates the entry
func (s *CachedReputationStore) SetBlocked(ctx context.Context, tenantID, email string, blocked bool) error {
	err := s.store.SetBlocked(ctx, tenantID, email, blocked)
	s.written(ctx, tenantID, email)
	return err
}

// SetWhitelisted writes to the store and invalidates the entry
func (s *CachedReputationStore) SetWhitelisted(ctx context.Context, tenantID, email string, whitelisted bool) error {
	err := s.store.SetWhitelisted(ctx, tenantID, email, whitelisted)
	s.written(ctx, tenantID, email)
	return err
}

// Purge removes the record and its cache entry
func (s *CachedReputationStore) Purge(ctx context.Context, tenantID, email string) error {
	err := s.store.Purge(ctx, tenantID, email)
	s.written(ctx, tenantID, email)
	return err
}

// TopSpamSenders always reads the store
func (s *CachedReputationStore) TopSpamSenders(ctx context.Context, tenantID string, since time.Time, limit int) ([]*core.SenderReputation, error) {
	return s.store.TopSpamSenders(ctx, tenantID, since, limit)
}

// DomainReputation always reads the store
func (s *CachedReputationStore) DomainReputation(ctx context.Context, tenantID, domain string) (*core.DomainReputation, error) {
	return s.store.DomainReputation(ctx, tenantID, domain)
}

func (s *CachedReputationStore) stripe(tenantID, email string) *generation {
	h := fnv.New32a()
	_, _ = h.Write([]byte(cacheKey(tenantID, email)))
	return &s.stripes[h.Sum32()%generationStripes]
}

func (g *generation) current() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

// written bumps the stripe and drops the entry after a store write, so any
// fill that read the store before the write is discarded
func (s *CachedReputationStore) written(ctx context.Context, tenantID, email string) {
	stripe := s.stripe(tenantID, email)
	stripe.mu.Lock()
	defer stripe.mu.Unlock()
	stripe.gen++
	s.invalidate(ctx, tenantID, email)
}

func (s *CachedReputationStore) refresh(ctx context.Context, rep *core.SenderReputation) {
	if rep == nil {
		return
	}
	if err := s.cache.Set(ctx, rep); err != nil {
		s.logger.Warn("Failed to update reputation cache",
			zap.String("tenant_id", rep.TenantID),
			zap.String("email", rep.Email),
			zap.Error(err))
		metrics.ReputationFailures.WithLabelValues("cache_set").Inc()
	}
}

func (s *CachedReputationStore) invalidate(ctx context.Context, tenantID, email string) {
	if err := s.cache.Delete(ctx, tenantID, email); err != nil {
		s.logger.Warn("Failed to invalidate reputation cache",
			zap.String("tenant_id", tenantID),
			zap.String("email", email),
			zap.Error(err))
		metrics.ReputationFailures.WithLabelValues("cache_delete").Inc()
	}
}
