package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mikey/mail-threat-engine/internal/core"
)

type reputationKey struct {
	tenantID string
	email    string
}

// ReputationStore is an in-memory core.ReputationStore. Counter updates
// happen under the store lock, so concurrent outcomes are never lost.
type ReputationStore struct {
	mu      sync.RWMutex
	records map[reputationKey]*core.SenderReputation
	now     func() time.Time
}

// NewReputationStore creates a new in-memory reputation store
func NewReputationStore() *ReputationStore {
	return &ReputationStore{
		records: make(map[reputationKey]*core.SenderReputation),
		now:     time.Now,
	}
}

func key(tenantID, email string) reputationKey {
	return reputationKey{tenantID: tenantID, email: core.NormalizeEmail(email)}
}

// Get returns a copy of the record, or a zero-history record if unseen
func (s *ReputationStore) Get(_ context.Context, tenantID, email string) (*core.SenderReputation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.records[key(tenantID, email)]; ok {
		return rec.Clone(), nil
	}
	return core.NewSenderReputation(tenantID, email), nil
}

// Put stores a record as given, replacing any existing one
func (s *ReputationStore) Put(rep *core.SenderReputation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := rep.Clone()
	rec.Email = core.NormalizeEmail(rec.Email)
	rec.Domain = core.DomainOf(rec.Email)
	s.records[key(rec.TenantID, rec.Email)] = rec
}

// RecordOutcome counts one message from the sender
func (s *ReputationStore) RecordOutcome(_ context.Context, tenantID, email string, isSpam bool, score float64) (*core.SenderReputation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.upsert(tenantID, email)
	rec.TotalEmails++
	if isSpam {
		rec.SpamEmails++
	}
	rec.LastScore = score
	rec.LastSeen = s.now().UTC()
	return rec.Clone(), nil
}

// SetBlocked sets the block flag
func (s *ReputationStore) SetBlocked(_ context.Context, tenantID, email string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsert(tenantID, email).IsBlocked = blocked
	return nil
}

// SetWhitelisted sets the whitelist flag
func (s *ReputationStore) SetWhitelisted(_ context.Context, tenantID, email string, whitelisted bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsert(tenantID, email).IsWhitelisted = whitelisted
	return nil
}

// TopSpamSenders returns senders seen since the given time with at least one
// spam message, most spam first
func (s *ReputationStore) TopSpamSenders(_ context.Context, tenantID string, since time.Time, limit int) ([]*core.SenderReputation, error) {
	s.mu.RLock()
	var out []*core.SenderReputation
	for k, rec := range s.records {
		if k.tenantID != tenantID || rec.SpamEmails == 0 || rec.LastSeen.Before(since) {
			continue
		}
		out = append(out, rec.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].SpamEmails != out[j].SpamEmails {
			return out[i].SpamEmails > out[j].SpamEmails
		}
		return out[i].Email < out[j].Email
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DomainReputation aggregates the tenant's senders of a domain
func (s *ReputationStore) DomainReputation(_ context.Context, tenantID, domain string) (*core.DomainReputation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agg := &core.DomainReputation{TenantID: tenantID, Domain: domain}
	for k, rec := range s.records {
		if k.tenantID != tenantID || rec.Domain != domain {
			continue
		}
		agg.Senders++
		agg.TotalEmails += rec.TotalEmails
		agg.SpamEmails += rec.SpamEmails
		if rec.IsBlocked {
			agg.BlockedSenders++
		}
		if rec.LastSeen.After(agg.LastSeen) {
			agg.LastSeen = rec.LastSeen
		}
	}
	return agg, nil
}

// Purge removes a sender's record
func (s *ReputationStore) Purge(_ context.Context, tenantID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key(tenantID, email))
	return nil
}

// upsert returns the stored record, creating it if needed. Callers hold the write lock.
func (s *ReputationStore) upsert(tenantID, email string) *core.SenderReputation {
	k := key(tenantID, email)
	rec, ok := s.records[k]
	if !ok {
		rec = core.NewSenderReputation(tenantID, email)
		s.records[k] = rec
	}
	return rec
}
