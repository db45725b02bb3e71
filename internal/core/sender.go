package core

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/metrics"
)

// errDomainLookupTimeout marks a domain lookup abandoned at its deadline
var errDomainLookupTimeout = errors.New("domain reputation lookup timed out")

type senderResult struct {
	score      float64
	reputation *SenderReputation
	trusted    bool
}

// scoreSender computes the reputation-derived sub-score. The returned
// reputation is the snapshot taken before this scan is recorded.
func (s *ScoringService) scoreSender(ctx context.Context, tenantID, sender, displayName string, state *scanState) senderResult {
	res := senderResult{reputation: NewSenderReputation(tenantID, sender)}
	if sender == "" {
		return res
	}

	rep, err := s.lookupReputation(ctx, tenantID, sender)
	if err != nil {
		s.logger.Warn("Reputation lookup failed, using zero history",
			zap.String("tenant_id", tenantID),
			zap.String("sender", sender),
			zap.Error(err))
		metrics.ReputationFailures.WithLabelValues("get").Inc()
		state.degrade(DegradedReputation)
	} else {
		res.reputation = rep
	}
	rep = res.reputation

	if rep.IsBlocked {
		res.score += blockedSenderPoints
	} else if rep.IsWhitelisted || (s.whitelist != nil && s.whitelist.IsWhitelisted(sender)) {
		res.trusted = true
		return res
	}

	if rep.Score() > reputationSpamCutoff {
		res.score += badReputationPoints
	}
	if s.suite.SuspiciousSender(sender, displayName) {
		res.score += suspiciousSenderPoints
	}

	if domain := DomainOf(sender); domain != "" {
		verdict, err := s.checkDomain(ctx, domain)
		if err != nil {
			s.logger.Warn("Domain reputation unavailable, treating as unknown",
				zap.String("domain", domain),
				zap.Error(err))
			state.degrade(DegradedDomainReputation)
		} else if verdict != nil && verdict.IsBlacklisted {
			res.score += blacklistedDomainPoints
		}
	}
	return res
}

func (s *ScoringService) lookupReputation(ctx context.Context, tenantID, sender string) (rep *SenderReputation, err error) {
	defer func() {
		if r := recover(); r != nil {
			rep, err = nil, fmt.Errorf("reputation store panic: %v", r)
		}
	}()
	rep, err = s.reputation.Get(ctx, tenantID, sender)
	if err == nil && rep == nil {
		rep = NewSenderReputation(tenantID, sender)
	}
	return rep, err
}

// checkDomain consults the domain provider within the lookup timeout. A
// provider that ignores its context is abandoned at the deadline.
func (s *ScoringService) checkDomain(ctx context.Context, domain string) (*DomainVerdict, error) {
	if s.domains == nil || !s.cfg.DomainLookupEnabled {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DomainLookupTimeout)
	defer cancel()

	type outcome struct {
		verdict *DomainVerdict
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("domain provider panic: %v", r)}
			}
		}()
		v, err := s.domains.CheckDomain(ctx, domain)
		done <- outcome{verdict: v, err: err}
	}()

	select {
	case o := <-done:
		return o.verdict, o.err
	case <-ctx.Done():
		return nil, errDomainLookupTimeout
	}
}
