package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReplaceRules validates specs and swaps the tenant's rule set as a unit
func (s *ScoringService) ReplaceRules(ctx context.Context, tenantID, userID string, specs []RuleSpec) (*RuleSetResult, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidTenant
	}
	if err := ValidateRuleSpecs(specs); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rules := make([]*SpamRule, len(specs))
	for i, spec := range specs {
		active := true
		if spec.IsActive != nil {
			active = *spec.IsActive
		}
		rules[i] = &SpamRule{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			Name:      strings.TrimSpace(spec.Name),
			Type:      spec.Type,
			Pattern:   spec.Pattern,
			IsRegex:   spec.IsRegex,
			Action:    spec.Action,
			Priority:  spec.Priority,
			IsActive:  active,
			CreatedAt: now,
		}
	}

	if err := s.rules.ReplaceRules(ctx, tenantID, rules); err != nil {
		return nil, fmt.Errorf("failed to replace rules: %w", err)
	}

	_ = s.appendEvent(ctx, s.newEvent(tenantID, EventRulesUpdate, "replace", SeverityInfo, map[string]any{
		"user_id":       userID,
		"rules_created": len(rules),
	}))
	s.logger.Info("Rule set replaced",
		zap.String("tenant_id", tenantID),
		zap.String("user_id", userID),
		zap.Int("rules", len(rules)))

	return &RuleSetResult{RulesCreated: len(rules)}, nil
}

// ListRules returns the tenant's rules in evaluation order
func (s *ScoringService) ListRules(ctx context.Context, tenantID string) ([]*SpamRule, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidTenant
	}
	rules, err := s.rules.ListRules(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority < rules[j].Priority
	})
	return rules, nil
}

// GetSenderReputation returns the stored reputation of a sender
func (s *ScoringService) GetSenderReputation(ctx context.Context, tenantID, email string) (*SenderReputation, error) {
	sender, err := validateSender(tenantID, email)
	if err != nil {
		return nil, err
	}
	rep, err := s.reputation.Get(ctx, tenantID, sender)
	if err != nil {
		return nil, fmt.Errorf("failed to get reputation: %w", err)
	}
	if rep == nil {
		rep = NewSenderReputation(tenantID, sender)
	}
	return rep, nil
}

// SetSenderBlocked sets or clears the administrative block of a sender
func (s *ScoringService) SetSenderBlocked(ctx context.Context, tenantID, userID, email string, blocked bool) error {
	sender, err := validateSender(tenantID, email)
	if err != nil {
		return err
	}
	if err := s.reputation.SetBlocked(ctx, tenantID, sender, blocked); err != nil {
		return fmt.Errorf("failed to set blocked flag: %w", err)
	}
	action := "unblock"
	if blocked {
		action = "block"
	}
	s.logReputationUpdate(ctx, tenantID, userID, sender, action)
	return nil
}

// SetSenderWhitelisted sets or clears the whitelist flag of a sender
func (s *ScoringService) SetSenderWhitelisted(ctx context.Context, tenantID, userID, email string, whitelisted bool) error {
	sender, err := validateSender(tenantID, email)
	if err != nil {
		return err
	}
	if err := s.reputation.SetWhitelisted(ctx, tenantID, sender, whitelisted); err != nil {
		return fmt.Errorf("failed to set whitelist flag: %w", err)
	}
	action := "unwhitelist"
	if whitelisted {
		action = "whitelist"
	}
	s.logReputationUpdate(ctx, tenantID, userID, sender, action)
	return nil
}

// PurgeSender removes the history of a sender
func (s *ScoringService) PurgeSender(ctx context.Context, tenantID, userID, email string) error {
	sender, err := validateSender(tenantID, email)
	if err != nil {
		return err
	}
	if err := s.reputation.Purge(ctx, tenantID, sender); err != nil {
		return fmt.Errorf("failed to purge sender: %w", err)
	}
	s.logReputationUpdate(ctx, tenantID, userID, sender, "purge")
	return nil
}

// GetDomainReputation aggregates a domain's senders and adds the external
// provider's verdict when available
func (s *ScoringService) GetDomainReputation(ctx context.Context, tenantID, domain string) (*DomainReputation, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidTenant
	}
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, ErrInvalidDomain
	}

	agg, err := s.reputation.DomainReputation(ctx, tenantID, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate domain reputation: %w", err)
	}
	if agg == nil {
		agg = &DomainReputation{TenantID: tenantID, Domain: domain}
	}

	verdict, err := s.checkDomain(ctx, domain)
	if err != nil {
		s.logger.Warn("Domain reputation unavailable, treating as unknown",
			zap.String("domain", domain),
			zap.Error(err))
	} else if verdict != nil {
		agg.IsBlacklisted = verdict.IsBlacklisted
		agg.Label = verdict.Label
	}
	return agg, nil
}

func (s *ScoringService) logReputationUpdate(ctx context.Context, tenantID, userID, sender, action string) {
	_ = s.appendEvent(ctx, s.newEvent(tenantID, EventReputationUpdate, action, SeverityInfo, map[string]any{
		"user_id": userID,
		"sender":  sender,
	}))
	s.logger.Info("Sender reputation updated",
		zap.String("tenant_id", tenantID),
		zap.String("sender", sender),
		zap.String("action", action))
}

func validateSender(tenantID, email string) (string, error) {
	if strings.TrimSpace(tenantID) == "" {
		return "", ErrInvalidTenant
	}
	sender := NormalizeEmail(email)
	if sender == "" || !strings.Contains(sender, "@") {
		return "", fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return sender, nil
}
