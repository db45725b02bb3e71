package memory

import (
	"context"
	"sync"

	"github.com/mikey/mail-threat-engine/internal/core"
)

// RuleRepository is an in-memory core.RuleRepository. A replacement swaps
// the tenant's slice under the lock, so readers see the old or new set whole.
type RuleRepository struct {
	mu    sync.RWMutex
	rules map[string][]*core.SpamRule
}

// NewRuleRepository creates a new in-memory rule repository
func NewRuleRepository() *RuleRepository {
	return &RuleRepository{
		rules: make(map[string][]*core.SpamRule),
	}
}

// ListRules returns copies of the tenant's rules
func (r *RuleRepository) ListRules(_ context.Context, tenantID string) ([]*core.SpamRule, error) {
	r.mu.RLock()
	current := r.rules[tenantID]
	r.mu.RUnlock()

	return copyRules(current), nil
}

// ReplaceRules swaps the tenant's rule set
func (r *RuleRepository) ReplaceRules(_ context.Context, tenantID string, rules []*core.SpamRule) error {
	next := copyRules(rules)

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(next) == 0 {
		delete(r.rules, tenantID)
		return nil
	}
	r.rules[tenantID] = next
	return nil
}

func copyRules(in []*core.SpamRule) []*core.SpamRule {
	out := make([]*core.SpamRule, len(in))
	for i, rule := range in {
		c := *rule
		out[i] = &c
	}
	return out
}
