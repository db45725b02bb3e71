package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticRules struct {
	mu    sync.Mutex
	rules []*SpamRule
}

func (r *staticRules) ListRules(context.Context, string) ([]*SpamRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rules, nil
}

func (r *staticRules) ReplaceRules(_ context.Context, _ string, rules []*SpamRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = rules
	return nil
}

func regexOf(t *testing.T, e *RuleEngine, tenantID, ruleID string) any {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, c := range e.compiled[tenantID] {
		if key.ruleID == ruleID {
			require.NoError(t, c.err)
			return c.pattern.(regexPattern).re
		}
	}
	t.Fatalf("rule %s has no compiled pattern", ruleID)
	return nil
}

func TestRuleEngineCompilesOncePerRule(t *testing.T) {
	ctx := context.Background()
	repo := &staticRules{rules: []*SpamRule{
		{ID: "r1", Type: RuleTypeSubject, Pattern: `win\d+`, IsRegex: true, Action: ActionFlag, Priority: 1, IsActive: true},
		{ID: "r2", Type: RuleTypeSubject, Pattern: "([", IsRegex: true, Action: ActionBlock, Priority: 2, IsActive: true},
	}}
	e := NewRuleEngine(repo, zap.NewNop())
	target := RuleTarget{Subject: "you win42 today"}

	matches, err := e.Evaluate(ctx, "t1", target)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	first := regexOf(t, e, "t1", "r1")

	matches, err = e.Evaluate(ctx, "t1", target)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Same(t, first, regexOf(t, e, "t1", "r1"))

	require.NoError(t, repo.ReplaceRules(ctx, "t1", []*SpamRule{
		{ID: "r1", Type: RuleTypeSubject, Pattern: `lose\d+`, IsRegex: true, Action: ActionFlag, Priority: 1, IsActive: true},
	}))
	matches, err = e.Evaluate(ctx, "t1", target)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.NotSame(t, first, regexOf(t, e, "t1", "r1"))

	e.mu.Lock()
	assert.Len(t, e.compiled["t1"], 1, "replaced rules are dropped")
	e.mu.Unlock()

	require.NoError(t, repo.ReplaceRules(ctx, "t1", nil))
	_, err = e.Evaluate(ctx, "t1", target)
	require.NoError(t, err)
	e.mu.Lock()
	assert.NotContains(t, e.compiled, "t1")
	e.mu.Unlock()
}
