package core

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/metrics"
)

// PatternKind distinguishes literal from regular-expression rule patterns
type PatternKind int

const (
	PatternLiteral PatternKind = iota
	PatternRegex
)

// Pattern is a compiled rule pattern
type Pattern interface {
	Kind() PatternKind
	Match(text string) bool
	String() string
}

type literalPattern struct {
	raw   string
	lower string
}

func (p literalPattern) Kind() PatternKind { return PatternLiteral }
func (p literalPattern) String() string   { return p.raw }

// Match is a case-insensitive substring test
func (p literalPattern) Match(text string) bool {
	return strings.Contains(strings.ToLower(text), p.lower)
}

type regexPattern struct {
	re *regexp.Regexp
}

func (p regexPattern) Kind() PatternKind      { return PatternRegex }
func (p regexPattern) String() string         { return p.re.String() }
func (p regexPattern) Match(text string) bool { return p.re.MatchString(text) }

// CompilePattern builds the pattern of a rule
func CompilePattern(raw string, isRegex bool) (Pattern, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	if !isRegex {
		return literalPattern{raw: raw, lower: strings.ToLower(raw)}, nil
	}
	re, err := regexp.Compile(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern %q: %w", raw, err)
	}
	return regexPattern{re: re}, nil
}

// RuleTarget is the message text each rule type is matched against
type RuleTarget struct {
	Sender  string
	Subject string
	Content string
	Headers string
}

// NewRuleTarget prepares the match targets of an email
func NewRuleTarget(email *Email) RuleTarget {
	return RuleTarget{
		Sender:  NormalizeEmail(email.FromEmail),
		Subject: email.Subject,
		Content: email.Body,
		Headers: SerializeHeaders(email.Headers),
	}
}

// SerializeHeaders renders headers as sorted "Key: Value" lines
func SerializeHeaders(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(headers[k])
		b.WriteString("\n")
	}
	return b.String()
}

func (t RuleTarget) text(rt RuleType) (string, bool) {
	switch rt {
	case RuleTypeSender:
		return t.Sender, true
	case RuleTypeSubject:
		return t.Subject, true
	case RuleTypeContent:
		return t.Content, true
	case RuleTypeHeader:
		return t.Headers, true
	}
	return "", false
}

// patternKey identifies a compiled pattern. A rule whose pattern changes
// gets a new key even when its ID is reused.
type patternKey struct {
	ruleID  string
	pattern string
	isRegex bool
}

type compiledPattern struct {
	pattern Pattern
	err     error
}

// RuleEngine evaluates tenant rule sets. Patterns are compiled once per
// rule and kept for as long as the rule stays in the tenant's set.
type RuleEngine struct {
	repo   RuleRepository
	logger *zap.Logger

	mu       sync.Mutex
	compiled map[string]map[patternKey]compiledPattern
}

// NewRuleEngine creates a new rule engine
func NewRuleEngine(repo RuleRepository, logger *zap.Logger) *RuleEngine {
	return &RuleEngine{
		repo:     repo,
		logger:   logger,
		compiled: make(map[string]map[patternKey]compiledPattern),
	}
}

// patterns returns the compiled patterns of a rule snapshot, compiling only
// rules not seen in the tenant's previous snapshot. Returned maps are never
// written again.
func (e *RuleEngine) patterns(tenantID string, rules []*SpamRule) map[patternKey]compiledPattern {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.compiled[tenantID]
	next := make(map[patternKey]compiledPattern, len(rules))
	reused := 0
	for _, rule := range rules {
		key := patternKey{ruleID: rule.ID, pattern: rule.Pattern, isRegex: rule.IsRegex}
		if c, ok := prev[key]; ok {
			next[key] = c
			reused++
			continue
		}
		p, err := CompilePattern(rule.Pattern, rule.IsRegex)
		next[key] = compiledPattern{pattern: p, err: err}
	}
	if reused == len(next) && len(next) == len(prev) {
		return prev
	}
	if len(next) == 0 {
		delete(e.compiled, tenantID)
	} else {
		e.compiled[tenantID] = next
	}
	return next
}

// Evaluate matches the tenant's active rules in ascending priority. The
// first match of each action class contributes; classes do not suppress
// each other. Rules that cannot be compiled are skipped.
func (e *RuleEngine) Evaluate(ctx context.Context, tenantID string, target RuleTarget) ([]RuleMatch, error) {
	rules, err := e.repo.ListRules(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return e.evaluate(tenantID, rules, target), nil
}

func (e *RuleEngine) evaluate(tenantID string, rules []*SpamRule, target RuleTarget) []RuleMatch {
	ordered := make([]*SpamRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	compiled := e.patterns(tenantID, ordered)
	var matches []RuleMatch
	seen := make(map[Action]bool, 3)
	for _, rule := range ordered {
		if !rule.IsActive || seen[rule.Action] {
			continue
		}
		text, ok := target.text(rule.Type)
		if !ok || !rule.Action.IsRuleAction() {
			e.logger.Warn("Skipping rule with unknown type or action",
				zap.String("tenant_id", tenantID),
				zap.String("rule_id", rule.ID),
				zap.String("type", string(rule.Type)),
				zap.String("action", string(rule.Action)))
			metrics.RulesSkipped.Inc()
			continue
		}
		c := compiled[patternKey{ruleID: rule.ID, pattern: rule.Pattern, isRegex: rule.IsRegex}]
		if c.err != nil {
			e.logger.Warn("Skipping rule with invalid pattern",
				zap.String("tenant_id", tenantID),
				zap.String("rule_id", rule.ID),
				zap.String("rule", rule.Name),
				zap.Error(c.err))
			metrics.RulesSkipped.Inc()
			continue
		}
		if !c.pattern.Match(text) {
			continue
		}
		seen[rule.Action] = true
		matches = append(matches, RuleMatch{
			RuleID:   rule.ID,
			Name:     rule.Name,
			Type:     rule.Type,
			Action:   rule.Action,
			Priority: rule.Priority,
		})
	}
	return matches
}

// ValidateRuleSpecs checks a rule set before it replaces the current one.
// Priorities must be unique since they order the tenant's rules.
func ValidateRuleSpecs(specs []RuleSpec) error {
	priorities := make(map[int]string, len(specs))
	for i, spec := range specs {
		if strings.TrimSpace(spec.Name) == "" {
			return fmt.Errorf("%w: rule %d has no name", ErrInvalidRule, i)
		}
		if !spec.Type.IsValid() {
			return fmt.Errorf("%w: rule %q has unknown type %q", ErrInvalidRule, spec.Name, spec.Type)
		}
		if !spec.Action.IsRuleAction() {
			return fmt.Errorf("%w: rule %q has unknown action %q", ErrInvalidRule, spec.Name, spec.Action)
		}
		if _, err := CompilePattern(spec.Pattern, spec.IsRegex); err != nil {
			return fmt.Errorf("%w: rule %q: %v", ErrInvalidRule, spec.Name, err)
		}
		if other, dup := priorities[spec.Priority]; dup {
			return fmt.Errorf("%w: rules %q and %q share priority %d", ErrInvalidRule, other, spec.Name, spec.Priority)
		}
		priorities[spec.Priority] = spec.Name
	}
	return nil
}
