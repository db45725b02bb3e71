package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mikey/mail-threat-engine/internal/core"
)

// ListRules returns the tenant's rules ordered by priority
func (s *Store) ListRules(ctx context.Context, tenantID string) ([]*core.SpamRule, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, tenant_id, name, rule_type, pattern, is_regex, action, priority, is_active, created_at
		FROM spam_rules
		WHERE tenant_id = ?
		ORDER BY priority ASC, id ASC
	`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []*core.SpamRule
	for rows.Next() {
		var (
			rule      core.SpamRule
			ruleType  string
			action    string
			createdAt int64
		)
		if err := rows.Scan(&rule.ID, &rule.TenantID, &rule.Name, &ruleType, &rule.Pattern,
			&rule.IsRegex, &action, &rule.Priority, &rule.IsActive, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rule.Type = core.RuleType(ruleType)
		rule.Action = core.Action(action)
		rule.CreatedAt = fromMillis(createdAt)
		rules = append(rules, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	return rules, nil
}

// ReplaceRules swaps the tenant's rule set inside one transaction, so a
// concurrent reader sees either the old set or the new one
func (s *Store) ReplaceRules(ctx context.Context, tenantID string, rules []*core.SpamRule) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM spam_rules WHERE tenant_id = ?`), tenantID); err != nil {
			return fmt.Errorf("failed to clear rules: %w", err)
		}

		if len(rules) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, s.rebind(`
			INSERT INTO spam_rules (id, tenant_id, name, rule_type, pattern, is_regex, action, priority, is_active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`))
		if err != nil {
			return fmt.Errorf("failed to prepare rule insert: %w", err)
		}
		defer stmt.Close()

		for _, rule := range rules {
			if _, err := stmt.ExecContext(ctx, rule.ID, tenantID, rule.Name, string(rule.Type), rule.Pattern,
				rule.IsRegex, string(rule.Action), rule.Priority, rule.IsActive, toMillis(rule.CreatedAt)); err != nil {
				return fmt.Errorf("failed to insert rule %q: %w", rule.Name, err)
			}
		}
		return nil
	})
}
