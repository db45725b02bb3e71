package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mikey/mail-threat-engine/internal/core"
)

const reputationColumns = `tenant_id, email, domain, total_emails, spam_emails, last_score, is_blocked, is_whitelisted, last_seen`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReputation(row rowScanner) (*core.SenderReputation, error) {
	var (
		rep      core.SenderReputation
		total    int64
		spam     int64
		lastSeen int64
	)
	if err := row.Scan(&rep.TenantID, &rep.Email, &rep.Domain, &total, &spam,
		&rep.LastScore, &rep.IsBlocked, &rep.IsWhitelisted, &lastSeen); err != nil {
		return nil, err
	}
	rep.TotalEmails = uint64(total)
	rep.SpamEmails = uint64(spam)
	rep.LastSeen = fromMillis(lastSeen)
	return &rep, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getReputation(ctx context.Context, q querier, tenantID, email string) (*core.SenderReputation, error) {
	email = core.NormalizeEmail(email)
	row := q.QueryRowContext(ctx, s.rebind(`
		SELECT `+reputationColumns+`
		FROM sender_reputation
		WHERE tenant_id = ? AND email = ?
	`), tenantID, email)

	rep, err := scanReputation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewSenderReputation(tenantID, email), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sender reputation: %w", err)
	}
	return rep, nil
}

// Get returns the record of a sender, or a zero-history record if unseen
func (s *Store) Get(ctx context.Context, tenantID, email string) (*core.SenderReputation, error) {
	return s.getReputation(ctx, s.db, tenantID, email)
}

// RecordOutcome increments the counters in a single upsert statement, so
// concurrent outcomes for one sender are never lost
func (s *Store) RecordOutcome(ctx context.Context, tenantID, email string, isSpam bool, score float64) (*core.SenderReputation, error) {
	email = core.NormalizeEmail(email)
	var spam int64
	if isSpam {
		spam = 1
	}

	var query string
	if s.dialect == DialectMySQL {
		query = `
			INSERT INTO sender_reputation (tenant_id, email, domain, total_emails, spam_emails, last_score, last_seen)
			VALUES (?, ?, ?, 1, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				total_emails = total_emails + 1,
				spam_emails = spam_emails + VALUES(spam_emails),
				last_score = VALUES(last_score),
				last_seen = VALUES(last_seen)
		`
	} else {
		query = `
			INSERT INTO sender_reputation (tenant_id, email, domain, total_emails, spam_emails, last_score, last_seen)
			VALUES (?, ?, ?, 1, ?, ?, ?)
			ON CONFLICT (tenant_id, email) DO UPDATE SET
				total_emails = sender_reputation.total_emails + 1,
				spam_emails = sender_reputation.spam_emails + excluded.spam_emails,
				last_score = excluded.last_score,
				last_seen = excluded.last_seen
		`
	}

	var rep *core.SenderReputation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(query),
			tenantID, email, core.DomainOf(email), spam, score, toMillis(s.now())); err != nil {
			return fmt.Errorf("failed to record outcome: %w", err)
		}
		var err error
		rep, err = s.getReputation(ctx, tx, tenantID, email)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// SetBlocked sets the block flag
func (s *Store) SetBlocked(ctx context.Context, tenantID, email string, blocked bool) error {
	return s.setFlag(ctx, "is_blocked", tenantID, email, blocked)
}

// SetWhitelisted sets the whitelist flag
func (s *Store) SetWhitelisted(ctx context.Context, tenantID, email string, whitelisted bool) error {
	return s.setFlag(ctx, "is_whitelisted", tenantID, email, whitelisted)
}

// setFlag upserts one boolean column. column is always a constant.
func (s *Store) setFlag(ctx context.Context, column, tenantID, email string, value bool) error {
	email = core.NormalizeEmail(email)

	var query string
	if s.dialect == DialectMySQL {
		query = fmt.Sprintf(`
			INSERT INTO sender_reputation (tenant_id, email, domain, %[1]s)
			VALUES (?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE %[1]s = VALUES(%[1]s)
		`, column)
	} else {
		query = fmt.Sprintf(`
			INSERT INTO sender_reputation (tenant_id, email, domain, %[1]s)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (tenant_id, email) DO UPDATE SET %[1]s = excluded.%[1]s
		`, column)
	}

	if _, err := s.db.ExecContext(ctx, s.rebind(query), tenantID, email, core.DomainOf(email), value); err != nil {
		return fmt.Errorf("failed to update %s: %w", column, err)
	}
	return nil
}

// TopSpamSenders returns senders seen since the given time with at least one
// spam message, most spam first
func (s *Store) TopSpamSenders(ctx context.Context, tenantID string, since time.Time, limit int) ([]*core.SenderReputation, error) {
	query := `
		SELECT ` + reputationColumns + `
		FROM sender_reputation
		WHERE tenant_id = ? AND spam_emails > 0 AND last_seen >= ?
		ORDER BY spam_emails DESC, email ASC
	`
	args := []any{tenantID, toMillis(since)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top spam senders: %w", err)
	}
	defer rows.Close()

	var out []*core.SenderReputation
	for rows.Next() {
		rep, err := scanReputation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sender reputation: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read top spam senders: %w", err)
	}
	return out, nil
}

// DomainReputation aggregates the tenant's senders of a domain
func (s *Store) DomainReputation(ctx context.Context, tenantID, domain string) (*core.DomainReputation, error) {
	var (
		blocked  int64
		total    int64
		spam     int64
		lastSeen int64
	)
	agg := &core.DomainReputation{TenantID: tenantID, Domain: domain}

	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN is_blocked THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(total_emails), 0),
			COALESCE(SUM(spam_emails), 0),
			COALESCE(MAX(last_seen), 0)
		FROM sender_reputation
		WHERE tenant_id = ? AND domain = ?
	`), tenantID, domain).Scan(&agg.Senders, &blocked, &total, &spam, &lastSeen)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate domain reputation: %w", err)
	}

	agg.BlockedSenders = int(blocked)
	agg.TotalEmails = uint64(total)
	agg.SpamEmails = uint64(spam)
	agg.LastSeen = fromMillis(lastSeen)
	return agg, nil
}

// Purge removes a sender's record
func (s *Store) Purge(ctx context.Context, tenantID, email string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		DELETE FROM sender_reputation
		WHERE tenant_id = ? AND email = ?
	`), tenantID, core.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("failed to purge sender: %w", err)
	}
	return nil
}
