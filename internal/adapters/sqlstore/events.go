package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/core"
)

// Append stores an event with its details as JSON
func (s *Store) Append(ctx context.Context, event *core.SecurityEvent) error {
	var details []byte
	if len(event.Details) > 0 {
		var err error
		details, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("failed to encode event details: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO security_events (id, tenant_id, event_type, kind, action, severity, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), event.ID, event.TenantID, event.EventType, event.Type, event.Action, event.Severity,
		string(details), toMillis(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Query returns the matching events oldest first
func (s *Store) Query(ctx context.Context, q core.EventQuery) ([]*core.SecurityEvent, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT id, tenant_id, event_type, kind, action, severity, details, created_at
		FROM security_events
		WHERE tenant_id = ?`)
	args := []any{q.TenantID}

	if !q.Since.IsZero() {
		b.WriteString(` AND created_at >= ?`)
		args = append(args, toMillis(q.Since))
	}
	if !q.Until.IsZero() {
		b.WriteString(` AND created_at <= ?`)
		args = append(args, toMillis(q.Until))
	}
	if len(q.Types) > 0 {
		b.WriteString(` AND kind IN (?` + strings.Repeat(`, ?`, len(q.Types)-1) + `)`)
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	b.WriteString(` ORDER BY created_at ASC, id ASC`)

	rows, err := s.db.QueryContext(ctx, s.rebind(b.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*core.SecurityEvent
	for rows.Next() {
		var (
			event     core.SecurityEvent
			details   *string
			createdAt int64
		)
		if err := rows.Scan(&event.ID, &event.TenantID, &event.EventType, &event.Type, &event.Action,
			&event.Severity, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if details != nil && *details != "" {
			if err := json.Unmarshal([]byte(*details), &event.Details); err != nil {
				s.logger.Warn("Dropping undecodable event details",
					zap.String("event_id", event.ID),
					zap.Error(err))
			}
		}
		event.CreatedAt = fromMillis(createdAt)
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	return events, nil
}
