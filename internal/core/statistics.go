package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/metrics"
)

const defaultLookbackDays = 7

// GetStatistics rolls up the tenant's scan decisions over the last
// lookbackDays days. A non-positive lookback uses the default of 7 days.
func (s *ScoringService) GetStatistics(ctx context.Context, tenantID string, lookbackDays int) (*Statistics, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidTenant
	}
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}

	end := s.now().UTC()
	start := end.Add(-time.Duration(lookbackDays) * 24 * time.Hour)

	var events []*SecurityEvent
	if s.events != nil {
		var err error
		events, err = s.events.Query(ctx, EventQuery{
			TenantID: tenantID,
			Types:    []string{EventInboundScan, EventTraining},
			Since:    start,
			Until:    end,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to query security events: %w", err)
		}
	}

	stats := &Statistics{
		TenantID:     tenantID,
		PeriodStart:  start,
		PeriodEnd:    end,
		LookbackDays: lookbackDays,
		TopSenders:   []*SenderReputation{},
	}
	for _, e := range events {
		switch e.Type {
		case EventInboundScan:
			stats.Scanned++
			switch Action(e.Action) {
			case ActionBlock:
				stats.Blocked++
			case ActionQuarantine:
				stats.Quarantined++
			case ActionFlag:
				stats.Flagged++
			}
		case EventTraining:
			switch e.Details["correction"] {
			case CorrectionFalsePositive:
				stats.FalsePositives++
			case CorrectionFalseNegative:
				stats.FalseNegatives++
			}
		}
	}

	stats.Accuracy = 100
	if stats.Scanned > 0 {
		correct := float64(stats.Scanned - stats.FalsePositives - stats.FalseNegatives)
		stats.Accuracy = clamp(correct/float64(stats.Scanned)*100, 0, 100)
		stats.BlockRate = float64(stats.Blocked) / float64(stats.Scanned) * 100
	}

	top, err := s.reputation.TopSpamSenders(ctx, tenantID, start, s.cfg.StatisticsTopSenders)
	if err != nil {
		s.logger.Warn("Failed to load top spam senders",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		metrics.ReputationFailures.WithLabelValues("top_senders").Inc()
	} else if top != nil {
		stats.TopSenders = top
	}

	return stats, nil
}
