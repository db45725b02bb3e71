package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikey/mail-threat-engine/internal/analysis"
	"github.com/mikey/mail-threat-engine/internal/metrics"
)

const (
	triggerPhrasePoints   = 10
	outboundLinkLimit     = 3
	outboundLinkPoints    = 5
	outboundCapsThreshold = 0.3
	outboundCapsPoints    = 20
	contentRiskThreshold  = 50
)

// ScanOutbound estimates the deliverability of a message before it is sent
func (s *ScoringService) ScanOutbound(ctx context.Context, tenantID string, msg *OutboundMessage) (*OutboundAssessment, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidTenant
	}
	if msg == nil {
		return nil, ErrNoRecipients
	}
	recipients := uniqueRecipients(msg)
	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}
	start := s.now()

	text := s.suite.TextProcessor()
	subject := text.Normalize(msg.Subject)
	body := text.ProcessText(msg.Body, s.cfg.MaxBodyBytes)
	content := subject + "\n" + body

	triggers := s.suite.TriggerPhraseHits(content)
	links := analysis.CountLinks(content)
	caps := analysis.CapsRatio(content)

	contentScore := float64(len(triggers) * triggerPhrasePoints)
	if links > outboundLinkLimit {
		contentScore += float64(outboundLinkPoints * links)
	}
	if caps > outboundCapsThreshold {
		contentScore += outboundCapsPoints
	}
	contentScore = clamp(contentScore, 0, 100)

	suspicious, lookupFailed := s.suspiciousRecipients(ctx, tenantID, recipients)

	res := &OutboundAssessment{
		DeliverabilityScore:  100 - contentScore,
		ContentScore:         contentScore,
		TriggerPhrases:       triggers,
		LinkCount:            links,
		RecipientCount:       len(recipients),
		SuspiciousRecipients: suspicious,
		SuspiciousRatio:      float64(len(suspicious)) / float64(len(recipients)),
		Warnings:             []Warning{},
		Recommendations:      []string{},
	}
	if lookupFailed {
		res.Degraded = append(res.Degraded, DegradedReputation)
	}

	if contentScore > contentRiskThreshold {
		res.Warnings = append(res.Warnings, Warning{
			Type:     WarningContentRisk,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Content score %.0f suggests the message may be filtered as spam", contentScore),
		})
		res.Recommendations = append(res.Recommendations, "Rewrite the message to reduce promotional language")
	}
	if len(triggers) > 0 {
		res.Recommendations = append(res.Recommendations, "Remove spam trigger phrases: "+strings.Join(triggers, ", "))
	}
	if links > outboundLinkLimit {
		res.Recommendations = append(res.Recommendations, fmt.Sprintf("Reduce the number of links (found %d)", links))
	}
	if caps > outboundCapsThreshold {
		res.Recommendations = append(res.Recommendations, "Avoid writing in capital letters")
	}
	if len(msg.To) > s.cfg.OutboundBulkThreshold {
		res.Warnings = append(res.Warnings, Warning{
			Type:     WarningBulkEmail,
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("Message addressed to %d recipients is treated as bulk email", len(msg.To)),
		})
		res.Recommendations = append(res.Recommendations, "Send bulk mail through a mailing list service with unsubscribe support")
	}
	if len(suspicious) > 0 {
		res.Warnings = append(res.Warnings, Warning{
			Type:     WarningSuspiciousRecipients,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d recipients have a poor reputation", len(suspicious)),
		})
		res.Recommendations = append(res.Recommendations, "Review recipients with a poor reputation before sending")
	}

	severity := SeverityInfo
	if len(res.Warnings) > 0 {
		severity = SeverityLow
	}
	if contentScore > contentRiskThreshold || len(suspicious) > 0 {
		severity = SeverityMedium
	}
	event := s.newEvent(tenantID, EventOutboundScan, "assess", severity, map[string]any{
		"recipients":           len(recipients),
		"content_score":        contentScore,
		"deliverability_score": res.DeliverabilityScore,
		"suspicious":           len(suspicious),
		"warnings":             len(res.Warnings),
	})
	if err := s.appendEvent(ctx, event); err != nil {
		res.Degraded = append(res.Degraded, DegradedEventLog)
	}

	verdict := "clean"
	if len(res.Warnings) > 0 {
		verdict = "risky"
	}
	metrics.ScansTotal.WithLabelValues("outbound", verdict).Inc()
	metrics.ScanDuration.WithLabelValues("outbound").Observe(s.now().Sub(start).Seconds())

	s.logger.Info("Outbound scan completed",
		zap.String("tenant_id", tenantID),
		zap.Int("recipients", len(recipients)),
		zap.Float64("content_score", contentScore),
		zap.Int("suspicious_recipients", len(suspicious)))

	return res, nil
}

// suspiciousRecipients looks up recipient reputations with bounded
// concurrency. Failed lookups count as clean.
func (s *ScoringService) suspiciousRecipients(ctx context.Context, tenantID string, recipients []string) ([]string, bool) {
	var (
		mu         sync.Mutex
		suspicious []string
		failed     bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.RecipientLookupConcurrency)
	for _, r := range recipients {
		r := r
		g.Go(func() error {
			rep, err := s.lookupReputation(gctx, tenantID, r)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = true
				s.logger.Warn("Recipient reputation lookup failed",
					zap.String("recipient", r),
					zap.Error(err))
				metrics.ReputationFailures.WithLabelValues("get").Inc()
				return nil
			}
			if rep.Score() > suspiciousRecipientScore {
				suspicious = append(suspicious, r)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(suspicious)
	return suspicious, failed
}

func uniqueRecipients(msg *OutboundMessage) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range [][]string{msg.To, msg.CC, msg.BCC} {
		for _, r := range list {
			addr := NormalizeEmail(r)
			if addr == "" || seen[addr] {
				continue
			}
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out
}
