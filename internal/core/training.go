package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/metrics"
)

// TrainFeedback applies user corrections to sender reputation and forwards
// the batch to the retrainer. Every label is recorded as a correction of the
// opposite verdict: a not-spam label is a false positive, a spam label a
// false negative.
func (s *ScoringService) TrainFeedback(ctx context.Context, tenantID, userID string, items []LabeledEmail) (*TrainingResult, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidTenant
	}

	trained := make([]LabeledEmail, 0, len(items))
	for _, item := range items {
		sender := NormalizeEmail(item.FromEmail)
		if sender == "" {
			s.logger.Warn("Skipping training item without sender",
				zap.String("tenant_id", tenantID),
				zap.String("item_id", item.ID))
			continue
		}

		score := 0.0
		correction := CorrectionFalsePositive
		if item.IsSpam {
			score = 100
			correction = CorrectionFalseNegative
		}
		if err := s.recordOutcome(ctx, tenantID, sender, item.IsSpam, score); err != nil {
			s.logger.Warn("Failed to record training outcome",
				zap.String("tenant_id", tenantID),
				zap.String("sender", sender),
				zap.Error(err))
			metrics.ReputationFailures.WithLabelValues("record_outcome").Inc()
			continue
		}
		item.FromEmail = sender
		trained = append(trained, item)

		label := "not_spam"
		if item.IsSpam {
			label = "spam"
		}
		_ = s.appendEvent(ctx, s.newEvent(tenantID, EventTraining, label, SeverityInfo, map[string]any{
			"item_id":    item.ID,
			"user_id":    userID,
			"sender":     sender,
			"is_spam":    item.IsSpam,
			"correction": correction,
		}))
	}

	result := &TrainingResult{
		TrainedCount: len(trained),
		ModelVersion: UnknownModelVersion,
	}
	if len(trained) == 0 {
		return result, nil
	}

	version, err := s.dispatchRetrain(ctx, tenantID, trained)
	if err != nil {
		s.logger.Warn("Retraining dispatch failed",
			zap.String("tenant_id", tenantID),
			zap.Int("batch_size", len(trained)),
			zap.Error(err))
		metrics.RetrainDispatch.WithLabelValues("failed").Inc()
		return result, nil
	}
	metrics.RetrainDispatch.WithLabelValues("dispatched").Inc()
	if version != "" {
		result.ModelVersion = version
	}

	s.logger.Info("Training feedback applied",
		zap.String("tenant_id", tenantID),
		zap.String("user_id", userID),
		zap.Int("trained", result.TrainedCount),
		zap.String("model_version", result.ModelVersion))

	return result, nil
}

// dispatchRetrain calls the retrainer within RetrainTimeout
func (s *ScoringService) dispatchRetrain(ctx context.Context, tenantID string, batch []LabeledEmail) (string, error) {
	if s.retrainer == nil {
		return "", fmt.Errorf("no retrainer configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RetrainTimeout)
	defer cancel()

	type outcome struct {
		version string
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("retrainer panic: %v", r)}
			}
		}()
		v, err := s.retrainer.Retrain(ctx, tenantID, batch)
		done <- outcome{version: v, err: err}
	}()

	select {
	case o := <-done:
		return o.version, o.err
	case <-ctx.Done():
		return "", fmt.Errorf("retraining dispatch timed out: %w", ctx.Err())
	}
}
