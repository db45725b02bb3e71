// Package retrain holds the Retrainer implementations that receive labeled
// feedback batches.
package retrain

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/core"
)

// LogRetrainer records batches in the log and reports a local heuristic
// model version. It is used when no external trainer is configured.
type LogRetrainer struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewLogRetrainer creates a new LogRetrainer
func NewLogRetrainer(logger *zap.Logger) *LogRetrainer {
	return &LogRetrainer{
		logger: logger,
		now:    time.Now,
	}
}

// Retrain logs the batch composition and returns the version
func (r *LogRetrainer) Retrain(ctx context.Context, tenantID string, batch []core.LabeledEmail) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	spam := 0
	for _, item := range batch {
		if item.IsSpam {
			spam++
		}
	}

	version := "heuristic-" + r.now().UTC().Format("20060102T150405Z")
	r.logger.Info("Received training batch",
		zap.String("tenant_id", tenantID),
		zap.Int("items", len(batch)),
		zap.Int("spam", spam),
		zap.String("model_version", version))
	return version, nil
}
