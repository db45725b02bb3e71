package factory

import (
	"fmt"

	"github.com/mikey/mail-threat-engine/internal/adapters/retrain"
	"github.com/mikey/mail-threat-engine/internal/config"
	"github.com/mikey/mail-threat-engine/internal/core"
	"github.com/mikey/mail-threat-engine/internal/utils"
	"go.uber.org/zap"
)

// RetrainFactory creates retrainers based on configuration
type RetrainFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewRetrainFactory creates a new retrain factory
func NewRetrainFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *RetrainFactory {
	return &RetrainFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateRetrainer creates a retrainer based on the configuration
func (f *RetrainFactory) CreateRetrainer() (core.Retrainer, error) {
	retrainCfg := f.cfg.GetRetrain()

	switch retrainCfg.Provider {
	case "log":
		return retrain.NewLogRetrainer(f.logger), nil
	case "openai":
		if retrainCfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required for the openai retrain provider")
		}
		return retrain.NewOpenAIRetrainer(retrain.OpenAIConfig{
			APIKey:      retrainCfg.OpenAIAPIKey,
			BaseURL:     retrainCfg.OpenAIBaseURL,
			BaseModel:   retrainCfg.OpenAIBaseModel,
			Suffix:      retrainCfg.OpenAISuffix,
			MaxBodySize: retrainCfg.OpenAIMaxBodySize,
		}, f.textProcessor, f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported retrain provider: %s", retrainCfg.Provider)
	}
}
