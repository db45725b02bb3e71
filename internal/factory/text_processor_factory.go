package factory

import (
	"github.com/mikey/mail-threat-engine/internal/adapters/domainrep"
	"github.com/mikey/mail-threat-engine/internal/analysis"
	"github.com/mikey/mail-threat-engine/internal/config"
	"github.com/mikey/mail-threat-engine/internal/utils"
	"github.com/mikey/mail-threat-engine/internal/whitelist"
	"go.uber.org/zap"
)

// TextProcessorFactory creates text processors and the analyzers built on them
type TextProcessorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewTextProcessorFactory creates a new TextProcessorFactory
func NewTextProcessorFactory(cfg *config.Config, logger *zap.Logger) *TextProcessorFactory {
	return &TextProcessorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *TextProcessorFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateSuite creates the lexical analyzer suite from the analysis section
func (f *TextProcessorFactory) CreateSuite(textProcessor *utils.TextProcessor) *analysis.Suite {
	return analysis.NewSuite(f.cfg.GetAnalysis(), textProcessor)
}

// CreateWhitelist creates the trusted domain checker
func (f *TextProcessorFactory) CreateWhitelist() *whitelist.Checker {
	domains := f.cfg.GetReputation().WhitelistedDomains
	if len(domains) > 0 {
		f.logger.Info("Loaded whitelisted domains", zap.Strings("domains", domains))
	}
	return whitelist.NewChecker(domains, f.logger)
}

// CreateDomainProvider creates the blocklisted domain provider
func (f *TextProcessorFactory) CreateDomainProvider() *domainrep.StaticProvider {
	return domainrep.NewStaticProvider(f.cfg.GetReputation().BlocklistedDomains, f.logger)
}
