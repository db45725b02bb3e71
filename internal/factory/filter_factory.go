package factory

import (
	"fmt"

	"github.com/mikey/mail-threat-engine/internal/adapters/filter"
	"github.com/mikey/mail-threat-engine/internal/config"
	"github.com/mikey/mail-threat-engine/internal/ports"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	scanner filter.InboundScanner
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, scanner filter.InboundScanner) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		scanner: scanner,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	server := f.cfg.GetServer()

	switch server.FilterType {
	case "postfix":
		return filter.NewPostfixFilter(f.scanner, f.logger, filter.PostfixConfig{
			ListenAddr:     server.ListenAddress,
			TenantID:       server.TenantID,
			BlockSpam:      server.BlockSpam,
			StatusHeader:   server.StatusHeader,
			ScoreHeader:    server.ScoreHeader,
			ActionsHeader:  server.ActionsHeader,
			PostfixAddr:    server.PostfixAddress,
			PostfixPort:    server.PostfixPort,
			PostfixEnabled: server.PostfixEnabled,
			SubjectPrefix:  server.SubjectPrefix,
			ModifySubject:  server.ModifySubject,
			ScanTimeout:    server.ScanTimeout,
		}), nil
	case "cli":
		return filter.NewCliFilter(
			f.scanner,
			server.TenantID,
			f.logger,
			f.cfg.GetBool("cli.verbose"),
		), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", server.FilterType)
	}
}
