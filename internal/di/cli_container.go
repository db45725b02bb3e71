package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/config"
	"github.com/mikey/mail-threat-engine/internal/factory"
	"github.com/mikey/mail-threat-engine/internal/logging"
	"github.com/mikey/mail-threat-engine/internal/ports"
)

// CLIFlags contains the global flags of the administrative CLI
type CLIFlags struct {
	ConfigFile string
	TenantID   string
	Verbose    bool
	JSONLog    bool
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.Load(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Info("Loaded configuration from file", zap.String("file", used))
		}
		applyCLIFlags(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := provideEngine(container); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// applyCLIFlags sets the CLI specific settings over the loaded configuration
func applyCLIFlags(cfg *config.Config, flags *CLIFlags) {
	cfg.Set("server.filter_type", "cli")
	cfg.Set("cli.verbose", flags.Verbose)
	if flags.TenantID != "" {
		cfg.Set("server.tenant_id", flags.TenantID)
	}
}
