package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/config"
	"github.com/mikey/mail-threat-engine/internal/core"
	"github.com/mikey/mail-threat-engine/internal/di"
	"github.com/mikey/mail-threat-engine/internal/factory"
	"github.com/mikey/mail-threat-engine/internal/ports"
)

// app holds the global flags shared by every command
type app struct {
	flags  di.CLIFlags
	userID string
}

// engine is what a command gets from the container
type engine struct {
	cfg      *config.Config
	logger   *zap.Logger
	service  *core.ScoringService
	filter   ports.EmailFilter
	tenantID string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "threatctl",
		Short: "Administer the mail threat engine",
		Long: `threatctl scans messages and administers rules, reputation and training
for the mail threat engine.

Every command opens the storage configured under "storage". Point it at the
database of a running engine to administer that engine; the default in-memory
store only lives for one command.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.ConfigFile, "config", "c", "", "Path to config file")
	pf.StringVarP(&a.flags.TenantID, "tenant", "t", "", "Tenant ID (defaults to server.tenant_id)")
	pf.StringVar(&a.userID, "user", defaultUser(), "User ID recorded on audit events")
	pf.BoolVarP(&a.flags.Verbose, "verbose", "v", false, "Enable verbose logging")
	pf.BoolVar(&a.flags.JSONLog, "json-log", false, "Output logs in JSON format")

	root.AddCommand(
		a.scanCmd(),
		a.outboundCmd(),
		a.rulesCmd(),
		a.trainCmd(),
		a.statsCmd(),
		a.reputationCmd(),
	)
	return root
}

// run builds the engine, hands it to fn and releases it afterwards
func (a *app) run(fn func(e *engine) error) error {
	container, err := di.BuildCLIContainer(&a.flags)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(
		cfg *config.Config,
		logger *zap.Logger,
		service *core.ScoringService,
		emailFilter ports.EmailFilter,
		stores *factory.Stores,
		repCache core.ReputationCache,
		eventLog core.EventLog,
	) error {
		defer func() {
			if closer, ok := eventLog.(interface{ Close() error }); ok {
				if err := closer.Close(); err != nil {
					logger.Warn("Failed to close event publisher", zap.Error(err))
				}
			}
			if stopper, ok := repCache.(interface{ Stop() }); ok {
				stopper.Stop()
			}
			if err := stores.Close(); err != nil {
				logger.Warn("Failed to close storage", zap.Error(err))
			}
			_ = logger.Sync()
		}()

		return fn(&engine{
			cfg:      cfg,
			logger:   logger,
			service:  service,
			filter:   emailFilter,
			tenantID: cfg.GetString("server.tenant_id"),
		})
	})
}

func defaultUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "threatctl"
}

// readInput reads the named file, or stdin when the name is empty or "-"
func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "" || name == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
