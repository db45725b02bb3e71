package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/adapters/domainrep"
	"github.com/mikey/mail-threat-engine/internal/adapters/filter"
	"github.com/mikey/mail-threat-engine/internal/analysis"
	"github.com/mikey/mail-threat-engine/internal/config"
	"github.com/mikey/mail-threat-engine/internal/core"
	"github.com/mikey/mail-threat-engine/internal/factory"
	"github.com/mikey/mail-threat-engine/internal/logging"
	"github.com/mikey/mail-threat-engine/internal/ports"
	"github.com/mikey/mail-threat-engine/internal/utils"
	"github.com/mikey/mail-threat-engine/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
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

// provideEngine registers everything from the factories up to the
// scoring service. The container must already provide *config.Config
// and *zap.Logger.
func provideEngine(container *dig.Container) error {
	// Register factories
	constructors := []any{
		factory.NewStoreFactory,
		factory.NewCacheFactory,
		factory.NewEventsFactory,
		factory.NewRetrainFactory,
		factory.NewTextProcessorFactory,
		factory.NewFilterFactory,
	}
	for _, constructor := range constructors {
		if err := container.Provide(constructor); err != nil {
			return err
		}
	}

	// Register text processing and analyzers
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory, tp *utils.TextProcessor) *analysis.Suite {
		return f.CreateSuite(tp)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory) *whitelist.Checker {
		return f.CreateWhitelist()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory) *domainrep.StaticProvider {
		return f.CreateDomainProvider()
	}); err != nil {
		return err
	}

	// Register persistence
	if err := container.Provide(func(f *factory.StoreFactory) (*factory.Stores, error) {
		return f.CreateStores()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.CacheFactory) (core.ReputationCache, error) {
		return f.CreateReputationCache()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.EventsFactory, stores *factory.Stores) (core.EventLog, error) {
		return f.CreateEventLog(stores.Events)
	}); err != nil {
		return err
	}

	// Register retrainer
	if err := container.Provide(func(f *factory.RetrainFactory) (core.Retrainer, error) {
		return f.CreateRetrainer()
	}); err != nil {
		return err
	}

	// Register scoring service
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		stores *factory.Stores,
		cacheFactory *factory.CacheFactory,
		repCache core.ReputationCache,
		eventLog core.EventLog,
		suite *analysis.Suite,
		checker *whitelist.Checker,
		domains *domainrep.StaticProvider,
		retrainer core.Retrainer,
	) *core.ScoringService {
		return core.NewScoringService(
			suite,
			cacheFactory.WrapReputationStore(stores.Reputation, repCache),
			stores.Rules,
			eventLog,
			domains,
			retrainer,
			logger,
			cfg.GetEngine(),
			core.WithWhitelist(checker),
		)
	}); err != nil {
		return err
	}

	// The filters only need the inbound side of the service
	return container.Provide(func(s *core.ScoringService) filter.InboundScanner {
		return s
	})
}
