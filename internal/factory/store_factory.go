package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/mail-threat-engine/internal/adapters/memory"
	"github.com/mikey/mail-threat-engine/internal/adapters/sqlstore"
	"github.com/mikey/mail-threat-engine/internal/config"
	"github.com/mikey/mail-threat-engine/internal/core"
	"go.uber.org/zap"
)

// Stores bundles the persistence ports of one backend
type Stores struct {
	Reputation core.ReputationStore
	Rules      core.RuleRepository
	Events     core.EventLog

	close func() error
}

// Close releases the backend, if it holds any resources
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// StoreFactory creates persistence backends based on configuration
type StoreFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewStoreFactory creates a new store factory
func NewStoreFactory(cfg *config.Config, logger *zap.Logger) *StoreFactory {
	return &StoreFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateStores creates the reputation store, rule repository and event log
func (f *StoreFactory) CreateStores() (*Stores, error) {
	storage := f.cfg.GetStorage()

	switch storage.Type {
	case "memory":
		return &Stores{
			Reputation: memory.NewReputationStore(),
			Rules:      memory.NewRuleRepository(),
			Events:     memory.NewEventLog(),
		}, nil
	case "sqlite":
		if storage.SQLitePath != ":memory:" {
			// Ensure directory exists
			if err := os.MkdirAll(filepath.Dir(storage.SQLitePath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
			}
		}
		return f.openSQL(sqlstore.DialectSQLite, storage.SQLitePath, storage.MaxOpenConns)
	case "mysql":
		return f.openSQL(sqlstore.DialectMySQL, storage.MySQLDSN, storage.MaxOpenConns)
	case "postgres":
		return f.openSQL(sqlstore.DialectPostgres, storage.PostgresDSN, storage.MaxOpenConns)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storage.Type)
	}
}

func (f *StoreFactory) openSQL(dialect sqlstore.Dialect, dsn string, maxOpenConns int) (*Stores, error) {
	store, err := sqlstore.Open(dialect, dsn, maxOpenConns, f.logger)
	if err != nil {
		return nil, err
	}
	return &Stores{
		Reputation: store,
		Rules:      store,
		Events:     store,
		close:      store.Close,
	}, nil
}
