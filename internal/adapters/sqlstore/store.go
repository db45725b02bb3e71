// Package sqlstore implements the reputation, rule and event ports on
// database/sql for SQLite, MySQL and PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Dialect selects the SQL flavour of the backing database
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() (string, error) {
	switch d {
	case DialectSQLite:
		return "sqlite3", nil
	case DialectMySQL:
		return "mysql", nil
	case DialectPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported SQL dialect: %s", d)
	}
}

// Store is a SQL-backed ReputationStore, RuleRepository and EventLog
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
	now     func() time.Time
}

// Open connects to the database and creates the schema if needed
func Open(dialect Dialect, dsn string, maxOpenConns int, logger *zap.Logger) (*Store, error) {
	driver, err := dialect.driverName()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	// SQLite serializes writers anyway, and an in-memory database only
	// exists on its own connection
	if dialect == DialectSQLite {
		maxOpenConns = 1
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}

	store := New(db, dialect, logger)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store.logger.Info("SQL store ready", zap.String("dialect", string(dialect)))
	return store, nil
}

// New wraps an open database without touching the schema
func New(db *sql.DB, dialect Dialect, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:      db,
		dialect: dialect,
		logger:  logger,
		now:     time.Now,
	}
}

// Migrate creates the tables and indexes that do not exist yet
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema(s.dialect) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders into the dialect's form
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// withTx runs fn in a transaction, committing only if fn succeeds
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("failed to commit transaction: %w", err)
		}
	}()
	return fn(tx)
}

// Times are stored as Unix milliseconds with 0 meaning unset
func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
