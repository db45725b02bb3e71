package core

import (
	"context"
	"time"
)

// ReputationStore is the system of record for sender reputation
type ReputationStore interface {
	// Get returns the record of a sender, or a zero-history record if unseen
	Get(ctx context.Context, tenantID, email string) (*SenderReputation, error)

	// RecordOutcome atomically counts one message from the sender and
	// returns the updated record
	RecordOutcome(ctx context.Context, tenantID, email string, isSpam bool, score float64) (*SenderReputation, error)

	// SetBlocked sets the administrative block flag, creating the record if needed
	SetBlocked(ctx context.Context, tenantID, email string, blocked bool) error

	// SetWhitelisted sets the whitelist flag, creating the record if needed
	SetWhitelisted(ctx context.Context, tenantID, email string, whitelisted bool) error

	// TopSpamSenders returns senders seen since the given time ordered by
	// spam count descending
	TopSpamSenders(ctx context.Context, tenantID string, since time.Time, limit int) ([]*SenderReputation, error)

	// DomainReputation aggregates the records of one domain
	DomainReputation(ctx context.Context, tenantID, domain string) (*DomainReputation, error)

	// Purge removes the record of a sender
	Purge(ctx context.Context, tenantID, email string) error
}

// ReputationCache is a disposable view in front of a ReputationStore
type ReputationCache interface {
	// Get returns ErrCacheMiss when no live entry exists
	Get(ctx context.Context, tenantID, email string) (*SenderReputation, error)
	Set(ctx context.Context, rep *SenderReputation) error
	Delete(ctx context.Context, tenantID, email string) error
}

// RuleRepository stores tenant rule sets
type RuleRepository interface {
	// ListRules returns a consistent snapshot of the tenant's rules
	ListRules(ctx context.Context, tenantID string) ([]*SpamRule, error)

	// ReplaceRules swaps the tenant's whole rule set in one step
	ReplaceRules(ctx context.Context, tenantID string, rules []*SpamRule) error
}

// EventLog is the append-only security event log
type EventLog interface {
	Append(ctx context.Context, event *SecurityEvent) error
	Query(ctx context.Context, q EventQuery) ([]*SecurityEvent, error)
}

// DomainReputationProvider is an external domain reputation signal
type DomainReputationProvider interface {
	CheckDomain(ctx context.Context, domain string) (*DomainVerdict, error)
}

// Retrainer dispatches labeled batches to an external retraining capability
type Retrainer interface {
	// Retrain returns the resulting model version
	Retrain(ctx context.Context, tenantID string, batch []LabeledEmail) (string, error)
}

// ContentAnalyzer contributes one sub-score to an inbound scan
type ContentAnalyzer interface {
	Name() string
	Analyze(ctx context.Context, email *Email) (float64, error)
}

// DomainWhitelist reports trusted sender addresses
type DomainWhitelist interface {
	IsWhitelisted(from string) bool
}
