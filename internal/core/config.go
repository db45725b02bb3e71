package core

import (
	"time"
)

// EngineConfig holds the thresholds and limits of the scoring service
type EngineConfig struct {
	SpamThreshold              float64
	BlockThreshold             float64
	QuarantineThreshold        float64
	FlagThreshold              float64
	SubjectWarningThreshold    float64
	StableHistoryEmails        uint64
	DomainLookupEnabled        bool
	DomainLookupTimeout        time.Duration
	RetrainTimeout             time.Duration
	PersistenceRetryInterval   time.Duration
	RecipientLookupConcurrency int
	StatisticsTopSenders       int
	MaxBodyBytes               int
	OutboundBulkThreshold      int
}

// DefaultEngineConfig returns the default engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SpamThreshold:              70,
		BlockThreshold:             80,
		QuarantineThreshold:        60,
		FlagThreshold:              40,
		SubjectWarningThreshold:    50,
		StableHistoryEmails:        10,
		DomainLookupEnabled:        true,
		DomainLookupTimeout:        2 * time.Second,
		RetrainTimeout:             10 * time.Second,
		PersistenceRetryInterval:   100 * time.Millisecond,
		RecipientLookupConcurrency: 8,
		StatisticsTopSenders:       10,
		MaxBodyBytes:               256 * 1024,
		OutboundBulkThreshold:      50,
	}
}

// withDefaults fills zero-valued limits. Thresholds of zero are kept since
// they are meaningful, except when the whole threshold set is unset.
func (c EngineConfig) withDefaults() EngineConfig {
	def := DefaultEngineConfig()
	if c.SpamThreshold == 0 && c.BlockThreshold == 0 && c.QuarantineThreshold == 0 && c.FlagThreshold == 0 {
		c.SpamThreshold = def.SpamThreshold
		c.BlockThreshold = def.BlockThreshold
		c.QuarantineThreshold = def.QuarantineThreshold
		c.FlagThreshold = def.FlagThreshold
		c.SubjectWarningThreshold = def.SubjectWarningThreshold
	}
	if c.DomainLookupTimeout <= 0 {
		c.DomainLookupTimeout = def.DomainLookupTimeout
	}
	if c.RetrainTimeout <= 0 {
		c.RetrainTimeout = def.RetrainTimeout
	}
	if c.PersistenceRetryInterval <= 0 {
		c.PersistenceRetryInterval = def.PersistenceRetryInterval
	}
	if c.RecipientLookupConcurrency <= 0 {
		c.RecipientLookupConcurrency = def.RecipientLookupConcurrency
	}
	if c.StatisticsTopSenders <= 0 {
		c.StatisticsTopSenders = def.StatisticsTopSenders
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = def.MaxBodyBytes
	}
	if c.OutboundBulkThreshold <= 0 {
		c.OutboundBulkThreshold = def.OutboundBulkThreshold
	}
	return c
}
