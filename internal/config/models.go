package config

import (
	"time"

	"github.com/mikey/mail-threat-engine/internal/analysis"
	"github.com/mikey/mail-threat-engine/internal/core"
)

// ServerConfig represents the SMTP filter configuration
type ServerConfig struct {
	FilterType     string
	ListenAddress  string
	TenantID       string
	BlockSpam      bool
	StatusHeader   string
	ScoreHeader    string
	ActionsHeader  string
	PostfixAddress string
	PostfixPort    int
	PostfixEnabled bool
	SubjectPrefix  string
	ModifySubject  bool
	ScanTimeout    time.Duration
	MetricsAddress string
}

// ReputationConfig represents the trusted and blocklisted domains
type ReputationConfig struct {
	WhitelistedDomains []string
	BlocklistedDomains map[string]string
}

// StorageConfig represents the persistence backend configuration
type StorageConfig struct {
	Type         string
	SQLitePath   string
	MySQLDSN     string
	PostgresDSN  string
	MaxOpenConns int
}

// CacheConfig represents the reputation cache configuration
type CacheConfig struct {
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	RedisURL         string
	KeyPrefix        string
}

// KafkaConfig represents the event streaming configuration
type KafkaConfig struct {
	Enabled        bool
	Brokers        []string
	Topic          string
	PublishTimeout time.Duration
}

// RetrainConfig represents the retraining provider configuration
type RetrainConfig struct {
	Provider          string
	OpenAIAPIKey      string
	OpenAIBaseModel   string
	OpenAIBaseURL     string
	OpenAISuffix      string
	OpenAIMaxBodySize int
}

// LoggingConfig represents the logger configuration
type LoggingConfig struct {
	Level      string
	Format     string
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// GetServer returns the server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:     c.GetString("server.filter_type"),
		ListenAddress:  c.GetString("server.listen_address"),
		TenantID:       c.GetString("server.tenant_id"),
		BlockSpam:      c.GetBool("server.block_spam"),
		StatusHeader:   c.GetString("server.headers.spam"),
		ScoreHeader:    c.GetString("server.headers.score"),
		ActionsHeader:  c.GetString("server.headers.actions"),
		PostfixAddress: c.GetString("server.postfix.address"),
		PostfixPort:    c.GetInt("server.postfix.port"),
		PostfixEnabled: c.GetBool("server.postfix.enabled"),
		SubjectPrefix:  c.GetString("server.subject_prefix"),
		ModifySubject:  c.GetBool("server.modify_subject"),
		ScanTimeout:    c.durationOr("server.scan_timeout", 10*time.Second),
		MetricsAddress: c.GetString("server.metrics_address"),
	}
}

// GetEngine returns the scoring engine configuration
func (c *Config) GetEngine() core.EngineConfig {
	def := core.DefaultEngineConfig()
	return core.EngineConfig{
		SpamThreshold:              c.GetFloat64("engine.spam_threshold"),
		BlockThreshold:             c.GetFloat64("engine.block_threshold"),
		QuarantineThreshold:        c.GetFloat64("engine.quarantine_threshold"),
		FlagThreshold:              c.GetFloat64("engine.flag_threshold"),
		SubjectWarningThreshold:    c.GetFloat64("engine.subject_warning_threshold"),
		StableHistoryEmails:        uint64(c.GetInt("engine.stable_history_emails")),
		DomainLookupEnabled:        c.GetBool("engine.domain_lookup_enabled"),
		DomainLookupTimeout:        c.durationOr("engine.domain_lookup_timeout", def.DomainLookupTimeout),
		RetrainTimeout:             c.durationOr("engine.retrain_timeout", def.RetrainTimeout),
		PersistenceRetryInterval:   c.durationOr("engine.persistence_retry_interval", def.PersistenceRetryInterval),
		RecipientLookupConcurrency: c.GetInt("engine.recipient_lookup_concurrency"),
		StatisticsTopSenders:       c.GetInt("engine.statistics_top_senders"),
		MaxBodyBytes:               c.GetInt("engine.max_body_bytes"),
		OutboundBulkThreshold:      c.GetInt("engine.outbound_bulk_threshold"),
	}
}

// GetAnalysis returns the lexical analyzer configuration
func (c *Config) GetAnalysis() analysis.Config {
	return analysis.Config{
		SubjectKeywords:       c.GetStringSlice("analysis.subject_keywords"),
		UrgencyPhrases:        c.GetStringSlice("analysis.urgency_phrases"),
		URLShorteners:         c.GetStringSlice("analysis.url_shorteners"),
		BrandKeywords:         c.GetStringSlice("analysis.brand_keywords"),
		CapsRatioThreshold:    c.GetFloat64("analysis.caps_ratio_threshold"),
		SpamminessThreshold:   c.GetInt("analysis.spamminess_threshold"),
		LanguageMinConfidence: c.GetFloat64("analysis.language_min_confidence"),
	}
}

// GetReputation returns the domain list configuration
func (c *Config) GetReputation() ReputationConfig {
	return ReputationConfig{
		WhitelistedDomains: c.GetStringSlice("reputation.whitelisted_domains"),
		BlocklistedDomains: c.GetStringMapString("reputation.blocklisted_domains"),
	}
}

// GetStorage returns the storage configuration
func (c *Config) GetStorage() StorageConfig {
	return StorageConfig{
		Type:         c.GetString("storage.type"),
		SQLitePath:   c.GetString("storage.sqlite_path"),
		MySQLDSN:     c.GetString("storage.mysql_dsn"),
		PostgresDSN:  c.GetString("storage.postgres_dsn"),
		MaxOpenConns: c.GetInt("storage.max_open_conns"),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Type:             c.GetString("cache.type"),
		TTL:              c.durationOr("cache.ttl", time.Hour),
		CleanupFrequency: c.durationOr("cache.cleanup_frequency", 10*time.Minute),
		RedisURL:         c.GetString("cache.redis_url"),
		KeyPrefix:        c.GetString("cache.key_prefix"),
	}
}

// GetKafka returns the event streaming configuration
func (c *Config) GetKafka() KafkaConfig {
	return KafkaConfig{
		Enabled:        c.GetBool("events.kafka.enabled"),
		Brokers:        c.GetStringSlice("events.kafka.brokers"),
		Topic:          c.GetString("events.kafka.topic"),
		PublishTimeout: c.durationOr("events.kafka.publish_timeout", 2*time.Second),
	}
}

// GetRetrain returns the retraining configuration
func (c *Config) GetRetrain() RetrainConfig {
	return RetrainConfig{
		Provider:          c.GetString("retrain.provider"),
		OpenAIAPIKey:      c.GetString("retrain.openai.api_key"),
		OpenAIBaseModel:   c.GetString("retrain.openai.base_model"),
		OpenAIBaseURL:     c.GetString("retrain.openai.base_url"),
		OpenAISuffix:      c.GetString("retrain.openai.suffix"),
		OpenAIMaxBodySize: c.GetInt("retrain.openai.max_body_size"),
	}
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:      c.GetString("logging.level"),
		Format:     c.GetString("logging.format"),
		FilePath:   c.GetString("logging.file_path"),
		MaxSizeMB:  c.GetInt("logging.max_size_mb"),
		MaxBackups: c.GetInt("logging.max_backups"),
		MaxAgeDays: c.GetInt("logging.max_age_days"),
	}
}
