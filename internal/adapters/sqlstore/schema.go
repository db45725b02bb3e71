package sqlstore

func schema(d Dialect) []string {
	switch d {
	case DialectMySQL:
		return []string{
			`CREATE TABLE IF NOT EXISTS sender_reputation (
				tenant_id VARCHAR(128) NOT NULL,
				email VARCHAR(320) NOT NULL,
				domain VARCHAR(255) NOT NULL,
				total_emails BIGINT NOT NULL DEFAULT 0,
				spam_emails BIGINT NOT NULL DEFAULT 0,
				last_score DOUBLE NOT NULL DEFAULT 0,
				is_blocked BOOLEAN NOT NULL DEFAULT FALSE,
				is_whitelisted BOOLEAN NOT NULL DEFAULT FALSE,
				last_seen BIGINT NOT NULL DEFAULT 0,
				PRIMARY KEY (tenant_id, email),
				INDEX idx_sender_reputation_domain (tenant_id, domain)
			)`,
			`CREATE TABLE IF NOT EXISTS spam_rules (
				tenant_id VARCHAR(128) NOT NULL,
				id VARCHAR(64) NOT NULL,
				name VARCHAR(255) NOT NULL,
				rule_type VARCHAR(32) NOT NULL,
				pattern TEXT NOT NULL,
				is_regex BOOLEAN NOT NULL DEFAULT FALSE,
				action VARCHAR(32) NOT NULL,
				priority INT NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at BIGINT NOT NULL DEFAULT 0,
				PRIMARY KEY (tenant_id, id)
			)`,
			`CREATE TABLE IF NOT EXISTS security_events (
				id VARCHAR(64) NOT NULL PRIMARY KEY,
				tenant_id VARCHAR(128) NOT NULL,
				event_type VARCHAR(64) NOT NULL,
				kind VARCHAR(64) NOT NULL,
				action VARCHAR(64) NOT NULL,
				severity VARCHAR(32) NOT NULL,
				details TEXT,
				created_at BIGINT NOT NULL,
				INDEX idx_security_events_tenant (tenant_id, created_at)
			)`,
		}
	default:
		return []string{
			`CREATE TABLE IF NOT EXISTS sender_reputation (
				tenant_id VARCHAR(128) NOT NULL,
				email VARCHAR(320) NOT NULL,
				domain VARCHAR(255) NOT NULL,
				total_emails BIGINT NOT NULL DEFAULT 0,
				spam_emails BIGINT NOT NULL DEFAULT 0,
				last_score DOUBLE PRECISION NOT NULL DEFAULT 0,
				is_blocked BOOLEAN NOT NULL DEFAULT FALSE,
				is_whitelisted BOOLEAN NOT NULL DEFAULT FALSE,
				last_seen BIGINT NOT NULL DEFAULT 0,
				PRIMARY KEY (tenant_id, email)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sender_reputation_domain ON sender_reputation (tenant_id, domain)`,
			`CREATE TABLE IF NOT EXISTS spam_rules (
				tenant_id VARCHAR(128) NOT NULL,
				id VARCHAR(64) NOT NULL,
				name VARCHAR(255) NOT NULL,
				rule_type VARCHAR(32) NOT NULL,
				pattern TEXT NOT NULL,
				is_regex BOOLEAN NOT NULL DEFAULT FALSE,
				action VARCHAR(32) NOT NULL,
				priority INTEGER NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at BIGINT NOT NULL DEFAULT 0,
				PRIMARY KEY (tenant_id, id)
			)`,
			`CREATE TABLE IF NOT EXISTS security_events (
				id VARCHAR(64) NOT NULL PRIMARY KEY,
				tenant_id VARCHAR(128) NOT NULL,
				event_type VARCHAR(64) NOT NULL,
				kind VARCHAR(64) NOT NULL,
				action VARCHAR(64) NOT NULL,
				severity VARCHAR(32) NOT NULL,
				details TEXT,
				created_at BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_security_events_tenant ON security_events (tenant_id, created_at)`,
		}
	}
}
