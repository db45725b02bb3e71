package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/mail-threat-engine/internal/core"
)

func TestDefaultsMatchEngineDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, core.DefaultEngineConfig(), cfg.GetEngine())

	server := cfg.GetServer()
	assert.Equal(t, "postfix", server.FilterType)
	assert.Equal(t, "X-Spam-Actions", server.ActionsHeader)
	assert.Equal(t, 10*time.Second, server.ScanTimeout)

	cache := cfg.GetCache()
	assert.Equal(t, "memory", cache.Type)
	assert.Equal(t, time.Hour, cache.TTL)

	a := cfg.GetAnalysis()
	assert.Equal(t, 0.5, a.CapsRatioThreshold)
	assert.Equal(t, 4, a.SpamminessThreshold)
	assert.Empty(t, a.SubjectKeywords)

	assert.Equal(t, "memory", cfg.GetStorage().Type)
	assert.False(t, cfg.GetKafka().Enabled)
	assert.Equal(t, "log", cfg.GetRetrain().Provider)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  spam_threshold: 65
  domain_lookup_timeout: 500ms
analysis:
  brand_keywords: [acme, globex]
reputation:
  whitelisted_domains: [trusted.example]
  blocklisted_domains:
    phish.example: phishing
storage:
  type: sqlite
cache:
  ttl: bogus
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	engine := cfg.GetEngine()
	assert.Equal(t, 65.0, engine.SpamThreshold)
	assert.Equal(t, 80.0, engine.BlockThreshold)
	assert.Equal(t, 500*time.Millisecond, engine.DomainLookupTimeout)

	assert.Equal(t, []string{"acme", "globex"}, cfg.GetAnalysis().BrandKeywords)

	rep := cfg.GetReputation()
	assert.Equal(t, []string{"trusted.example"}, rep.WhitelistedDomains)
	assert.Equal(t, map[string]string{"phish.example": "phishing"}, rep.BlocklistedDomains)

	assert.Equal(t, "sqlite", cfg.GetStorage().Type)
	assert.Equal(t, time.Hour, cfg.GetCache().TTL, "invalid durations fall back")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("THREAT_ENGINE_SERVER_TENANT_ID", "acme")
	t.Setenv("THREAT_ENGINE_ENGINE_BLOCK_THRESHOLD", "90")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "acme", cfg.GetServer().TenantID)
	assert.Equal(t, 90.0, cfg.GetEngine().BlockThreshold)
}

func TestLoadRequiresExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
