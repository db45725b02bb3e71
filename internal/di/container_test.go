package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/mail-threat-engine/internal/adapters/filter"
	"github.com/mikey/mail-threat-engine/internal/core"
	"github.com/mikey/mail-threat-engine/internal/ports"
)

func TestBuildCLIContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  type: memory
cache:
  type: memory
reputation:
  whitelisted_domains: [trusted.com]
`), 0644))

	container, err := BuildCLIContainer(&CLIFlags{ConfigFile: path, TenantID: "acme"})
	require.NoError(t, err)

	err = container.Invoke(func(svc *core.ScoringService, emailFilter ports.EmailFilter) {
		assert.IsType(t, &filter.CliFilter{}, emailFilter)

		result, err := svc.ScanInbound(context.Background(), "acme", &core.Email{
			FromEmail: "ceo@trusted.com",
			Subject:   "Quarterly numbers",
			Body:      "The report is attached.",
		})
		require.NoError(t, err)
		assert.False(t, result.IsSpam)

		rep, err := svc.GetSenderReputation(context.Background(), "acme", "ceo@trusted.com")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), rep.TotalEmails)
	})
	require.NoError(t, err)
}

func TestBuildCLIContainerMissingConfig(t *testing.T) {
	container, err := BuildCLIContainer(&CLIFlags{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	require.NoError(t, err)

	err = container.Invoke(func(*core.ScoringService) {})
	assert.Error(t, err)
}
