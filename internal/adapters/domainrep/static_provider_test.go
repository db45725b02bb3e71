package domainrep

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(map[string]string{
		"Phish.example": "phishing",
		"@spam.test":    "",
		"  ":            "ignored",
	}, nil)

	tests := []struct {
		domain string
		listed bool
		label  string
	}{
		{"phish.example", true, "phishing"},
		{"mail.PHISH.example", true, "phishing"},
		{"spam.test.", true, DefaultLabel},
		{"example", false, ""},
		{"notphish.example", false, ""},
		{"", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			verdict, err := p.CheckDomain(context.Background(), tt.domain)
			require.NoError(t, err)
			assert.Equal(t, tt.listed, verdict.IsBlacklisted)
			assert.Equal(t, tt.label, verdict.Label)
		})
	}
}

func TestStaticProviderHonoursContext(t *testing.T) {
	p := NewStaticProvider(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.CheckDomain(ctx, "phish.example")
	assert.ErrorIs(t, err, context.Canceled)
}
