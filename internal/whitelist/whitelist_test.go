package whitelist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsWhitelisted(t *testing.T) {
	c := NewChecker([]string{" Partner.com ", "@trusted.org", ""}, nil)

	tests := []struct {
		from string
		want bool
	}{
		{"ops@partner.com", true},
		{"OPS@PARTNER.COM", true},
		{"alerts@mail.partner.com", true},
		{"a@trusted.org", true},
		{"a@notpartner.com", false},
		{"a@partner.com.evil.net", false},
		{"no-at-sign", false},
		{"trailing@", false},
	}

	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsWhitelisted(tt.from))
		})
	}
	assert.Equal(t, []string{"partner.com", "trusted.org"}, c.Domains())
}

func TestEmptyChecker(t *testing.T) {
	c := NewChecker(nil, nil)
	assert.False(t, c.IsWhitelisted("a@b.com"))
	assert.Empty(t, c.Domains())
}
