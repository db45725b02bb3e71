// Package domainrep provides domain reputation signals for sender domains.
package domainrep

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/core"
)

// DefaultLabel is used for blocklisted domains configured without a label
const DefaultLabel = "blocklisted"

// StaticProvider answers from a configured blocklist. A domain matches when
// it or one of its parent domains is listed.
type StaticProvider struct {
	labels map[string]string
	logger *zap.Logger
}

// NewStaticProvider creates a provider from a domain to label map
func NewStaticProvider(blocklist map[string]string, logger *zap.Logger) *StaticProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	labels := make(map[string]string, len(blocklist))
	for domain, label := range blocklist {
		domain = normalizeDomain(domain)
		if domain == "" {
			continue
		}
		if label == "" {
			label = DefaultLabel
		}
		labels[domain] = label
	}
	logger.Debug("Loaded domain blocklist", zap.Int("domains", len(labels)))
	return &StaticProvider{labels: labels, logger: logger}
}

// CheckDomain implements core.DomainReputationProvider
func (p *StaticProvider) CheckDomain(ctx context.Context, domain string) (*core.DomainVerdict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	domain = normalizeDomain(domain)
	for domain != "" {
		if label, ok := p.labels[domain]; ok {
			return &core.DomainVerdict{IsBlacklisted: true, Label: label}, nil
		}
		i := strings.IndexByte(domain, '.')
		if i < 0 {
			break
		}
		domain = domain[i+1:]
	}
	return &core.DomainVerdict{}, nil
}

func normalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@"), ".")
}
