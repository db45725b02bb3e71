package whitelist

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Checker reports senders whose domain is trusted. A configured domain
// also trusts its subdomains.
type Checker struct {
	domains map[string]struct{}
	logger  *zap.Logger
}

// NewChecker creates a new whitelist checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}

	set := make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		d := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
		if d != "" {
			set[d] = struct{}{}
		}
	}

	c := &Checker{
		domains: set,
		logger:  logger,
	}
	if len(set) > 0 {
		logger.Info("Initialized whitelist checker", zap.Strings("domains", c.Domains()))
	}
	return c
}

// IsWhitelisted checks if the sender's domain, or a parent of it, is trusted
func (c *Checker) IsWhitelisted(from string) bool {
	if len(c.domains) == 0 {
		return false
	}

	at := strings.LastIndex(from, "@")
	if at < 0 || at == len(from)-1 {
		return false
	}
	domain := strings.ToLower(strings.TrimSpace(from[at+1:]))

	for d := domain; d != ""; {
		if _, ok := c.domains[d]; ok {
			c.logger.Debug("Domain is whitelisted",
				zap.String("domain", domain),
				zap.String("email", from))
			return true
		}
		dot := strings.Index(d, ".")
		if dot < 0 {
			break
		}
		d = d[dot+1:]
	}
	return false
}

// Domains returns the trusted domains in sorted order
func (c *Checker) Domains() []string {
	out := make([]string, 0, len(c.domains))
	for d := range c.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
