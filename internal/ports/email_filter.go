package ports

import (
	"context"

	"github.com/mikey/mail-threat-engine/internal/core"
)

// EmailFilter defines the interface for email filtering
type EmailFilter interface {
	// ProcessEmail scans an email and returns the decision
	ProcessEmail(ctx context.Context, email *core.Email) (*core.ScanResult, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}
