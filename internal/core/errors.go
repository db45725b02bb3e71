package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTenant is returned when an operation is called without a tenant
	ErrInvalidTenant = errors.New("invalid tenant id")
	// ErrInvalidEmail is returned when a message or address is missing
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidDomain is returned when a domain is missing
	ErrInvalidDomain = errors.New("invalid domain")
	// ErrInvalidRule is returned when a rule set fails validation
	ErrInvalidRule = errors.New("invalid rule")
	// ErrNoRecipients is returned for outbound messages without recipients
	ErrNoRecipients = errors.New("no recipients")
	// ErrCacheMiss is returned by a ReputationCache that holds no entry
	ErrCacheMiss = errors.New("reputation not cached")
)

// AnalysisError records the failure of a single analyzer during a scan
type AnalysisError struct {
	Analyzer string
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyzer %s failed: %v", e.Analyzer, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
