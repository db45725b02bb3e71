package filter

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/core"
)

// CliFilter scans messages given on the command line and prints a report
type CliFilter struct {
	scanner  InboundScanner
	tenantID string
	logger   *zap.Logger
	verbose  bool
	out      io.Writer
}

// NewCliFilter creates a new CLI filter writing to stdout
func NewCliFilter(scanner InboundScanner, tenantID string, logger *zap.Logger, verbose bool) *CliFilter {
	return &CliFilter{
		scanner:  scanner,
		tenantID: tenantID,
		logger:   logger,
		verbose:  verbose,
		out:      os.Stdout,
	}
}

// SetOutput redirects the report
func (f *CliFilter) SetOutput(w io.Writer) {
	f.out = w
}

// ProcessEmail scans the email and prints the report
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.ScanResult, error) {
	f.logger.Debug("Processing email", zap.String("sender", email.FromEmail))

	fmt.Fprintf(f.out, "\n=== Email Summary ===\n")
	fmt.Fprintf(f.out, "From: %s", email.FromEmail)
	if email.FromName != "" {
		fmt.Fprintf(f.out, " (%s)", email.FromName)
	}
	fmt.Fprintf(f.out, "\nTo: %s\n", strings.Join(email.To, ", "))
	fmt.Fprintf(f.out, "Subject: %s\n", email.Subject)
	fmt.Fprintf(f.out, "Body length: %d bytes\n", len(email.Body))
	fmt.Fprintf(f.out, "Attachments: %d\n", len(email.Attachments))

	if f.verbose {
		preview := email.Body
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		fmt.Fprintf(f.out, "\nBody preview:\n%s\n", preview)
	}

	startTime := time.Now()
	result, err := f.scanner.ScanInbound(ctx, f.tenantID, email)
	if err != nil {
		f.logger.Error("Failed to scan email", zap.Error(err))
		fmt.Fprintf(f.out, "Error: %v\n", err)
		return nil, err
	}
	duration := time.Since(startTime)

	f.printResult(result, duration)
	return result, nil
}

func (f *CliFilter) printResult(result *core.ScanResult, duration time.Duration) {
	fmt.Fprintf(f.out, "\n=== Results ===\n")
	fmt.Fprintf(f.out, "Is spam: %t\n", result.IsSpam)
	fmt.Fprintf(f.out, "Spam score: %.2f\n", result.SpamScore)
	fmt.Fprintf(f.out, "Confidence: %.2f\n", result.Confidence)
	fmt.Fprintf(f.out, "Actions: %s\n", formatActions(result.Actions))
	fmt.Fprintf(f.out, "Language: %s\n", result.ContentAnalysis.Language)
	fmt.Fprintf(f.out, "Sentiment: %s (%.2f)\n",
		result.ContentAnalysis.Sentiment.Label, result.ContentAnalysis.Sentiment.Score)
	fmt.Fprintf(f.out, "Sender reputation: %.2f (%d/%d spam)\n",
		result.Reputation.Score(), result.Reputation.SpamEmails, result.Reputation.TotalEmails)

	names := make([]string, 0, len(result.SubScores))
	for name := range result.SubScores {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintf(f.out, "Sub-scores:\n")
	for _, name := range names {
		fmt.Fprintf(f.out, "  %-12s %.2f\n", name, result.SubScores[name])
	}

	for _, m := range result.MatchedRules {
		fmt.Fprintf(f.out, "Matched rule: %s (%s, %s)\n", m.Name, m.Type, m.Action)
	}
	if len(result.Degraded) > 0 {
		fmt.Fprintf(f.out, "Degraded: %s\n", strings.Join(result.Degraded, ", "))
	}
	fmt.Fprintf(f.out, "Processing time: %v\n", duration)
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
