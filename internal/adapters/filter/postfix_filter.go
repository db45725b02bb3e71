package filter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/mail"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/mail-threat-engine/internal/core"
)

// InboundScanner scores inbound messages
type InboundScanner interface {
	ScanInbound(ctx context.Context, tenantID string, email *core.Email) (*core.ScanResult, error)
}

// PostfixConfig holds the settings of the Postfix content filter
type PostfixConfig struct {
	ListenAddr     string
	TenantID       string
	BlockSpam      bool
	StatusHeader   string
	ScoreHeader    string
	ActionsHeader  string
	PostfixAddr    string
	PostfixPort    int
	PostfixEnabled bool
	SubjectPrefix  string
	ModifySubject  bool
	ScanTimeout    time.Duration
}

// PostfixFilter implements a Postfix after-queue content filter. Messages
// are scanned, stamped with the verdict and handed back to Postfix; a block
// decision is answered with 550 when blocking is enabled.
type PostfixFilter struct {
	scanner InboundScanner
	logger  *zap.Logger
	cfg     PostfixConfig

	mu       sync.Mutex
	server   *smtp.Server
	listener net.Listener
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(scanner InboundScanner, logger *zap.Logger, cfg PostfixConfig) *PostfixFilter {
	// If subject prefix is not set but modify subject is enabled, use default prefix
	if cfg.SubjectPrefix == "" && cfg.ModifySubject {
		cfg.SubjectPrefix = "[**SPAM**] "
	}
	if cfg.StatusHeader == "" {
		cfg.StatusHeader = "X-Spam-Status"
	}
	if cfg.ScoreHeader == "" {
		cfg.ScoreHeader = "X-Spam-Score"
	}
	if cfg.ActionsHeader == "" {
		cfg.ActionsHeader = "X-Spam-Actions"
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = 10 * time.Second
	}

	return &PostfixFilter{
		scanner: scanner,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start starts the SMTP listener
func (f *PostfixFilter) Start() error {
	server := smtp.NewServer(&smtpBackend{filter: f})
	server.Addr = f.cfg.ListenAddr
	server.Domain = "localhost"
	server.ReadTimeout = 30 * time.Second
	server.WriteTimeout = 30 * time.Second
	server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	server.MaxRecipients = 50
	server.AllowInsecureAuth = true

	l, err := net.Listen("tcp", f.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.cfg.ListenAddr, err)
	}

	f.mu.Lock()
	f.server = server
	f.listener = l
	f.mu.Unlock()

	f.logger.Info("Postfix filter starting", zap.String("address", l.Addr().String()))

	go func() {
		if err := server.Serve(l); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the address the filter listens on once started
func (f *PostfixFilter) Addr() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener == nil {
		return f.cfg.ListenAddr
	}
	return f.listener.Addr().String()
}

// Stop stops the SMTP listener
func (f *PostfixFilter) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail scans an already parsed email
func (f *PostfixFilter) ProcessEmail(ctx context.Context, email *core.Email) (*core.ScanResult, error) {
	return f.scanner.ScanInbound(ctx, f.cfg.TenantID, email)
}

// FilterMessage scans a raw message and returns it stamped with the
// verdict. The result is nil when the scan itself failed; the message then
// passes with an analysis error header.
func (f *PostfixFilter) FilterMessage(ctx context.Context, sender string, recipients []string, raw []byte) ([]byte, *core.ScanResult, error) {
	email, msg, err := ParseMessage(raw, sender, recipients)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.ScanTimeout)
	defer cancel()

	result, scanErr := f.ProcessEmail(ctx, email)
	if scanErr != nil {
		f.logger.Error("Failed to scan email",
			zap.Error(scanErr),
			zap.String("sender", email.FromEmail),
			zap.String("sender_domain", core.DomainOf(email.FromEmail)))
		result = nil
	}

	return f.stampMessage(raw, msg, result, scanErr), result, nil
}

// stampMessage prepends the verdict headers, drops any incoming copies of
// them and prefixes the subject when a warning is due
func (f *PostfixFilter) stampMessage(raw []byte, msg *mail.Message, result *core.ScanResult, scanErr error) []byte {
	header, body := splitMessage(raw)

	own := map[string]bool{
		strings.ToLower(f.cfg.StatusHeader):  true,
		strings.ToLower(f.cfg.ScoreHeader):   true,
		strings.ToLower(f.cfg.ActionsHeader): true,
		"x-spam-analysis-error":              true,
	}

	var newSubject string
	if result != nil && f.cfg.ModifySubject && f.cfg.SubjectPrefix != "" &&
		(result.IsSpam || result.HasAction(core.ActionSubjectWarning)) {
		subject, _ := decodeEncodedHeader(msg.Header.Get("Subject"))
		if !strings.HasPrefix(subject, f.cfg.SubjectPrefix) {
			newSubject = encodeHeaderValue(f.cfg.SubjectPrefix + subject)
			own["subject"] = true
		}
	}

	var out bytes.Buffer
	if result != nil {
		status := "No"
		if result.IsSpam {
			status = "Yes"
		}
		fmt.Fprintf(&out, "%s: %s\r\n", f.cfg.StatusHeader, status)
		fmt.Fprintf(&out, "%s: %.2f\r\n", f.cfg.ScoreHeader, result.SpamScore)
		fmt.Fprintf(&out, "%s: %s\r\n", f.cfg.ActionsHeader, formatActions(result.Actions))
	}
	if scanErr != nil {
		fmt.Fprintf(&out, "X-Spam-Analysis-Error: %s\r\n", sanitizeHeaderValue(scanErr.Error()))
	}
	if newSubject != "" {
		fmt.Fprintf(&out, "Subject: %s\r\n", newSubject)
	}

	out.Write(dropHeaders(header, own))
	out.WriteString("\r\n")
	out.Write(body)
	return out.Bytes()
}

// splitMessage returns the header block, each line ending in CRLF, and the
// body that follows the blank separator line
func splitMessage(raw []byte) ([]byte, []byte) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return raw[:i+2], raw[i+4:]
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return toCRLF(raw[:i+1]), raw[i+2:]
	}
	return toCRLF(raw), nil
}

func toCRLF(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\n"), []byte("\r\n"))
}

// dropHeaders removes the named fields, continuation lines included, and
// keeps everything else in its original order
func dropHeaders(header []byte, names map[string]bool) []byte {
	var out bytes.Buffer
	skipping := false
	for _, line := range bytes.SplitAfter(header, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if !skipping {
				out.Write(line)
			}
			continue
		}
		name := line
		if i := bytes.IndexByte(line, ':'); i >= 0 {
			name = line[:i]
		}
		skipping = names[strings.ToLower(strings.TrimSpace(string(name)))]
		if !skipping {
			out.Write(line)
		}
	}
	return out.Bytes()
}

func formatActions(actions []core.Action) string {
	if len(actions) == 0 {
		return "none"
	}
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = string(a)
	}
	return strings.Join(parts, ", ")
}

func encodeHeaderValue(value string) string {
	for _, r := range value {
		if r > 127 {
			return mime.QEncoding.Encode("utf-8", value)
		}
	}
	return value
}

func sanitizeHeaderValue(value string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(value)
}

// sendToPostfix sends the processed email back to Postfix on the configured port using go-smtp
func (f *PostfixFilter) sendToPostfix(sender string, recipients []string, emailData []byte) error {
	postfixAddr := net.JoinHostPort(f.cfg.PostfixAddr, fmt.Sprint(f.cfg.PostfixPort))

	// Get hostname for EHLO
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", postfixAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to Postfix: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}

	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}

	if _, err := wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}

	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The message is already accepted at this point
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data scans the message and either rejects or forwards it
func (s *smtpSession) Data(r io.Reader) error {
	f := s.filter

	raw, err := io.ReadAll(r)
	if err != nil {
		f.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	stamped, result, err := f.FilterMessage(context.Background(), s.sender, s.recipients, raw)
	if err != nil {
		f.logger.Error("Failed to parse email message", zap.Error(err))
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Malformed message",
		}
	}

	if result != nil && f.cfg.BlockSpam && result.HasAction(core.ActionBlock) {
		f.logger.Info("Rejecting spam email",
			zap.String("from", s.sender),
			zap.String("sender_domain", core.DomainOf(s.sender)),
			zap.Float64("score", result.SpamScore))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as spam (score: %.2f)", result.SpamScore),
		}
	}

	if f.cfg.PostfixEnabled {
		if err := f.sendToPostfix(s.sender, s.recipients, stamped); err != nil {
			f.logger.Error("Failed to send email back to Postfix",
				zap.Error(err),
				zap.String("sender", s.sender))
			return &smtp.SMTPError{
				Code:         451,
				EnhancedCode: smtp.EnhancedCode{4, 3, 0},
				Message:      "Temporary failure re-injecting message",
			}
		}
	} else {
		f.logger.Warn("Postfix forwarding disabled, this is likely a misconfiguration")
	}

	fields := []zap.Field{
		zap.String("from", s.sender),
		zap.String("sender_domain", core.DomainOf(s.sender)),
	}
	if result != nil {
		fields = append(fields,
			zap.Bool("is_spam", result.IsSpam),
			zap.Float64("score", result.SpamScore),
			zap.String("actions", formatActions(result.Actions)))
	}
	f.logger.Info("Processed email", fields...)

	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
