package core

import (
	"strings"
	"time"
)

// Attachment is the metadata of an inbound attachment
type Attachment struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// Email represents an inbound email message
type Email struct {
	FromEmail   string            `json:"from_email"`
	FromName    string            `json:"from_name"`
	To          []string          `json:"to,omitempty"`
	Subject     string            `json:"subject"`
	Body        string            `json:"body"`
	Headers     map[string]string `json:"headers,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`
}

// Action is a decision attached to a scan result
type Action string

const (
	ActionBlock          Action = "block"
	ActionQuarantine     Action = "quarantine"
	ActionFlag           Action = "flag"
	ActionSubjectWarning Action = "subject_warning"
)

// actionOrder is the canonical order of actions in a scan result
var actionOrder = []Action{ActionBlock, ActionQuarantine, ActionFlag, ActionSubjectWarning}

// IsRuleAction reports whether a rule may carry the action
func (a Action) IsRuleAction() bool {
	return a == ActionBlock || a == ActionQuarantine || a == ActionFlag
}

// SenderReputation is the history of one sender within a tenant.
// The counters are authoritative; Score is derived from them on read.
type SenderReputation struct {
	TenantID      string    `json:"tenant_id"`
	Email         string    `json:"email"`
	Domain        string    `json:"domain"`
	TotalEmails   uint64    `json:"total_emails"`
	SpamEmails    uint64    `json:"spam_emails"`
	LastScore     float64   `json:"last_score"`
	IsBlocked     bool      `json:"is_blocked"`
	IsWhitelisted bool      `json:"is_whitelisted"`
	LastSeen      time.Time `json:"last_seen"`
}

// NewSenderReputation returns the zero-history record of a sender
func NewSenderReputation(tenantID, email string) *SenderReputation {
	email = NormalizeEmail(email)
	return &SenderReputation{
		TenantID: tenantID,
		Email:    email,
		Domain:   DomainOf(email),
	}
}

// Score returns the spam ratio of the sender as a percentage
func (r *SenderReputation) Score() float64 {
	if r == nil || r.TotalEmails == 0 {
		return 0
	}
	return float64(r.SpamEmails) / float64(r.TotalEmails) * 100
}

// Clone returns a copy of the record
func (r *SenderReputation) Clone() *SenderReputation {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// DomainReputation aggregates the senders of one domain within a tenant.
// It is derived and never authoritative.
type DomainReputation struct {
	TenantID       string    `json:"tenant_id"`
	Domain         string    `json:"domain"`
	Senders        int       `json:"senders"`
	BlockedSenders int       `json:"blocked_senders"`
	TotalEmails    uint64    `json:"total_emails"`
	SpamEmails     uint64    `json:"spam_emails"`
	LastSeen       time.Time `json:"last_seen"`
	IsBlacklisted  bool      `json:"is_blacklisted"`
	Label          string    `json:"label,omitempty"`
}

// Score returns the spam ratio of the domain as a percentage
func (d *DomainReputation) Score() float64 {
	if d == nil || d.TotalEmails == 0 {
		return 0
	}
	return float64(d.SpamEmails) / float64(d.TotalEmails) * 100
}

// DomainVerdict is the answer of an external domain reputation provider
type DomainVerdict struct {
	IsBlacklisted bool
	Label         string
}

// RuleType selects the part of a message a rule is matched against
type RuleType string

const (
	RuleTypeSender  RuleType = "sender"
	RuleTypeSubject RuleType = "subject"
	RuleTypeContent RuleType = "content"
	RuleTypeHeader  RuleType = "header"
)

// IsValid reports whether the rule type is known
func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeSender, RuleTypeSubject, RuleTypeContent, RuleTypeHeader:
		return true
	}
	return false
}

// SpamRule is a tenant-scoped pattern rule
type SpamRule struct {
	ID        string    `json:"id" yaml:"id"`
	TenantID  string    `json:"tenant_id" yaml:"tenant_id"`
	Name      string    `json:"name" yaml:"name"`
	Type      RuleType  `json:"type" yaml:"type"`
	Pattern   string    `json:"pattern" yaml:"pattern"`
	IsRegex   bool      `json:"is_regex" yaml:"is_regex"`
	Action    Action    `json:"action" yaml:"action"`
	Priority  int       `json:"priority" yaml:"priority"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// RuleSpec is a rule as submitted for a rule-set replacement.
// A nil IsActive means active.
type RuleSpec struct {
	Name     string   `json:"name" yaml:"name"`
	Type     RuleType `json:"type" yaml:"type"`
	Pattern  string   `json:"pattern" yaml:"pattern"`
	IsRegex  bool     `json:"is_regex" yaml:"is_regex"`
	Action   Action   `json:"action" yaml:"action"`
	Priority int      `json:"priority" yaml:"priority"`
	IsActive *bool    `json:"is_active,omitempty" yaml:"is_active,omitempty"`
}

// RuleSetResult is returned by a rule-set replacement
type RuleSetResult struct {
	RulesCreated int `json:"rules_created"`
}

// RuleMatch records a rule that contributed an action
type RuleMatch struct {
	RuleID   string   `json:"rule_id"`
	Name     string   `json:"name"`
	Type     RuleType `json:"type"`
	Action   Action   `json:"action"`
	Priority int      `json:"priority"`
}

// Sentiment summarizes the tone of a message
type Sentiment struct {
	Score          float64 `json:"score"`
	Label          string  `json:"label"`
	Confidence     float64 `json:"confidence"`
	IsSpammy       bool    `json:"is_spammy"`
	SpamPhraseHits int     `json:"spam_phrase_hits"`
}

// ContentAnalysis holds the content-derived part of a scan
type ContentAnalysis struct {
	SubjectScore float64   `json:"subject_score"`
	BodyScore    float64   `json:"body_score"`
	Language     string    `json:"language"`
	Sentiment    Sentiment `json:"sentiment"`
}

// ScanResult is the decision for one inbound message
type ScanResult struct {
	IsSpam          bool               `json:"is_spam"`
	SpamScore       float64            `json:"spam_score"`
	Confidence      float64            `json:"confidence"`
	Reputation      SenderReputation   `json:"reputation"`
	ContentAnalysis ContentAnalysis    `json:"content_analysis"`
	Actions         []Action           `json:"actions"`
	SubScores       map[string]float64 `json:"sub_scores"`
	MatchedRules    []RuleMatch        `json:"matched_rules,omitempty"`
	Degraded        []string           `json:"degraded,omitempty"`
	ScannedAt       time.Time          `json:"scanned_at"`
}

// HasAction reports whether the result carries the action
func (r *ScanResult) HasAction(a Action) bool {
	for _, got := range r.Actions {
		if got == a {
			return true
		}
	}
	return false
}

// Security event types
const (
	EventTypeEmailSecurity = "email_security"

	EventInboundScan      = "inbound_scan"
	EventOutboundScan     = "outbound_scan"
	EventTraining         = "training"
	EventRulesUpdate      = "rules_update"
	EventReputationUpdate = "reputation_update"
)

// Severity levels
const (
	SeverityInfo    = "info"
	SeverityLow     = "low"
	SeverityMedium  = "medium"
	SeverityHigh    = "high"
	SeverityWarning = "warning"
)

// SecurityEvent is an append-only audit record
type SecurityEvent struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	EventType string         `json:"event_type"`
	Type      string         `json:"type"`
	Action    string         `json:"action"`
	Severity  string         `json:"severity"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// EventQuery filters the security event log. Zero times are unbounded.
type EventQuery struct {
	TenantID string
	Types    []string
	Since    time.Time
	Until    time.Time
}

// Matches reports whether the event satisfies the query
func (q EventQuery) Matches(e *SecurityEvent) bool {
	if e.TenantID != q.TenantID {
		return false
	}
	if !q.Since.IsZero() && e.CreatedAt.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && e.CreatedAt.After(q.Until) {
		return false
	}
	if len(q.Types) == 0 {
		return true
	}
	for _, t := range q.Types {
		if e.Type == t {
			return true
		}
	}
	return false
}

// OutboundMessage is a message about to be sent
type OutboundMessage struct {
	To          []string `json:"to" yaml:"to"`
	CC          []string `json:"cc,omitempty" yaml:"cc,omitempty"`
	BCC         []string `json:"bcc,omitempty" yaml:"bcc,omitempty"`
	Subject     string   `json:"subject" yaml:"subject"`
	Body        string   `json:"body" yaml:"body"`
	Attachments []string `json:"attachments,omitempty" yaml:"attachments,omitempty"`
}

// Warning types raised by the outbound assessment
const (
	WarningContentRisk          = "content_risk"
	WarningBulkEmail            = "bulk_email"
	WarningSuspiciousRecipients = "suspicious_recipients"
)

// Warning is one finding of the outbound assessment
type Warning struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// OutboundAssessment is the deliverability estimate of an outbound message
type OutboundAssessment struct {
	Warnings             []Warning `json:"warnings"`
	Recommendations      []string  `json:"recommendations"`
	DeliverabilityScore  float64   `json:"deliverability_score"`
	ContentScore         float64   `json:"content_score"`
	TriggerPhrases       []string  `json:"trigger_phrases,omitempty"`
	LinkCount            int       `json:"link_count"`
	RecipientCount       int       `json:"recipient_count"`
	SuspiciousRecipients []string  `json:"suspicious_recipients,omitempty"`
	SuspiciousRatio      float64   `json:"suspicious_ratio"`
	Degraded             []string  `json:"degraded,omitempty"`
}

// HasWarning reports whether a warning of the type was raised
func (a *OutboundAssessment) HasWarning(warningType string) bool {
	for _, w := range a.Warnings {
		if w.Type == warningType {
			return true
		}
	}
	return false
}

// LabeledEmail is a user correction submitted for training
type LabeledEmail struct {
	ID        string `json:"id" yaml:"id"`
	IsSpam    bool   `json:"is_spam" yaml:"is_spam"`
	Subject   string `json:"subject" yaml:"subject"`
	Body      string `json:"body" yaml:"body"`
	FromEmail string `json:"from_email" yaml:"from_email"`
}

// UnknownModelVersion is reported when retraining could not be dispatched
const UnknownModelVersion = "unknown"

// TrainingResult is returned by the feedback intake
type TrainingResult struct {
	TrainedCount int    `json:"trained_count"`
	ModelVersion string `json:"model_version"`
}

// Correction kinds recorded on training events
const (
	CorrectionFalsePositive = "false_positive"
	CorrectionFalseNegative = "false_negative"
)

// Statistics is a windowed roll-up of scan decisions
type Statistics struct {
	TenantID       string              `json:"tenant_id"`
	PeriodStart    time.Time           `json:"period_start"`
	PeriodEnd      time.Time           `json:"period_end"`
	LookbackDays   int                 `json:"lookback_days"`
	Scanned        int                 `json:"scanned"`
	Blocked        int                 `json:"blocked"`
	Quarantined    int                 `json:"quarantined"`
	Flagged        int                 `json:"flagged"`
	FalsePositives int                 `json:"false_positives"`
	FalseNegatives int                 `json:"false_negatives"`
	Accuracy       float64             `json:"accuracy"`
	BlockRate      float64             `json:"block_rate"`
	TopSenders     []*SenderReputation `json:"top_senders"`
}

// NormalizeEmail returns the canonical key form of an address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DomainOf returns the lower-cased domain of an address, or ""
func DomainOf(email string) string {
	i := strings.LastIndex(email, "@")
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[i+1:]))
}
