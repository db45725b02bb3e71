package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mikey/mail-threat-engine/internal/analysis"
	"github.com/mikey/mail-threat-engine/internal/metrics"
)

// Names of the built-in sub-scores and degradable steps
const (
	AnalyzerSubject     = "subject"
	AnalyzerBody        = "body"
	AnalyzerHeaders     = "headers"
	AnalyzerAttachments = "attachments"
	AnalyzerLanguage    = "language"
	AnalyzerSentiment   = "sentiment"
	SubScoreSender      = "sender"

	DegradedReputation       = "reputation"
	DegradedDomainReputation = "domain_reputation"
	DegradedRules            = "rules"
	DegradedRecordOutcome    = "record_outcome"
	DegradedEventLog         = "event_log"
)

// Sender scoring
const (
	blockedSenderPoints      = 50
	badReputationPoints      = 30
	suspiciousSenderPoints   = 25
	blacklistedDomainPoints  = 40
	reputationSpamCutoff     = 70
	suspiciousRecipientScore = 50
)

// ScoringService is the threat-scoring engine
type ScoringService struct {
	suite      *analysis.Suite
	reputation ReputationStore
	rules      RuleRepository
	ruleEngine *RuleEngine
	events     EventLog
	domains    DomainReputationProvider
	retrainer  Retrainer
	whitelist  DomainWhitelist
	analyzers  []ContentAnalyzer
	logger     *zap.Logger
	cfg        EngineConfig
	now        func() time.Time
}

// Option customizes a ScoringService
type Option func(*ScoringService)

// WithAnalyzers adds content analyzers to the built-in set
func WithAnalyzers(analyzers ...ContentAnalyzer) Option {
	return func(s *ScoringService) {
		s.analyzers = append(s.analyzers, analyzers...)
	}
}

// WithWhitelist sets the trusted-domain checker
func WithWhitelist(w DomainWhitelist) Option {
	return func(s *ScoringService) {
		s.whitelist = w
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(s *ScoringService) {
		s.now = now
	}
}

// NewScoringService creates a new scoring service. events, domains and
// retrainer may be nil; without an event log nothing is audited and
// statistics cover an empty window.
func NewScoringService(
	suite *analysis.Suite,
	reputation ReputationStore,
	rules RuleRepository,
	events EventLog,
	domains DomainReputationProvider,
	retrainer Retrainer,
	logger *zap.Logger,
	cfg EngineConfig,
	opts ...Option,
) *ScoringService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if suite == nil {
		suite = analysis.NewSuite(analysis.DefaultConfig(), nil)
	}
	s := &ScoringService{
		suite:      suite,
		reputation: reputation,
		rules:      rules,
		ruleEngine: NewRuleEngine(rules, logger),
		events:     events,
		domains:    domains,
		retrainer:  retrainer,
		logger:     logger,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
	}
	s.analyzers = builtinAnalyzers(suite)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective engine configuration
func (s *ScoringService) Config() EngineConfig {
	return s.cfg
}

// scanState collects the concurrent parts of one scan
type scanState struct {
	mu        sync.Mutex
	subScores map[string]float64
	degraded  []string
}

func (st *scanState) record(name string, score float64) {
	st.mu.Lock()
	st.subScores[name] = score
	st.mu.Unlock()
}

func (st *scanState) degrade(name string) {
	st.mu.Lock()
	st.degraded = append(st.degraded, name)
	st.mu.Unlock()
}

// ScanInbound scores an inbound message. Engine faults degrade the result
// instead of failing; only caller errors are returned.
func (s *ScoringService) ScanInbound(ctx context.Context, tenantID string, email *Email) (*ScanResult, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrInvalidTenant
	}
	if email == nil {
		return nil, ErrInvalidEmail
	}

	start := s.now()
	msg := s.prepare(email)
	sender := NormalizeEmail(msg.FromEmail)
	state := &scanState{subScores: make(map[string]float64, len(s.analyzers)+1)}

	var (
		senderRes senderResult
		language  analysis.LanguageResult
		sentiment analysis.SentimentResult
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range s.analyzers {
		a := a
		g.Go(func() error {
			score, err := s.runAnalyzer(gctx, a, msg)
			if err != nil {
				s.logger.Error("Analyzer failed, scoring it as 0",
					zap.String("tenant_id", tenantID),
					zap.String("analyzer", a.Name()),
					zap.Error(err))
				metrics.AnalyzerFailures.WithLabelValues(a.Name()).Inc()
				state.degrade(a.Name())
			}
			state.record(a.Name(), score)
			return nil
		})
	}
	g.Go(func() error {
		senderRes = s.scoreSender(gctx, tenantID, sender, msg.FromName, state)
		state.record(SubScoreSender, senderRes.score)
		return nil
	})
	g.Go(func() error {
		text := msg.Subject + "\n" + msg.Body
		if err := s.guard(AnalyzerLanguage, func() { language = s.suite.DetectLanguage(text) }); err != nil {
			language = analysis.LanguageResult{Language: analysis.UnknownLanguage}
			s.logger.Error("Language detection failed", zap.Error(err))
			state.degrade(AnalyzerLanguage)
		}
		if err := s.guard(AnalyzerSentiment, func() { sentiment = s.suite.AnalyzeSentiment(text) }); err != nil {
			sentiment = analysis.SentimentResult{Label: analysis.SentimentNeutral}
			s.logger.Error("Sentiment analysis failed", zap.Error(err))
			state.degrade(AnalyzerSentiment)
		}
		return nil
	})
	_ = g.Wait()

	var contentScore float64
	for name, v := range state.subScores {
		if name != SubScoreSender {
			contentScore += v
		}
	}
	spamScore := clamp(contentScore+senderRes.score, 0, 100)
	rep := senderRes.reputation

	matches, err := s.ruleEngine.Evaluate(ctx, tenantID, NewRuleTarget(msg))
	if err != nil {
		s.logger.Warn("Rule evaluation unavailable, continuing without rules",
			zap.String("tenant_id", tenantID),
			zap.Error(err))
		state.degrade(DegradedRules)
	}

	actions := s.decideActions(spamScore, state.subScores[AnalyzerSubject], rep.IsBlocked, matches)

	confirmedBad := !senderRes.trusted &&
		rep.TotalEmails > s.cfg.StableHistoryEmails &&
		rep.Score() > reputationSpamCutoff &&
		contentScore > 0
	isSpam := spamScore > s.cfg.SpamThreshold || rep.IsBlocked || confirmedBad || hasAction(actions, ActionBlock)

	result := &ScanResult{
		IsSpam:     isSpam,
		SpamScore:  spamScore,
		Confidence: s.confidence(spamScore, rep, state.subScores),
		Reputation: *rep,
		ContentAnalysis: ContentAnalysis{
			SubjectScore: state.subScores[AnalyzerSubject],
			BodyScore:    state.subScores[AnalyzerBody],
			Language:     language.Language,
			Sentiment: Sentiment{
				Score:          sentiment.Score,
				Label:          sentiment.Label,
				Confidence:     sentiment.Confidence,
				IsSpammy:       sentiment.IsSpammy,
				SpamPhraseHits: sentiment.SpamPhraseHits,
			},
		},
		Actions:      actions,
		SubScores:    state.subScores,
		MatchedRules: matches,
		ScannedAt:    start,
	}

	if sender != "" {
		if err := s.recordOutcome(ctx, tenantID, sender, isSpam, spamScore); err != nil {
			s.logger.Warn("Failed to record sender outcome, reputation feedback lost",
				zap.String("tenant_id", tenantID),
				zap.String("sender", sender),
				zap.Error(err))
			metrics.ReputationFailures.WithLabelValues("record_outcome").Inc()
			state.degrade(DegradedRecordOutcome)
		}
	}

	event := s.newEvent(tenantID, EventInboundScan, primaryAction(actions), scanSeverity(actions), map[string]any{
		"sender":        sender,
		"is_spam":       isSpam,
		"spam_score":    spamScore,
		"confidence":    result.Confidence,
		"actions":       actionStrings(actions),
		"matched_rules": len(matches),
	})
	if err := s.appendEvent(ctx, event); err != nil {
		state.degrade(DegradedEventLog)
	}

	sort.Strings(state.degraded)
	result.Degraded = state.degraded

	verdict := "clean"
	if isSpam {
		verdict = "spam"
	}
	metrics.ScansTotal.WithLabelValues("inbound", verdict).Inc()
	metrics.ScanDuration.WithLabelValues("inbound").Observe(s.now().Sub(start).Seconds())
	for _, a := range actions {
		metrics.ActionsTotal.WithLabelValues(string(a)).Inc()
	}

	s.logger.Info("Inbound scan completed",
		zap.String("tenant_id", tenantID),
		zap.String("sender", sender),
		zap.Float64("spam_score", spamScore),
		zap.Bool("is_spam", isSpam),
		zap.Strings("actions", actionStrings(actions)),
		zap.Strings("degraded", result.Degraded))

	return result, nil
}

// prepare bounds and normalizes the analyzed text without touching the caller's email
func (s *ScoringService) prepare(email *Email) *Email {
	text := s.suite.TextProcessor()
	msg := *email
	msg.Subject = text.Normalize(email.Subject)
	msg.Body = text.ProcessText(email.Body, s.cfg.MaxBodyBytes)
	msg.FromName = text.Normalize(email.FromName)
	return &msg
}

// runAnalyzer runs one analyzer, converting errors and panics into an AnalysisError
func (s *ScoringService) runAnalyzer(ctx context.Context, a ContentAnalyzer, email *Email) (score float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			score = 0
			err = &AnalysisError{Analyzer: a.Name(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	score, err = a.Analyze(ctx, email)
	if err != nil {
		return 0, &AnalysisError{Analyzer: a.Name(), Err: err}
	}
	return score, nil
}

func (s *ScoringService) guard(name string, fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &AnalysisError{Analyzer: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	fn()
	return nil
}

// decideActions unions score-derived and rule-triggered actions in canonical order
func (s *ScoringService) decideActions(spamScore, subjectScore float64, blocked bool, matches []RuleMatch) []Action {
	set := make(map[Action]bool, len(actionOrder))
	switch {
	case spamScore > s.cfg.BlockThreshold || blocked:
		set[ActionBlock] = true
	case spamScore > s.cfg.QuarantineThreshold:
		set[ActionQuarantine] = true
	case spamScore > s.cfg.FlagThreshold:
		set[ActionFlag] = true
	}
	if subjectScore > s.cfg.SubjectWarningThreshold {
		set[ActionSubjectWarning] = true
	}
	for _, m := range matches {
		set[m.Action] = true
	}

	actions := make([]Action, 0, len(set))
	for _, a := range actionOrder {
		if set[a] {
			actions = append(actions, a)
		}
	}
	return actions
}

func (s *ScoringService) confidence(spamScore float64, rep *SenderReputation, subScores map[string]float64) float64 {
	c := 50.0
	if spamScore > s.cfg.SpamThreshold {
		c += 20
	}
	if rep.TotalEmails > s.cfg.StableHistoryEmails {
		c += 15
	}
	if subScores[AnalyzerSubject] > 40 {
		c += 10
	}
	if subScores[AnalyzerBody] > 40 {
		c += 10
	}
	return clamp(c, 0, 100)
}

// recordOutcome feeds the decision back into the reputation store, retrying once
func (s *ScoringService) recordOutcome(ctx context.Context, tenantID, sender string, isSpam bool, score float64) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.cfg.PersistenceRetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, 1), ctx)

	return backoff.Retry(func() error {
		_, err := s.reputation.RecordOutcome(ctx, tenantID, sender, isSpam, score)
		return err
	}, policy)
}

func (s *ScoringService) newEvent(tenantID, eventType, action, severity string, details map[string]any) *SecurityEvent {
	return &SecurityEvent{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		EventType: EventTypeEmailSecurity,
		Type:      eventType,
		Action:    action,
		Severity:  severity,
		Details:   details,
		CreatedAt: s.now().UTC(),
	}
}

func (s *ScoringService) appendEvent(ctx context.Context, event *SecurityEvent) error {
	if s.events == nil {
		return nil
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.Warn("Failed to log security event",
			zap.String("tenant_id", event.TenantID),
			zap.String("type", event.Type),
			zap.Error(err))
		return err
	}
	return nil
}

func primaryAction(actions []Action) string {
	for _, a := range actions {
		if a != ActionSubjectWarning {
			return string(a)
		}
	}
	return "allow"
}

func scanSeverity(actions []Action) string {
	switch primaryAction(actions) {
	case string(ActionBlock):
		return SeverityHigh
	case string(ActionQuarantine):
		return SeverityMedium
	case string(ActionFlag):
		return SeverityLow
	}
	return SeverityInfo
}

func hasAction(actions []Action, want Action) bool {
	for _, a := range actions {
		if a == want {
			return true
		}
	}
	return false
}

func actionStrings(actions []Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = string(a)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
