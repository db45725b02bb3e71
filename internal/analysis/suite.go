// Package analysis holds the lexical analyzers used to score email content.
// Every analyzer is a pure function of its input and the Suite's lexicons;
// sub-scores are returned unclamped and combined by the caller.
package analysis

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mikey/mail-threat-engine/internal/utils"
)

// Config holds the configurable lexicons and thresholds of a Suite
type Config struct {
	SubjectKeywords       []string
	UrgencyPhrases        []string
	URLShorteners         []string
	BrandKeywords         []string
	CapsRatioThreshold    float64
	SpamminessThreshold   int
	LanguageMinConfidence float64
}

// DefaultConfig returns the built-in lexicons and thresholds
func DefaultConfig() Config {
	return Config{
		SubjectKeywords:       DefaultSubjectKeywords,
		UrgencyPhrases:        DefaultUrgencyPhrases,
		URLShorteners:         DefaultURLShorteners,
		BrandKeywords:         DefaultBrandKeywords,
		CapsRatioThreshold:    0.5,
		SpamminessThreshold:   4,
		LanguageMinConfidence: 2,
	}
}

// Score is the result of one analyzer
type Score struct {
	Value   float64
	Signals []string
}

func (s *Score) add(points float64, signal string) {
	s.Value += points
	s.Signals = append(s.Signals, signal)
}

// Suite bundles the analyzers with their prepared lexicons.
// A Suite is immutable after construction and safe for concurrent use.
type Suite struct {
	cfg            Config
	text           *utils.TextProcessor
	subjectTerms   []string
	urgencyTerms   []string
	shorteners     []string
	brandTerms     []string
	triggerTerms   []string
	spamTerms      []string
	languageScorer *languageScorer
}

// NewSuite creates a Suite; empty lists and zero thresholds fall back to defaults
func NewSuite(cfg Config, text *utils.TextProcessor) *Suite {
	def := DefaultConfig()
	if len(cfg.SubjectKeywords) == 0 {
		cfg.SubjectKeywords = def.SubjectKeywords
	}
	if len(cfg.UrgencyPhrases) == 0 {
		cfg.UrgencyPhrases = def.UrgencyPhrases
	}
	if len(cfg.URLShorteners) == 0 {
		cfg.URLShorteners = def.URLShorteners
	}
	if len(cfg.BrandKeywords) == 0 {
		cfg.BrandKeywords = def.BrandKeywords
	}
	if cfg.CapsRatioThreshold <= 0 {
		cfg.CapsRatioThreshold = def.CapsRatioThreshold
	}
	if cfg.SpamminessThreshold <= 0 {
		cfg.SpamminessThreshold = def.SpamminessThreshold
	}
	if cfg.LanguageMinConfidence <= 0 {
		cfg.LanguageMinConfidence = def.LanguageMinConfidence
	}
	if text == nil {
		text = utils.NewTextProcessor(nil)
	}

	s := &Suite{
		cfg:  cfg,
		text: text,
	}
	s.subjectTerms = s.foldAll(cfg.SubjectKeywords)
	s.urgencyTerms = s.foldAll(cfg.UrgencyPhrases)
	s.brandTerms = s.foldAll(cfg.BrandKeywords)
	s.spamTerms = s.foldAll(concat(urgencyLexicon, moneyLexicon, suspiciousLexicon))
	s.triggerTerms = dedupe(concat(s.subjectTerms, s.spamTerms))
	for _, d := range cfg.URLShorteners {
		s.shorteners = append(s.shorteners, strings.ToLower(strings.TrimSpace(d)))
	}
	s.languageScorer = newLanguageScorer(languageProfiles)
	return s
}

// Config returns the effective configuration
func (s *Suite) Config() Config {
	return s.cfg
}

// TextProcessor returns the processor used to normalize input
func (s *Suite) TextProcessor() *utils.TextProcessor {
	return s.text
}

func (s *Suite) foldAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if f := strings.TrimSpace(s.text.Fold(t)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// CapsRatio returns the share of upper-case letters among all letters.
// Texts with fewer than minCapsLetters letters report 0.
func CapsRatio(text string) float64 {
	var letters, upper int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters < minCapsLetters {
		return 0
	}
	return float64(upper) / float64(letters)
}

const minCapsLetters = 5

// countPhrase counts non-overlapping occurrences of phrase in folded text
// that are not embedded inside a longer word
func countPhrase(text, phrase string) int {
	if phrase == "" {
		return 0
	}
	count := 0
	offset := 0
	for {
		idx := strings.Index(text[offset:], phrase)
		if idx < 0 {
			return count
		}
		start := offset + idx
		end := start + len(phrase)
		if boundaryBefore(text, start, phrase) && boundaryAfter(text, end, phrase) {
			count++
			offset = end
		} else {
			offset = start + 1
		}
		if offset >= len(text) {
			return count
		}
	}
}

func boundaryBefore(text string, start int, phrase string) bool {
	if start == 0 || !isWordRune(firstRune(phrase)) {
		return true
	}
	return !isWordRune(lastRune(text[:start]))
}

func boundaryAfter(text string, end int, phrase string) bool {
	if end >= len(text) || !isWordRune(lastRune(phrase)) {
		return true
	}
	return !isWordRune(firstRune(text[end:]))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func firstRune(s string) rune {
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

func lastRune(s string) rune {
	r, _ := utf8.DecodeLastRuneInString(s)
	return r
}

func concat(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
