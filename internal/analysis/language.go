package analysis

import (
	"strings"
	"unicode/utf8"

	"github.com/mikey/mail-threat-engine/internal/utils"
)

// UnknownLanguage is reported when no profile reaches the minimum confidence
const UnknownLanguage = "unknown"

const (
	wordEvidence       = 2.0
	suffixEvidence     = 0.5
	charEvidence       = 1.0
	minSuffixWordRunes = 5
)

// LanguageResult is the outcome of language detection
type LanguageResult struct {
	Language string
	Score    float64
	Scores   map[string]float64
}

type languageScorer struct {
	order    []string
	words    map[string][]string
	suffixes []suffixRule
	chars    map[rune][]string
}

type suffixRule struct {
	suffix string
	code   string
}

// newLanguageScorer indexes the profiles. Evidence shared by several
// languages is split between them so common words do not dominate.
func newLanguageScorer(profiles []languageProfile) *languageScorer {
	ls := &languageScorer{
		words: make(map[string][]string),
		chars: make(map[rune][]string),
	}
	for _, p := range profiles {
		ls.order = append(ls.order, p.code)
		for _, w := range p.words {
			ls.words[w] = append(ls.words[w], p.code)
		}
		for _, suf := range p.suffixes {
			ls.suffixes = append(ls.suffixes, suffixRule{suffix: suf, code: p.code})
		}
		for _, r := range p.chars {
			ls.chars[r] = append(ls.chars[r], p.code)
		}
	}
	return ls
}

func (ls *languageScorer) score(text string) map[string]float64 {
	scores := make(map[string]float64, len(ls.order))
	for _, code := range ls.order {
		scores[code] = 0
	}

	for _, word := range utils.Words(text) {
		if codes, ok := ls.words[word]; ok {
			share := wordEvidence / float64(len(codes))
			for _, c := range codes {
				scores[c] += share
			}
		}
		if utf8.RuneCountInString(word) < minSuffixWordRunes {
			continue
		}
		for _, rule := range ls.suffixes {
			if strings.HasSuffix(word, rule.suffix) {
				scores[rule.code] += suffixEvidence
			}
		}
	}

	for _, r := range text {
		if codes, ok := ls.chars[r]; ok {
			share := charEvidence / float64(len(codes))
			for _, c := range codes {
				scores[c] += share
			}
		}
	}
	return scores
}

// DetectLanguage returns the best matching language code, or
// UnknownLanguage when the evidence is below LanguageMinConfidence
func (s *Suite) DetectLanguage(text string) LanguageResult {
	// Lower-casing keeps diacritics intact where full case folding would not
	lowered := strings.ToLower(s.text.Normalize(text))
	scores := s.languageScorer.score(lowered)

	best, bestScore := UnknownLanguage, 0.0
	for _, code := range s.languageScorer.order {
		if scores[code] > bestScore {
			best, bestScore = code, scores[code]
		}
	}
	if bestScore < s.cfg.LanguageMinConfidence {
		best = UnknownLanguage
	}
	return LanguageResult{
		Language: best,
		Score:    bestScore,
		Scores:   scores,
	}
}
