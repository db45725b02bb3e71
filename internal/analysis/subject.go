package analysis

import (
	"regexp"
)

const (
	subjectKeywordPoints = 15
	subjectCapsPoints    = 20
	punctuationRunPoints = 10
)

var punctuationRun = regexp.MustCompile(`[!?]{2,}`)

// ScoreSubject scores a subject line on keyword membership, capitalization
// and repeated punctuation
func (s *Suite) ScoreSubject(subject string) Score {
	var score Score
	if subject == "" {
		return score
	}

	folded := s.text.Fold(subject)
	for _, kw := range s.subjectTerms {
		if countPhrase(folded, kw) > 0 {
			score.add(subjectKeywordPoints, "keyword:"+kw)
		}
	}

	if CapsRatio(subject) > s.cfg.CapsRatioThreshold {
		score.add(subjectCapsPoints, "excessive_caps")
	}

	for range punctuationRun.FindAllStringIndex(subject, -1) {
		score.add(punctuationRunPoints, "repeated_punctuation")
	}

	return score
}
