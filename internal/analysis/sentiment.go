package analysis

import (
	"math"

	"github.com/mikey/mail-threat-engine/internal/utils"
)

// Sentiment labels
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// SentimentResult is the outcome of sentiment analysis
type SentimentResult struct {
	Score          float64
	Label          string
	Confidence     float64
	IsSpammy       bool
	SpamPhraseHits int
}

// AnalyzeSentiment scores text against the weighted polarity lexicons and
// counts spam phrases. The text is spammy when the hit count exceeds
// SpamminessThreshold.
func (s *Suite) AnalyzeSentiment(text string) SentimentResult {
	folded := s.text.Fold(text)

	var pos, neg float64
	for _, word := range utils.Words(folded) {
		pos += positiveLexicon[word]
		neg += negativeLexicon[word]
	}

	res := SentimentResult{
		Score: pos - neg,
		Label: SentimentNeutral,
	}
	switch {
	case res.Score > 0:
		res.Label = SentimentPositive
	case res.Score < 0:
		res.Label = SentimentNegative
	}
	if total := pos + neg; total > 0 {
		res.Confidence = math.Abs(pos-neg) / total * 100
	}

	for _, phrase := range s.spamTerms {
		res.SpamPhraseHits += countPhrase(folded, phrase)
	}
	res.IsSpammy = res.SpamPhraseHits > s.cfg.SpamminessThreshold
	return res
}
