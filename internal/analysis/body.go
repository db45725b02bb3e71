package analysis

import (
	"regexp"
	"strings"
)

const (
	excessiveURLCount   = 5
	excessiveURLPoints  = 20
	shortenerPoints     = 15
	currencyPoints      = 10
	currencyPointsLimit = 30
	urgencyPoints       = 10
)

var (
	urlPattern      = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"'()\[\]]+`)
	currencyPattern = regexp.MustCompile(`(?i)[$€£¥]\s?\d[\d,.]*|\b\d[\d,.]*\s?(?:usd|eur|gbp|dollars?|euros?|pounds)\b`)
)

// ScoreBody scores a message body on link volume, link shorteners,
// money amounts and urgency phrasing
func (s *Suite) ScoreBody(body string) Score {
	var score Score
	if body == "" {
		return score
	}

	urls := ExtractURLs(body)
	if len(urls) > excessiveURLCount {
		score.add(excessiveURLPoints, "excessive_urls")
	}
	for _, u := range urls {
		if s.IsShortenedURL(u) {
			score.add(shortenerPoints, "url_shortener:"+urlHost(u))
		}
	}

	if n := len(currencyPattern.FindAllStringIndex(body, -1)); n > 0 {
		points := float64(n * currencyPoints)
		if points > currencyPointsLimit {
			points = currencyPointsLimit
		}
		score.add(points, "currency_mentions")
	}

	folded := s.text.Fold(body)
	for _, phrase := range s.urgencyTerms {
		for i := countPhrase(folded, phrase); i > 0; i-- {
			score.add(urgencyPoints, "urgency:"+phrase)
		}
	}

	return score
}

// ExtractURLs returns every link found in text, in order of appearance
func ExtractURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// CountLinks returns the number of links in text
func CountLinks(text string) int {
	return len(urlPattern.FindAllStringIndex(text, -1))
}

// IsShortenedURL reports whether the link points at a known shortener
func (s *Suite) IsShortenedURL(rawURL string) bool {
	host := urlHost(rawURL)
	for _, d := range s.shorteners {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func urlHost(rawURL string) string {
	host := strings.ToLower(rawURL)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.LastIndex(host, "@"); i >= 0 {
		host = host[i+1:]
	}
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}
