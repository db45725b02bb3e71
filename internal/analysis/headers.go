package analysis

import (
	"strings"
)

const (
	missingMessageIDPoints = 15
	missingDatePoints      = 10
	missingFromPoints      = 20
	maxReceivedHops        = 10
	excessiveHopsPoints    = 20
	failedAuthPoints       = 25
)

var authFailureMarkers = []string{"spf=fail", "dkim=fail", "dmarc=fail", "spf=softfail", "arc=fail"}

// ScoreHeaders scores the header set on missing mandatory fields, routing
// depth and failed authentication. Header names match case-insensitively;
// multiple Received headers are expected joined by newlines.
func (s *Suite) ScoreHeaders(headers map[string]string) Score {
	var score Score
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[strings.ToLower(strings.TrimSpace(k))] = v
	}

	if strings.TrimSpace(h["message-id"]) == "" {
		score.add(missingMessageIDPoints, "missing_message_id")
	}
	if strings.TrimSpace(h["date"]) == "" {
		score.add(missingDatePoints, "missing_date")
	}
	if strings.TrimSpace(h["from"]) == "" {
		score.add(missingFromPoints, "missing_from")
	}

	if ReceivedHops(h["received"]) > maxReceivedHops {
		score.add(excessiveHopsPoints, "excessive_received_hops")
	}

	if auth := strings.ToLower(h["authentication-results"]); auth != "" {
		compact := strings.ReplaceAll(auth, " ", "")
		for _, marker := range authFailureMarkers {
			if strings.Contains(compact, marker) {
				score.add(failedAuthPoints, "authentication_failed")
				break
			}
		}
	}

	return score
}

// ReceivedHops counts the hops recorded in a newline-joined Received value
func ReceivedHops(received string) int {
	hops := 0
	for _, line := range strings.Split(received, "\n") {
		if strings.TrimSpace(line) != "" {
			hops++
		}
	}
	return hops
}
