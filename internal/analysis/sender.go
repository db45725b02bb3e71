package analysis

import (
	"strings"
)

// SuspiciousSender reports a no-reply address whose display name claims a
// known brand, a common impersonation pattern
func (s *Suite) SuspiciousSender(email, displayName string) bool {
	local := strings.ToLower(email)
	if i := strings.LastIndex(local, "@"); i >= 0 {
		local = local[:i]
	}
	noReply := false
	for _, m := range noReplyMarkers {
		if strings.Contains(local, m) {
			noReply = true
			break
		}
	}
	if !noReply {
		return false
	}

	name := s.text.Fold(displayName)
	for _, brand := range s.brandTerms {
		if countPhrase(name, brand) > 0 {
			return true
		}
	}
	return false
}

// TriggerPhraseHits returns the distinct spam trigger phrases present in text
func (s *Suite) TriggerPhraseHits(text string) []string {
	folded := s.text.Fold(text)
	var hits []string
	for _, phrase := range s.triggerTerms {
		if countPhrase(folded, phrase) > 0 {
			hits = append(hits, phrase)
		}
	}
	return hits
}
