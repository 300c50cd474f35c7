package summarize

import (
	"regexp"
	"strings"
)

var (
	urgentMarkers  = []string{"urgent", "important", "action required"}
	meetingMarkers = []string{"meeting", "calendar", "invite"}

	replyPrefix = regexp.MustCompile(`(?i)^(RE:|FWD:|FW:)\s*`)
)

// Rules returns the rule-based summary of an email.
func Rules(e Email) string {
	if strings.TrimSpace(e.Subject) == "" {
		return "No subject"
	}

	subject := strings.ToLower(e.Subject)
	switch {
	case containsAny(subject, urgentMarkers):
		return "URGENT: " + e.Subject
	case containsAny(subject, meetingMarkers):
		return "Meeting: " + e.Subject
	}
	return strings.TrimSpace(replyPrefix.ReplaceAllString(e.Subject, ""))
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// truncateWords keeps at most n whitespace separated words.
func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ")
}
