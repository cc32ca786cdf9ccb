package engine

import "strings"

// boilerplatePhrases are removed from answers in this order.
var boilerplatePhrases = []string{
	"Hello! ",
	"Hi there! ",
	"Sure! Here's the information you requested:",
	"Here is the information you requested:",
	"Based on the data retrieved from the tool,",
	"Based on the tool results,",
	"As an AI language model,",
	"Please note that this information may not be up to date.",
	"I hope this helps!",
	"Let me know if you have any other questions.",
	"Let me know if you need anything else.",
	"Is there anything else I can help you with?",
}

// invalidOutputMarkers flag text that leaks credentials or caller identity.
// Matched case-insensitively.
var invalidOutputMarkers = []string{
	"eyj", // base64 JSON header of a JWT
	"sk-proj-",
	"ghp_",
	"xoxb-",
	"secret code",
	"user_role",
	"token =",
	"bearer",
	"authorization",
}

// Sanitize removes boilerplate phrases, optionally flattens newlines into
// spaces, and trims. It repeats until the text stops changing, so
// Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string, stripNewlines bool) string {
	for {
		next := sanitizeOnce(s, stripNewlines)
		if next == s {
			return s
		}
		s = next
	}
}

func sanitizeOnce(s string, stripNewlines bool) string {
	for _, phrase := range boilerplatePhrases {
		s = strings.ReplaceAll(s, phrase, "")
	}
	if stripNewlines {
		s = strings.ReplaceAll(s, "\r\n", " ")
		s = strings.ReplaceAll(s, "\n", " ")
		s = strings.ReplaceAll(s, "\r", " ")
	}
	return strings.TrimSpace(s)
}

// ContainsInvalidOutput reports whether s contains any marker of leaked
// credentials or identity.
func ContainsInvalidOutput(s string) bool {
	lower := strings.ToLower(s)
	for _, marker := range invalidOutputMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
