package security

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	ipPattern    = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	emailPattern = regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)
)

// Redactor implements ports.Redactor with built-in patterns. Diffs pass
// through Redact before they reach a language model.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor creates a new redactor with default patterns.
func NewRedactor() *Redactor {
	patterns := []*regexp.Regexp{
		// OpenAI-style API keys
		regexp.MustCompile(`sk-[a-zA-Z0-9_\-]{20,}`),
		// Groq keys
		regexp.MustCompile(`gsk_[a-zA-Z0-9]{20,}`),
		// AWS keys
		regexp.MustCompile(`(?i)AKIA[0-9A-Z]{16}`),
		// Authorization headers
		regexp.MustCompile(`(?i)(?:authorization|auth|token):\s*Bearer\s+[a-zA-Z0-9._\-]+`),
		// JSON API key patterns
		regexp.MustCompile(`"(?:api_key|apiKey|API_KEY)":\s*"[^"]+"`),
		// Common password patterns
		regexp.MustCompile(`(?i)(?:password|passwd|pwd):\s*"[^"]+"`),
		// Google API keys
		regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
		// GitHub tokens (classic, OAuth, app, fine-grained)
		regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36}`),
		regexp.MustCompile(`github_pat_[a-zA-Z0-9_]{22,}`),
		// Private keys (PEM format start)
		regexp.MustCompile(`-----BEGIN (?:RSA |DSA |EC |OPENSSH )?PRIVATE KEY-----`),
	}
	return &Redactor{patterns: patterns}
}

// Redact removes sensitive patterns from text.
func (r *Redactor) Redact(text string) string {
	result := text
	for _, pattern := range r.patterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// RedactLog is more aggressive, also removing IP addresses and emails.
func (r *Redactor) RedactLog(text string) string {
	result := r.Redact(text)
	result = ipPattern.ReplaceAllString(result, "[IP]")
	result = emailPattern.ReplaceAllString(result, "[EMAIL]")
	return result
}

// SummarizeRedactions describes what was redacted.
func SummarizeRedactions(original, redacted string) string {
	if original == redacted {
		return "no redactions"
	}
	count := strings.Count(redacted, "[REDACTED]") - strings.Count(original, "[REDACTED]")
	return "removed " + strconv.Itoa(count) + " secret(s)"
}
