// Package journal provides journal record value types and pure functions.
package journal

import (
	"regexp"
	"strings"
	"time"
)

// ReflectionType identifies which guided flow produced a journal.
type ReflectionType string

const (
	ReflectionDaily ReflectionType = "daily"
	ReflectionEvent ReflectionType = "event"
)

// TitleSource records where a journal's display title came from.
type TitleSource string

const (
	TitleSourceAI      TitleSource = "ai"
	TitleSourceDefault TitleSource = "default"
	TitleSourceManual  TitleSource = "manual"
)

// MaxTitleLength bounds generated and manual titles.
const MaxTitleLength = 60

// Journal represents a saved reflection (value type).
type Journal struct {
	ID               string
	UserID           string
	Summary          string
	ReflectionType   ReflectionType
	Saved            bool
	Title            string
	GeneratedTitle   string
	TitleSource      TitleSource
	TitleModel       string
	TitleGeneratedAt *time.Time
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

// Generated is the result of an AI title generation call.
type Generated struct {
	Title string
	Model string
}

// DefaultTitle returns the deterministic fallback title for a reflection type.
// This is a PURE function.
func DefaultTitle(t ReflectionType) string {
	switch t {
	case ReflectionDaily:
		return "Daily Reflection"
	case ReflectionEvent:
		return "Event Reflection"
	default:
		return "Journal Entry"
	}
}

// ValidType reports whether t is one of the known reflection types.
// This is a PURE function.
func ValidType(t ReflectionType) bool {
	return t == ReflectionDaily || t == ReflectionEvent
}

// Patterns for values that must never leave the service in a title prompt.
var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), // emails
	regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),                      // phone numbers
	regexp.MustCompile(`\b\d{3}[-\s]?\d{2}[-\s]?\d{4}\b`),                    // SSN
}

// RedactPII replaces emails, phone numbers, and SSNs with a placeholder.
// This is a PURE function.
func RedactPII(text string) string {
	for _, p := range piiPatterns {
		text = p.ReplaceAllString(text, "[REDACTED]")
	}
	return text
}

// PromptText prepares a summary for the title generator: PII redacted and
// truncated to limit runes.
// This is a PURE function.
func PromptText(summary string, limit int) string {
	redacted := RedactPII(summary)
	runes := []rune(redacted)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return redacted
}

// CleanTitle strips surrounding quotes and truncates to MaxTitleLength runes.
// This is a PURE function.
func CleanTitle(title string) string {
	title = strings.TrimSpace(title)
	title = strings.Trim(title, `"'`)
	runes := []rune(title)
	if len(runes) > MaxTitleLength {
		return string(runes[:MaxTitleLength])
	}
	return title
}
