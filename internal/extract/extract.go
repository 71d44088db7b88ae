// Package extract pulls the generated document and the follow-up suggestions out of a model reply.
//
// Model output is free-form text, so both passes scan tolerantly and fail open: a missing or
// malformed block yields nothing rather than an error.
package extract

import (
	"regexp"
	"strings"
)

const (
	// SuggestionsDelimiter wraps the suggestions payload. It appears twice in a reply.
	SuggestionsDelimiter = "<<<SUGGESTIONS>>>"

	// MaxSuggestions caps the number of suggestions attached to a message.
	MaxSuggestions = 3
)

var htmlFence = regexp.MustCompile("(?s)```html\\s*(.*?)\\s*```")

// ExtractHTML returns the content of the first ```html fenced block in text.
// Surrounding whitespace inside the fence is dropped. An empty block counts as no match.
func ExtractHTML(text string) (string, bool) {
	m := htmlFence.FindStringSubmatch(text)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// ExtractSuggestions returns up to MaxSuggestions quoted strings found between the first two
// occurrences of SuggestionsDelimiter. Returns nil when the delimiters or the strings are missing.
func ExtractSuggestions(text string) []string {
	payload, ok := between(text, SuggestionsDelimiter)
	if !ok || payload == "" {
		return nil
	}
	items := ScanQuotedStrings(payload)
	if len(items) == 0 {
		return nil
	}
	if len(items) > MaxSuggestions {
		items = items[:MaxSuggestions]
	}
	return items
}

// DisplayText returns the part of a streaming buffer that may be shown to the user:
// everything before the first suggestions delimiter.
func DisplayText(buffer string) string {
	if i := strings.Index(buffer, SuggestionsDelimiter); i >= 0 {
		return buffer[:i]
	}
	return buffer
}

func between(text, delim string) (string, bool) {
	start := strings.Index(text, delim)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(delim):]
	end := strings.Index(rest, delim)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
