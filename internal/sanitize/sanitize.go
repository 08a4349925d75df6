// Package sanitize strips markup from user-entered text before it is stored.
// Usernames and workspace names are plain text: every tag and attribute is
// dropped while the text content is kept.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared strict policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// HTML removes every element and attribute from input and returns the
// remaining text, still HTML-escaped. Safe to embed in markup.
func HTML(input string) string {
	if input == "" {
		return ""
	}
	return getPolicy().Sanitize(input)
}

// Text removes all markup and returns plain, unescaped text with
// surrounding whitespace trimmed. Use for fields that are rendered as text
// (JSON values), never as raw HTML.
func Text(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(HTML(input)))
}
