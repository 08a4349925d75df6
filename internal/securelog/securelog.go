// Package securelog keeps credentials and personal data out of log output.
// Attributes whose key names a secret are replaced with [REDACTED], and
// e-mail addresses inside string values are masked to "ta***@example.com".
package securelog

import (
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// Redacted replaces the value of any sensitive attribute.
const Redacted = "[REDACTED]"

// sensitiveKeys are matched case-insensitively as substrings of attr keys.
var sensitiveKeys = []string{"password", "token", "secret", "key", "auth", "credential"}

// sensitiveValueMarkers redact a whole string value that carries a
// credential as a parameter, e.g. a reset URL with "?token_hash=...".
var sensitiveValueMarkers = []string{"token=", "token_hash=", "key=", "password=", "access_token", "refresh_token"}

var emailRe = regexp.MustCompile(`([a-zA-Z0-9._%+-]+)@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)

// IsSensitiveKey reports whether an attribute key names a secret.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// MaskEmail masks every e-mail address in s. The first two characters of
// the local part survive when it is longer than two characters.
func MaskEmail(s string) string {
	return emailRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := emailRe.FindStringSubmatch(match)
		user, domain := parts[1], parts[2]
		if len(user) > 2 {
			return user[:2] + "***@" + domain
		}
		return "***@" + domain
	})
}

// MaskString applies e-mail masking and redacts values that mention a
// credential.
func MaskString(s string) string {
	s = MaskEmail(s)
	for _, m := range sensitiveValueMarkers {
		if strings.Contains(s, m) {
			return Redacted
		}
	}
	return s
}

// Redact returns a copy of data with sensitive keys redacted and strings
// masked, descending into nested maps and slices.
func Redact(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if IsSensitiveKey(k) {
			out[k] = Redacted
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return MaskString(val)
	case map[string]any:
		return Redact(val)
	case []any:
		masked := make([]any, len(val))
		for i, item := range val {
			masked[i] = redactValue(item)
		}
		return masked
	default:
		return v
	}
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr that applies the
// redaction rules. Built-in keys (time, level, msg, source) pass through.
func ReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch a.Key {
		case slog.TimeKey, slog.LevelKey, slog.MessageKey, slog.SourceKey:
			return a
		}
	}

	if IsSensitiveKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, MaskString(v.String()))
	case slog.KindAny:
		if m, ok := v.Any().(map[string]any); ok {
			return slog.Any(a.Key, Redact(m))
		}
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, MaskEmail(err.Error()))
		}
	}
	return a
}

// Options configures NewHandler.
type Options struct {
	// JSON selects the JSON handler; text otherwise.
	JSON  bool
	Level slog.Leveler
}

// NewHandler builds a text or JSON handler with ReplaceAttr installed.
func NewHandler(w io.Writer, opts Options) slog.Handler {
	ho := &slog.HandlerOptions{Level: opts.Level, ReplaceAttr: ReplaceAttr}
	if opts.JSON {
		return slog.NewJSONHandler(w, ho)
	}
	return slog.NewTextHandler(w, ho)
}
