package observability

import (
	"strings"
	"unicode"
)

const defaultStringLimit = 256

// sanitizeString strips control runes (keeping whitespace) and bounds the
// length, so request-derived values cannot forge or flood log lines.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = defaultStringLimit
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, value)

	runes := []rune(cleaned)
	if len(runes) > limit {
		runes = runes[:limit]
	}
	return string(runes)
}

// SanitizeRoute bounds a matched route pattern for log fields. An empty
// match (no route hit) logs as "/".
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, 180)
}

// SanitizeMethod bounds the HTTP method for log fields.
func SanitizeMethod(method string) string {
	return sanitizeString(method, 10)
}

// SanitizeUserID bounds tenant and user identifiers before they reach a
// log line.
func SanitizeUserID(id string) string {
	if id == "" {
		return ""
	}
	return sanitizeString(id, 64)
}
