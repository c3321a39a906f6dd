package util

import "strings"

// SanitizeText makes user text storable in a postgres text column: invalid
// UTF-8 and NUL bytes are dropped and surrounding whitespace is trimmed.
func SanitizeText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	sanitized = strings.ReplaceAll(sanitized, "\x00", "")
	return strings.TrimSpace(sanitized)
}
