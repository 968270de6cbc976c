package security

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxTextLength caps free-text fields after sanitization.
	MaxTextLength = 1000
	// MaxRepositoryNameLength caps repository-name-like fields.
	MaxRepositoryNameLength = 100
	// MaxTagLength caps release-tag-like fields.
	MaxTagLength = 128
	// MaxArrayElements caps array fields copied from untrusted payloads.
	MaxArrayElements = 10
)

// SanitizeString strips control and null bytes, trims surrounding
// whitespace, and caps the result at max characters. The cap counts runes,
// never splitting a multi-byte character. A max of zero or less falls back
// to MaxTextLength.
func SanitizeString(value string, max int) string {
	if max <= 0 {
		max = MaxTextLength
	}

	var b strings.Builder

	b.Grow(len(value))

	for _, r := range value {
		if r == 0 || unicode.IsControl(r) {
			continue
		}

		b.WriteRune(r)
	}

	cleaned := strings.TrimSpace(b.String())
	if utf8.RuneCountInString(cleaned) > max {
		runes := []rune(cleaned)
		cleaned = string(runes[:max])
	}

	return cleaned
}

// SanitizeRepositoryName keeps only characters valid in owner/repo
// coordinates and caps the length.
func SanitizeRepositoryName(value string) string {
	return filterAllowed(SanitizeString(value, MaxRepositoryNameLength), isRepositoryNameRune)
}

// SanitizeTag keeps only characters valid in release tags and caps the length.
func SanitizeTag(value string) string {
	return filterAllowed(SanitizeString(value, MaxTagLength), isTagRune)
}

// AllowlistCopy returns a new map containing only the permitted fields of an
// untrusted payload. String values are sanitized and array values are capped
// at MaxArrayElements entries; everything else is copied as-is.
func AllowlistCopy(payload map[string]any, fields []string) map[string]any {
	result := make(map[string]any, len(fields))

	for _, field := range fields {
		value, exists := payload[field]
		if !exists {
			continue
		}

		switch v := value.(type) {
		case string:
			result[field] = SanitizeString(v, MaxTextLength)
		case []any:
			if len(v) > MaxArrayElements {
				v = v[:MaxArrayElements]
			}

			copied := make([]any, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					copied = append(copied, SanitizeString(s, MaxTextLength))
				} else {
					copied = append(copied, item)
				}
			}

			result[field] = copied
		default:
			result[field] = value
		}
	}

	return result
}

func filterAllowed(value string, allowed func(rune) bool) string {
	var b strings.Builder

	b.Grow(len(value))

	for _, r := range value {
		if allowed(r) {
			b.WriteRune(r)
		}
	}

	return b.String()
}

func isRepositoryNameRune(r rune) bool {
	return r >= 'a' && r <= 'z' ||
		r >= 'A' && r <= 'Z' ||
		r >= '0' && r <= '9' ||
		r == '-' || r == '_' || r == '.' || r == '/'
}

func isTagRune(r rune) bool {
	return isRepositoryNameRune(r) || r == '+'
}
