package domain

import (
	"strings"
	"unicode"
)

// NormalizeEmployeeRef prepares an employee reference for storage and comparison:
//   - trims leading/trailing whitespace
//   - drops formatting punctuation ('.', '-', '/') and inner spaces
//   - upper-cases letters
//
// "123.456.789-09" and "12345678909" normalize to the same ref.
func NormalizeEmployeeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(ref))
	for _, r := range ref {
		switch {
		case r == '.' || r == '-' || r == '/' || unicode.IsSpace(r):
			continue
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
