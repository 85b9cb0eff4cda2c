// internal/app/system/normalize/normalize.go
package normalize

import (
	"strings"
	"unicode"

	"github.com/dalemusser/waffle/pantry/text"
)

// Email trims and lowercases an address. Stored emails and lookups both go through it.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace and collapses inner runs to one space.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NameCI is the case- and accent-folded form stored in *_ci columns.
func NameCI(s string) string {
	return text.Fold(Name(s))
}

// Status trims and lowercases a status value.
func Status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Slug derives a URL-safe school slug: folded, ASCII letters and digits,
// single dashes between words.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range text.Fold(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			dash = false
		default:
			dash = true
		}
	}
	return b.String()
}
