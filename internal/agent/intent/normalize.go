// Package intent implements the deterministic intent layer of the dialog
// engine: text normalization, the intent catalog, and the cascading matcher
// that maps free text to a catalog entry without any model call.
package intent

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize lowercases the text, removes diacritics, and trims surrounding
// whitespace. Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	stripped, _, err := transform.String(stripAccents, text)
	if err != nil {
		stripped = text
	}
	return strings.TrimSpace(strings.ToLower(stripped))
}
