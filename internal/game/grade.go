package game

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD and drops combining marks, so "Mbappé"
// normalizes to "mbappe".
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeAnswer lowercases, strips diacritics and punctuation, and trims
// surrounding whitespace.
func NormalizeAnswer(s string) string {
	lowered := strings.ToLower(s)
	stripped, _, err := transform.String(stripMarks, lowered)
	if err != nil {
		stripped = lowered
	}
	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// IsMatch grades a free-text answer against the canonical player name.
// Deliberately lenient: the full name or the surname alone both count, and
// the comparison ignores case, accents, and punctuation.
func IsMatch(userAnswer, canonicalAnswer string) bool {
	user := NormalizeAnswer(userAnswer)
	canonical := NormalizeAnswer(canonicalAnswer)

	if user == canonical {
		return true
	}

	parts := strings.Fields(canonical)
	if len(parts) == 0 {
		return false
	}
	return user == parts[len(parts)-1]
}
