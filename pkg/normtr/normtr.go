// Package normtr canonicalizes Turkish guest names for matching.
package normtr

import "strings"

// folder maps the six Turkish letters plus the common accented vowels seen
// in booking data to their ASCII base letters. Applied after lowercasing.
var folder = strings.NewReplacer(
	"ç", "c",
	"ğ", "g",
	"ı", "i",
	"ö", "o",
	"ş", "s",
	"ü", "u",
	"â", "a", "á", "a", "à", "a", "ä", "a",
	"î", "i", "í", "i", "ì", "i", "ï", "i",
	"û", "u", "ú", "u", "ù", "u",
)

// Normalize converts a free-text name to its canonical search key:
// lowercased, trimmed, internal whitespace runs collapsed to one space,
// Turkish diacritics folded to ASCII. The result is for matching only and is
// never shown to users. Normalize is idempotent and never fails; blank input
// yields "".
func Normalize(s string) string {
	// Go lowercases dotted capital İ (U+0130) to "i" plus a combining dot,
	// which would defeat exact matching. Fold it before ToLower.
	s = strings.ReplaceAll(s, "İ", "i")
	s = strings.ToLower(s)
	s = folder.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
