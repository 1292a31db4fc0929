package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugInvalid   = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSeparator = regexp.MustCompile(`[-\s]+`)
)

// Slugify turns text into a lower-case ASCII identifier: "Chalet Müller" becomes "chalet-muller".
func Slugify(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	ascii, _, err := transform.String(t, text)
	if err != nil {
		ascii = text
	}

	ascii = strings.ToLower(ascii)
	ascii = slugInvalid.ReplaceAllString(ascii, "")
	ascii = slugSeparator.ReplaceAllString(ascii, "-")
	return strings.Trim(ascii, "-")
}
