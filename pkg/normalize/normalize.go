// Package normalize holds the text helpers used by the cleaning rules:
// whitespace collapsing, ASCII transliteration and partition slugs.
package normalize

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// UnknownSlug names the partition for values that fold to nothing.
const UnknownSlug = "unknown"

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold transliterates s to plain ASCII. Combining marks are stripped first;
// unidecode then spells out everything else, so "Łódź" reads "Lodz" and
// "Москва" reads "Moskva".
func Fold(s string) string {
	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		stripped = s
	}
	return unidecode.Unidecode(stripped)
}

// CollapseSpaces replaces every run of whitespace with a single space and
// trims both ends.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Text is the normalization applied to state, city and country:
// lower-cased, trimmed and folded to ASCII.
func Text(s string) string {
	return strings.TrimSpace(strings.ToLower(Fold(strings.TrimSpace(s))))
}

// Slug turns a value into a file stem. It is the folded, lower-cased value
// with whitespace, path separators and control characters replaced by "_"
// and leading dots removed. A value with nothing left maps to UnknownSlug.
func Slug(s string) string {
	folded := strings.ToLower(strings.TrimSpace(Fold(strings.TrimSpace(s))))

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r == '/', r == '\\', unicode.IsSpace(r), unicode.IsControl(r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}

	slug := strings.TrimLeft(b.String(), ".")
	if strings.Trim(slug, "_") == "" {
		return UnknownSlug
	}
	return slug
}
