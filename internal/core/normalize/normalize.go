// Package normalize cleans upstream text before it reaches a record or a path.
// Text is the display form used for names, Title is used for regions and
// Slug is the filesystem form used for output file names
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// pooled chains; a transform.Transformer keeps state between calls
var (
	textPool = sync.Pool{
		New: func() any {
			return transform.Chain(
				norm.NFC,
				runes.Map(controlToSpace),
				runes.Remove(runes.In(unicode.Cf)), // ZWJ ZWNJ BOM soft hyphen
			)
		},
	}
	slugPool = sync.Pool{
		New: func() any {
			return transform.Chain(
				norm.NFKD,
				runes.Remove(runes.In(unicode.Mn)),
				norm.NFC,
			)
		},
	}
)

func controlToSpace(r rune) rune {
	if unicode.IsControl(r) {
		return ' '
	}
	return r
}

func apply(p *sync.Pool, s string) string {
	tr := p.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	p.Put(tr)
	if err != nil {
		return s
	}
	return out
}

// Text returns s as a single trimmed line: invalid UTF-8 dropped, NFC composed,
// control and format characters removed, whitespace runs collapsed to one space
func Text(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")
	return strings.Join(strings.Fields(apply(&textPool, s)), " ")
}

// Title returns Text(s) in title case ("NORTH america" -> "North America")
func Title(s string) string {
	s = Text(s)
	if s == "" {
		return ""
	}
	return cases.Title(language.English).String(s)
}

// Slug folds s to a lowercase ASCII name made of [a-z0-9_-].
// Diacritics are stripped first so "Curaçao" becomes "curacao"; every other rune becomes '_'
func Slug(s string) string {
	s = Text(s)
	if s == "" {
		return ""
	}
	s = strings.ToLower(apply(&slugPool, s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
