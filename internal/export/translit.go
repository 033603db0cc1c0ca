package export

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// translitTable maps diacritic characters to their ASCII fallback in CSV
// output, for consumers whose tooling mangles non-ASCII bytes. The table is
// the full mapping; characters outside it pass through unchanged.
var translitTable = map[rune]rune{
	'ą': 'a',
	'ł': 'l',
	'Ś': 'S',
	'ś': 's',
	'ó': 'o',
	'ń': 'n',
	'ę': 'e',
}

// Transliterator returns a transformer applying the diacritic fallback table.
func Transliterator() transform.Transformer {
	return runes.Map(func(r rune) rune {
		if mapped, ok := translitTable[r]; ok {
			return mapped
		}
		return r
	})
}

// transliterate applies the fallback table to a string.
func transliterate(s string) string {
	out, _, err := transform.String(Transliterator(), s)
	if err != nil {
		return s
	}
	return out
}
