package document

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var markerReplacer = strings.NewReplacer(
	"\x00", "",
	"\ufeff", "",
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\r\n", "\n",
	"\r", "\n",
	"•", "- ",
	"·", "- ",
	"●", "- ",
)

// Normalize returns raw text with control markers removed, bullets made
// canonical and NFC composition applied. Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	// NFC can surface a replaceable rune (U+0387 composes to U+00B7) and
	// deleting a zero-width joiner can expose a composable pair, so iterate
	// until neither step changes the text.
	s := raw
	for {
		next := norm.NFC.String(markerReplacer.Replace(s))
		if next == s {
			return s
		}
		s = next
	}
}
