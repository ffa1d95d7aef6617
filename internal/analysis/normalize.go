// Package analysis turns raw diary text into structured signals: the
// normalized text, word and punctuation metadata, and the rule-based
// classification.
package analysis

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize trims leading and trailing whitespace and puts the text in
// Unicode NFC form so that composed and decomposed accents match the same
// keywords. Internal whitespace, newlines included, is kept verbatim.
func Normalize(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}
