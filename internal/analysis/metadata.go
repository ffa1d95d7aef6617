package analysis

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kamusis/sentari/internal/diary"
)

const maxTopWords = 5

var (
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	hesitationRe = regexp.MustCompile(`\b(?:um+|uh+)\b|you know`)
)

var stopWords = map[string]struct{}{
	"and": {}, "are": {}, "but": {}, "for": {}, "that": {},
	"the": {}, "this": {}, "with": {}, "you": {},
}

// ExtractMetadata computes the top words, word count and punctuation flags
// of text. It never fails; empty text yields no top words, a zero word count
// and the single flag "none".
func ExtractMetadata(text string) diary.Metadata {
	lower := strings.ToLower(text)

	var order []string
	counts := make(map[string]int)
	for _, w := range strings.Fields(nonWordRe.ReplaceAllString(lower, "")) {
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	// Selection over first-seen order keeps ties stable.
	top := make([]string, 0, maxTopWords)
	used := make(map[string]bool, maxTopWords)
	for len(top) < maxTopWords && len(top) < len(order) {
		best := ""
		for _, w := range order {
			if used[w] {
				continue
			}
			if best == "" || counts[w] > counts[best] {
				best = w
			}
		}
		used[best] = true
		top = append(top, best)
	}

	return diary.Metadata{
		TopWords:         top,
		WordCount:        len(strings.Fields(lower)),
		PunctuationFlags: punctuationFlags(lower),
	}
}

func punctuationFlags(lower string) []string {
	var flags []string
	if strings.Contains(lower, "!") {
		flags = append(flags, diary.FlagExclamation)
	}
	if strings.Contains(lower, "?") {
		flags = append(flags, diary.FlagQuestion)
	}
	if strings.Contains(lower, "...") || hesitationRe.MatchString(lower) {
		flags = append(flags, diary.FlagHesitation)
	}
	if len(flags) == 0 {
		return []string{diary.NoFlags}
	}
	return flags
}
