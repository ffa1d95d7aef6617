package search

import (
	"strings"

	"github.com/kamusis/sentari/internal/diary"
)

// KeywordSearch searches entries by case-insensitive keyword matching over
// raw text, themes and vibes. All query tokens must match (AND semantics).
// Each hit scores the fraction of tokens that also match as whole labels.
func KeywordSearch(entries []diary.HistoryEntry, query string, limit int) []Result {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return []Result{}
	}

	out := []Result{}
	for _, e := range entries {
		labels := append(append([]string(nil), e.Classified.Theme...), e.Classified.Vibe...)
		blob := strings.ToLower(e.RawText + "\n" + strings.Join(labels, "\n"))
		ok := true
		labelHits := 0
		for _, tok := range tokens {
			if !strings.Contains(blob, tok) {
				ok = false
				break
			}
			if diary.Contains(labels, tok) {
				labelHits++
			}
		}
		if !ok {
			continue
		}
		score := 1 + float64(labelHits)/float64(len(tokens))
		out = append(out, Result{Entry: e, Score: score, Why: WhyKeyword})
	}

	SortResults(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func tokenize(q string) []string {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	parts := strings.Fields(q)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
