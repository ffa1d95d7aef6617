package search

import (
	"fmt"
	"math"

	"github.com/kamusis/sentari/internal/diary"
	"github.com/kamusis/sentari/internal/vector"
)

// SemanticSearch ranks entries by cosine similarity to query. Entries
// without an embedding are skipped, as are scores below minScore when
// minScore > 0. An embedding of a different length than query is an error.
func SemanticSearch(entries []diary.HistoryEntry, query []float32, minScore float64, limit int) ([]Result, error) {
	out := []Result{}
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		score, err := vector.Cosine(query, e.Embedding)
		if err != nil {
			return nil, fmt.Errorf("cannot score entry %s: %w", e.ID, err)
		}
		if math.IsNaN(score) {
			continue
		}
		if minScore > 0 && score < minScore {
			continue
		}
		out = append(out, Result{Entry: e, Score: score, Why: WhySemantic})
	}

	SortResults(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
