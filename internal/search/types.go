// Package search finds past diary entries by keyword or by embedding
// similarity.
package search

import "github.com/kamusis/sentari/internal/diary"

// Match reasons.
const (
	WhyKeyword  = "keyword"
	WhySemantic = "semantic"
)

// Result represents one matched history entry.
type Result struct {
	Entry diary.HistoryEntry
	Score float64
	Why   string
}
