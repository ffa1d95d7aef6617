// Package continuity decides how a new entry relates to what came before:
// whether it carries in a recent theme or mood, and whether it flips away
// from the user's dominant vibe.
package continuity

import (
	"fmt"
	"math"

	"github.com/kamusis/sentari/internal/diary"
	"github.com/kamusis/sentari/internal/vector"
	"go.uber.org/zap"
)

// DefaultThreshold is the cosine similarity an entry must strictly exceed to
// carry in without any shared label.
const DefaultThreshold = 0.86

// Signals reported in trace records and decisions.
const (
	SignalTheme      = "theme_overlap"
	SignalVibe       = "vibe_overlap"
	SignalSimilarity = "similarity"
	SignalNone       = "none"
)

// Decision explains a carry-in verdict.
type Decision struct {
	CarryIn        bool
	Signal         string
	Similarity     float64
	MatchedEntryID string
}

// Detector evaluates carry-in against a window of recent entries.
type Detector struct {
	Threshold float64
	Logger    *zap.Logger
}

// NewDetector returns a detector with the given threshold. A non-positive
// threshold selects DefaultThreshold; a nil logger discards trace records.
func NewDetector(threshold float64, logger *zap.Logger) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{Threshold: threshold, Logger: logger}
}

// Detect reports whether entry continues any of recent. The first recent entry
// that shares a theme, shares a vibe or has similarity above the threshold
// decides the result.
//
// Embeddings are checked before any comparison: a non-empty recent embedding
// whose length differs from a non-empty emb is a *diary.ValidationError. An
// empty embedding on either side never matches by similarity.
func (d *Detector) Detect(entry diary.ClassifiedEntry, emb []float32, recent []diary.HistoryEntry) (Decision, error) {
	if len(emb) > 0 {
		for _, h := range recent {
			if len(h.Embedding) > 0 && len(h.Embedding) != len(emb) {
				err := &diary.ValidationError{
					Field:  "embedding",
					Reason: fmt.Sprintf("entry %s has %d dims, new entry has %d", h.ID, len(h.Embedding), len(emb)),
					Err:    vector.ErrVectorLengthMismatch,
				}
				d.Logger.Debug("carry-in rejected",
					zap.String("category", "carry_in"),
					zap.Error(err))
				return Decision{Signal: SignalNone, Similarity: math.NaN()}, err
			}
		}
	}

	dec := Decision{Signal: SignalNone, Similarity: math.NaN()}
	for _, h := range recent {
		sim, err := vector.Cosine(h.Embedding, emb)
		if err != nil {
			// Lengths were checked above, so one side has no embedding.
			sim = math.NaN()
		}
		if math.IsNaN(dec.Similarity) || sim > dec.Similarity {
			dec.Similarity = sim
		}

		signal := ""
		switch {
		case diary.Overlaps(entry.Theme, h.Classified.Theme):
			signal = SignalTheme
		case diary.Overlaps(entry.Vibe, h.Classified.Vibe):
			signal = SignalVibe
		case sim > d.Threshold:
			signal = SignalSimilarity
		}
		if signal != "" {
			dec = Decision{CarryIn: true, Signal: signal, Similarity: sim, MatchedEntryID: h.ID}
			break
		}
	}

	d.Logger.Debug("carry-in evaluated",
		zap.String("category", "carry_in"),
		zap.Bool("decision", dec.CarryIn),
		zap.String("signal", dec.Signal),
		zap.Float64("similarity", dec.Similarity),
		zap.Int("recent", len(recent)),
		zap.Strings("theme", entry.Theme),
		zap.Strings("vibe", entry.Vibe))
	return dec, nil
}

// CarryIn is Detect reduced to its verdict.
func (d *Detector) CarryIn(entry diary.ClassifiedEntry, emb []float32, recent []diary.HistoryEntry) (bool, error) {
	dec, err := d.Detect(entry, emb, recent)
	return dec.CarryIn, err
}
