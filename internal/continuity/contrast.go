package continuity

import (
	"github.com/kamusis/sentari/internal/diary"
	"go.uber.org/zap"
)

// Checker detects an emotional flip against the profile's dominant vibe.
type Checker struct {
	Logger *zap.Logger
}

// NewChecker returns a checker; a nil logger discards trace records.
func NewChecker(logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{Logger: logger}
}

// Flip reports whether entry's vibes leave out the profile's dominant vibe.
// It is false when the profile is nil, has no dominant vibe, or the entry has
// no vibes.
func (c *Checker) Flip(entry diary.ClassifiedEntry, p *diary.Profile) bool {
	dominant := ""
	if p != nil {
		dominant = p.DominantVibe
	}
	flip := dominant != "" && len(entry.Vibe) > 0 && !diary.Contains(entry.Vibe, dominant)
	signal := "vibe_match"
	switch {
	case dominant == "" || len(entry.Vibe) == 0:
		signal = SignalNone
	case flip:
		signal = "vibe_mismatch"
	}
	c.Logger.Debug("contrast evaluated",
		zap.String("category", "contrast_check"),
		zap.Bool("decision", flip),
		zap.String("signal", signal),
		zap.String("dominant_vibe", dominant),
		zap.Strings("vibe", entry.Vibe))
	return flip
}
