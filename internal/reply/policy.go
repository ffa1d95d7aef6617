// Package reply picks the short empathic response returned for each entry.
package reply

import (
	"unicode/utf8"

	"github.com/kamusis/sentari/internal/diary"
)

const (
	// DefaultProfileAfter is the number of stored entries after which
	// replies switch to the profile strategy: the 100th entry is the first.
	DefaultProfileAfter = 99
	// DefaultMaxChars caps every reply.
	DefaultMaxChars = 55

	ellipsis = "..."
)

// Strategy names the decision table a reply came from.
type Strategy string

const (
	StrategyDefault Strategy = "default"
	StrategyProfile Strategy = "profile"
)

// Input is everything the selector looks at. EntryIndex is the number of
// entries stored before this one.
type Input struct {
	RawText    string
	Entry      *diary.ClassifiedEntry
	Meta       *diary.Metadata
	CarryIn    bool
	Flip       bool
	Profile    *diary.Profile
	EntryIndex int
}

// Reply is the selected text and the strategy that produced it.
type Reply struct {
	Text     string
	Strategy Strategy
}

// Policy chooses between strategies and bounds the reply length, both
// measured in characters (runes).
type Policy struct {
	ProfileAfter int
	MaxChars     int
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{ProfileAfter: DefaultProfileAfter, MaxChars: DefaultMaxChars}
}

// Strategy returns the strategy used for the entry at entryIndex.
func (p Policy) Strategy(entryIndex int) Strategy {
	if p.ProfileAfter > 0 && entryIndex >= p.ProfileAfter {
		return StrategyProfile
	}
	return StrategyDefault
}

// Select runs the strategy chosen for in.EntryIndex and clamps the result.
func (p Policy) Select(in Input) Reply {
	s := p.Strategy(in.EntryIndex)
	var text string
	switch s {
	case StrategyProfile:
		text = ProfileBased(in)
	default:
		text = Default(in)
	}
	return Reply{Text: p.Clamp(text), Strategy: s}
}

// Clamp shortens text to MaxChars runes, replacing the tail with "..." when
// it has to cut. MaxChars never lifts the limit above DefaultMaxChars.
func (p Policy) Clamp(text string) string {
	limit := p.MaxChars
	if limit <= 0 || limit > DefaultMaxChars {
		limit = DefaultMaxChars
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	keep := limit - len(ellipsis)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(text)
	return string(runes[:keep]) + ellipsis
}
