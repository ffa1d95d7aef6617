// Package diary holds the data model shared by every stage of the entry
// pipeline: classified entries, metadata, stored history and the per-user
// profile.
package diary

import "time"

// Fallback labels used when no rule matches. Classification never returns an
// empty category.
const (
	DefaultTheme  = "general"
	DefaultVibe   = "neutral"
	DefaultTrait  = "reflective"
	DefaultBucket = "Thought"
	NoFlags       = "none"
)

// Punctuation flags produced by the metadata extractor.
const (
	FlagExclamation = "has_exclamation"
	FlagQuestion    = "has_question"
	FlagHesitation  = "has_hesitation"
)

// Tone fallbacks for intent and subtext.
const (
	IntentConflict = "Expressing internal conflict or mixed feelings"
	IntentDefault  = "Expressing thoughts, feelings, or observations"
	SubtextVenting = "Expressing frustration with current state"
	SubtextSeeking = "Seeking reassurance or validation"
	SubtextDefault = "General reflection or observation without specific underlying concern"
)

// ClassifiedEntry is the rule-based reading of one diary entry. Theme, Vibe,
// Traits and Buckets are never empty.
type ClassifiedEntry struct {
	Theme   []string `json:"theme"`
	Vibe    []string `json:"vibe"`
	Intent  string   `json:"intent"`
	Subtext string   `json:"subtext"`
	Traits  []string `json:"persona_trait"`
	Buckets []string `json:"bucket"`
}

// Clone returns a deep copy of e.
func (e ClassifiedEntry) Clone() ClassifiedEntry {
	return ClassifiedEntry{
		Theme:   cloneStrings(e.Theme),
		Vibe:    cloneStrings(e.Vibe),
		Intent:  e.Intent,
		Subtext: e.Subtext,
		Traits:  cloneStrings(e.Traits),
		Buckets: cloneStrings(e.Buckets),
	}
}

// Metadata is the word-frequency and punctuation summary of an entry.
type Metadata struct {
	TopWords         []string `json:"top_words"`
	WordCount        int      `json:"word_count"`
	PunctuationFlags []string `json:"punctuation_flags"`
}

// HasFlag reports whether flag is among the entry's punctuation flags.
func (m Metadata) HasFlag(flag string) bool {
	return Contains(m.PunctuationFlags, flag)
}

// HistoryEntry is a stored, immutable entry. "Recent" means ordered by
// Timestamp, newest first.
type HistoryEntry struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	RawText       string          `json:"raw_text"`
	Classified    ClassifiedEntry `json:"parsed"`
	Meta          Metadata        `json:"meta"`
	Embedding     []float32       `json:"embedding,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	CarryIn       bool            `json:"carry_in"`
	EmotionalFlip bool            `json:"emotional_flip"`
	ResponseText  string          `json:"response_text,omitempty"`
}

// Clone returns a deep copy of h.
func (h HistoryEntry) Clone() HistoryEntry {
	out := h
	out.Classified = h.Classified.Clone()
	out.Meta = Metadata{
		TopWords:         cloneStrings(h.Meta.TopWords),
		WordCount:        h.Meta.WordCount,
		PunctuationFlags: cloneStrings(h.Meta.PunctuationFlags),
	}
	if h.Embedding != nil {
		out.Embedding = make([]float32, len(h.Embedding))
		copy(out.Embedding, h.Embedding)
	}
	return out
}

// Profile is the long-lived per-user aggregate of every processed entry.
type Profile struct {
	TopThemes    []string `json:"top_themes"`
	ThemeCount   Counter  `json:"theme_count"`
	DominantVibe string   `json:"dominant_vibe"`
	VibeCount    Counter  `json:"vibe_count"`
	BucketCount  Counter  `json:"bucket_count"`
	TraitPool    []string `json:"trait_pool"`
	LastTheme    []string `json:"last_theme"`
}

// NewProfile returns the empty profile a user starts with.
func NewProfile() *Profile {
	return &Profile{
		TopThemes:    []string{},
		DominantVibe: DefaultVibe,
		TraitPool:    []string{},
		LastTheme:    []string{},
	}
}

// Clone returns a deep copy of p. Mutating the copy never affects p.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return NewProfile()
	}
	return &Profile{
		TopThemes:    nonNil(cloneStrings(p.TopThemes)),
		ThemeCount:   p.ThemeCount.Clone(),
		DominantVibe: p.DominantVibe,
		VibeCount:    p.VibeCount.Clone(),
		BucketCount:  p.BucketCount.Clone(),
		TraitPool:    nonNil(cloneStrings(p.TraitPool)),
		LastTheme:    nonNil(cloneStrings(p.LastTheme)),
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
