// Package profile folds classified entries into the long-lived per-user
// profile.
package profile

import "github.com/kamusis/sentari/internal/diary"

// Aggregate returns the profile that results from adding entry to current.
// current is never modified; a nil current starts from diary.NewProfile.
//
// Steps run in a fixed order: themes, vibes, dominant vibe, buckets, traits,
// then lastTheme is replaced by the entry's themes.
func Aggregate(current *diary.Profile, entry diary.ClassifiedEntry) *diary.Profile {
	next := current.Clone()

	for _, t := range entry.Theme {
		next.TopThemes = diary.AppendUnique(next.TopThemes, t)
		next.ThemeCount.Inc(t)
	}
	for _, v := range entry.Vibe {
		next.VibeCount.Inc(v)
	}
	next.DominantVibe = DominantVibe(next.VibeCount)
	for _, b := range entry.Buckets {
		next.BucketCount.Inc(b)
	}
	next.TraitPool = diary.AppendUnique(next.TraitPool, entry.Traits...)
	next.LastTheme = append(make([]string, 0, len(entry.Theme)), entry.Theme...)

	return next
}

// DominantVibe is the most counted vibe, ties going to the one seen first,
// or "neutral" when nothing has been counted.
func DominantVibe(vibes diary.Counter) string {
	if k, _, ok := vibes.Max(); ok {
		return k
	}
	return diary.DefaultVibe
}
