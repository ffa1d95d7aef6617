package analysis

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kamusis/sentari/internal/diary"
)

// dominanceRatio is how far the best theme must lead the runner-up to be
// reported alone.
const dominanceRatio = 1.5

var conflictRe = regexp.MustCompile(`\b(?:but|however)\b`)

type keyword struct {
	text string
	word *regexp.Regexp
}

type keywordLabel struct {
	label    string
	weight   float64
	keywords []keyword
}

type patternLabel struct {
	label    string
	patterns []*regexp.Regexp
}

// Classifier maps entry text to label sets. It is immutable once built and
// safe for concurrent use.
type Classifier struct {
	themes   []keywordLabel
	vibes    []keywordLabel
	traits   []keywordLabel
	buckets  []keywordLabel
	intents  []patternLabel
	subtexts []patternLabel
}

// NewClassifier compiles r. A nil r selects the built-in tables.
func NewClassifier(r *Rules) (*Classifier, error) {
	if r == nil {
		def, err := DefaultRules()
		if err != nil {
			return nil, err
		}
		r = def
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	intents, err := compilePatterns(r.Intents)
	if err != nil {
		return nil, err
	}
	subtexts, err := compilePatterns(r.Subtexts)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		themes:   compileKeywords(r.Themes),
		vibes:    compileKeywords(r.Vibes),
		traits:   compileKeywords(r.Traits),
		buckets:  compileKeywords(r.Buckets),
		intents:  intents,
		subtexts: subtexts,
	}, nil
}

func compileKeywords(rules []KeywordRule) []keywordLabel {
	out := make([]keywordLabel, 0, len(rules))
	for _, r := range rules {
		kl := keywordLabel{label: r.Label, weight: r.Weight}
		if kl.weight == 0 {
			kl.weight = 1
		}
		for _, k := range r.Keywords {
			k = strings.ToLower(k)
			kl.keywords = append(kl.keywords, keyword{
				text: k,
				word: regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`),
			})
		}
		out = append(out, kl)
	}
	return out
}

func compilePatterns(rules []PatternRule) ([]patternLabel, error) {
	out := make([]patternLabel, 0, len(rules))
	for _, r := range rules {
		pl := patternLabel{label: r.Label}
		for _, p := range r.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, err
			}
			pl.patterns = append(pl.patterns, re)
		}
		out = append(out, pl)
	}
	return out, nil
}

// Classify reads text (normalized; case does not matter) into a
// ClassifiedEntry. Every set in the result is non-empty.
func (c *Classifier) Classify(text string) diary.ClassifiedEntry {
	lower := strings.ToLower(text)
	return diary.ClassifiedEntry{
		Theme:   c.Themes(lower),
		Vibe:    matchAny(c.vibes, lower, diary.DefaultVibe),
		Intent:  c.intent(lower),
		Subtext: c.subtext(lower),
		Traits:  matchAny(c.traits, lower, diary.DefaultTrait),
		Buckets: matchAny(c.buckets, lower, diary.DefaultBucket),
	}
}

// ThemeScore is the weighted keyword score of one theme label.
type ThemeScore struct {
	Label string
	Score float64
}

// ScoreThemes returns every theme with a positive score, best first. Equal
// scores keep table order.
func (c *Classifier) ScoreThemes(lower string) []ThemeScore {
	var scores []ThemeScore
	for _, t := range c.themes {
		var s float64
		for _, k := range t.keywords {
			n := strings.Count(lower, k.text)
			if n == 0 {
				continue
			}
			s += float64(n)
			if k.word.MatchString(lower) {
				s += 0.5
			}
		}
		if s > 0 {
			scores = append(scores, ThemeScore{Label: t.label, Score: s * t.weight})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores
}

// Themes returns the top theme alone when it beats the runner-up by more than
// dominanceRatio, otherwise the top two.
func (c *Classifier) Themes(lower string) []string {
	scores := c.ScoreThemes(lower)
	switch {
	case len(scores) == 0:
		return []string{diary.DefaultTheme}
	case len(scores) == 1 || scores[0].Score > dominanceRatio*scores[1].Score:
		return []string{scores[0].Label}
	default:
		return []string{scores[0].Label, scores[1].Label}
	}
}

func matchAny(table []keywordLabel, lower, fallback string) []string {
	var out []string
	for _, kl := range table {
		for _, k := range kl.keywords {
			if strings.Contains(lower, k.text) {
				out = append(out, kl.label)
				break
			}
		}
	}
	if len(out) == 0 {
		return []string{fallback}
	}
	return out
}

func firstPattern(table []patternLabel, lower string) (string, bool) {
	for _, pl := range table {
		for _, re := range pl.patterns {
			if re.MatchString(lower) {
				return pl.label, true
			}
		}
	}
	return "", false
}

func (c *Classifier) intent(lower string) string {
	if label, ok := firstPattern(c.intents, lower); ok {
		return label
	}
	if conflictRe.MatchString(lower) {
		return diary.IntentConflict
	}
	return diary.IntentDefault
}

func (c *Classifier) subtext(lower string) string {
	if label, ok := firstPattern(c.subtexts, lower); ok {
		return label
	}
	switch {
	case strings.Contains(lower, "!") && (strings.Contains(lower, "tired") || strings.Contains(lower, "exhausted")):
		return diary.SubtextVenting
	case strings.Contains(lower, "?") && strings.Contains(lower, "scared"):
		return diary.SubtextSeeking
	}
	return diary.SubtextDefault
}
