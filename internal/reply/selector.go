package reply

import "github.com/kamusis/sentari/internal/diary"

// Fallback is returned when a required input is missing.
const Fallback = "Thanks for sharing! I'm here for you 🤗"

// Default-strategy templates.
const (
	msgQuestion      = "Great questions! Trust your instincts 💭"
	msgHesitant      = "It's okay to feel uncertain. You're not alone 🤗"
	msgExcited       = "That's amazing! Your energy is contagious! 🌟"
	msgWorkWin       = "You're crushing it! Keep up the great work! 💪"
	msgConnection    = "Love that connection! Relationships are everything ❤️"
	msgHealthWin     = "Your health journey is inspiring! Keep going! 🌱"
	msgLearning      = "Learning is beautiful! Keep exploring! 📚"
	msgShine         = "You're doing great! Keep shining! ✨"
	msgWorkStress    = "Work stress is tough. You've got this! 💪"
	msgHealthCare    = "Your health matters. Take care of yourself! 🌱"
	msgRelationsHard = "Relationships can be complex. You're handling it well 🤗"
	msgBetterDays    = "I hear you. Better days are coming! 🌅"
	msgDeepThoughts  = "Deep thoughts! You're growing every day 🌱"
)

// Profile-strategy templates.
const (
	msgContinuity     = "You're really exploring this! Love the consistency 🔄"
	msgShiftUp        = "Love this shift! You're finding your groove! ✨"
	msgToughDay       = "It's okay to have tough days. You're still amazing! 💪"
	msgShiftOther     = "A different mood today. That's okay too 🌗"
	msgStillPositive  = "Your positivity is inspiring! Keep it up! 🌟"
	msgStillHeavy     = "Still carrying this? Be gentle with yourself 🌧️"
	msgRecurringTheme = "This keeps coming up. It clearly matters 💭"
	msgGenericProfile = "Every entry shapes your story. Keep writing! 📝"
)

var (
	positiveVibes = []string{"happy", "excited", "grateful", "confident", "inspired", "calm", "driven"}
	negativeVibes = []string{"sad", "frustrated", "anxious", "overwhelmed", "exhausted", "lonely"}

	workThemes         = []string{"productivity", "work-life balance", "startup culture", "intern management", "team building"}
	relationshipThemes = []string{"relationships"}
	healthThemes       = []string{"health & wellness"}
	growthThemes       = []string{"personal growth"}

	reflectiveIntents = []string{"Seeking understanding or knowledge about something"}
)

// Polarity of a vibe set or a single vibe.
type Polarity int

const (
	Neutral Polarity = iota
	Positive
	Negative
)

// PolarityOf classifies vibes. Positive wins when both kinds are present.
func PolarityOf(vibes ...string) Polarity {
	switch {
	case diary.ContainsAny(vibes, positiveVibes...):
		return Positive
	case diary.ContainsAny(vibes, negativeVibes...):
		return Negative
	}
	return Neutral
}

// Default picks a reply from the entry and its punctuation alone. Precedence:
// question, hesitation, positive vibes, negative vibes, reflective intent,
// growth theme, generic.
func Default(in Input) string {
	if in.Entry == nil || in.Meta == nil {
		return Fallback
	}
	e, m := in.Entry, in.Meta

	switch {
	case m.HasFlag(diary.FlagQuestion):
		return msgQuestion
	case m.HasFlag(diary.FlagHesitation):
		return msgHesitant
	}

	switch PolarityOf(e.Vibe...) {
	case Positive:
		switch {
		case m.HasFlag(diary.FlagExclamation):
			return msgExcited
		case diary.ContainsAny(e.Theme, workThemes...):
			return msgWorkWin
		case diary.ContainsAny(e.Theme, relationshipThemes...):
			return msgConnection
		case diary.ContainsAny(e.Theme, healthThemes...):
			return msgHealthWin
		case diary.ContainsAny(e.Theme, growthThemes...):
			return msgLearning
		}
		return msgShine
	case Negative:
		switch {
		case diary.ContainsAny(e.Theme, workThemes...):
			return msgWorkStress
		case diary.ContainsAny(e.Theme, healthThemes...):
			return msgHealthCare
		case diary.ContainsAny(e.Theme, relationshipThemes...):
			return msgRelationsHard
		}
		return msgBetterDays
	}

	switch {
	case diary.Contains(reflectiveIntents, e.Intent):
		return msgDeepThoughts
	case diary.ContainsAny(e.Theme, growthThemes...):
		return msgLearning
	}
	return Fallback
}

// ProfileBased picks a reply against the user's history. Precedence:
// carry-in, emotional flip, dominant-vibe agreement, theme recurrence,
// generic.
func ProfileBased(in Input) string {
	if in.Entry == nil || in.Profile == nil {
		return Fallback
	}
	e, p := in.Entry, in.Profile
	entryPolarity := PolarityOf(e.Vibe...)
	dominantPolarity := PolarityOf(p.DominantVibe)

	if in.CarryIn {
		return msgContinuity
	}
	if in.Flip {
		switch {
		case entryPolarity == Positive && dominantPolarity != Positive:
			return msgShiftUp
		case entryPolarity == Negative:
			return msgToughDay
		}
		return msgShiftOther
	}
	switch {
	case dominantPolarity == Positive && entryPolarity == Positive:
		return msgStillPositive
	case dominantPolarity == Negative && entryPolarity == Negative:
		return msgStillHeavy
	case diary.Overlaps(e.Theme, p.LastTheme):
		return msgRecurringTheme
	}
	return msgGenericProfile
}
