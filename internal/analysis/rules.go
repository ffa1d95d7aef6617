package analysis

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// KeywordRule maps a label to the keywords that select it. Weight scales the
// theme score and defaults to 1; other categories ignore it.
type KeywordRule struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
	Weight   float64  `yaml:"weight,omitempty"`
}

// PatternRule maps a label to regular expressions. Any match selects it.
type PatternRule struct {
	Label    string   `yaml:"label"`
	Patterns []string `yaml:"patterns"`
}

// Rules is the full classifier configuration. Table order is significant:
// it breaks score ties and decides which pattern group is tried first.
type Rules struct {
	Themes   []KeywordRule `yaml:"themes"`
	Vibes    []KeywordRule `yaml:"vibes"`
	Traits   []KeywordRule `yaml:"traits"`
	Buckets  []KeywordRule `yaml:"buckets"`
	Intents  []PatternRule `yaml:"intents"`
	Subtexts []PatternRule `yaml:"subtexts"`
}

// DefaultRules returns the built-in rule tables.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRulesYAML)
}

// LoadRules reads rule tables from a YAML file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read rules %s: %w", path, err)
	}
	r, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// ParseRules decodes and validates rule tables.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid rules YAML: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks that every rule has a label and non-blank keywords or
// patterns, that weights are not negative and that every pattern compiles.
// A blank keyword would match every entry.
func (r *Rules) Validate() error {
	keyword := map[string][]KeywordRule{
		"themes": r.Themes, "vibes": r.Vibes, "traits": r.Traits, "buckets": r.Buckets,
	}
	for cat, rules := range keyword {
		for i, kr := range rules {
			if strings.TrimSpace(kr.Label) == "" {
				return fmt.Errorf("%s[%d]: missing label", cat, i)
			}
			if len(kr.Keywords) == 0 {
				return fmt.Errorf("%s[%d] %q: no keywords", cat, i, kr.Label)
			}
			for _, k := range kr.Keywords {
				if strings.TrimSpace(k) == "" {
					return fmt.Errorf("%s[%d] %q: blank keyword", cat, i, kr.Label)
				}
			}
			if kr.Weight < 0 {
				return fmt.Errorf("%s[%d] %q: negative weight", cat, i, kr.Label)
			}
		}
	}
	pattern := map[string][]PatternRule{"intents": r.Intents, "subtexts": r.Subtexts}
	for cat, rules := range pattern {
		for i, pr := range rules {
			if strings.TrimSpace(pr.Label) == "" {
				return fmt.Errorf("%s[%d]: missing label", cat, i)
			}
			if len(pr.Patterns) == 0 {
				return fmt.Errorf("%s[%d] %q: no patterns", cat, i, pr.Label)
			}
			for _, p := range pr.Patterns {
				if strings.TrimSpace(p) == "" {
					return fmt.Errorf("%s[%d] %q: blank pattern", cat, i, pr.Label)
				}
				if _, err := regexp.Compile(p); err != nil {
					return fmt.Errorf("%s[%d] %q: %w", cat, i, pr.Label, err)
				}
			}
		}
	}
	return nil
}
