package mapper

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"squash-venue-enrichment/internal/models"
	errs "squash-venue-enrichment/pkg/errors"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Tiers is a keyword list split by confidence.
type Tiers struct {
	High   []string `yaml:"high"`
	Medium []string `yaml:"medium"`
}

// NameRule holds the name keywords for one category.
type NameRule struct {
	Category int `yaml:"category"`
	Tiers    `yaml:",inline"`
}

// Combination maps a set of co-occurring place types to a category.
type Combination struct {
	AllOf      [][]string        `yaml:"all_of"`
	Category   int               `yaml:"category"`
	Confidence models.Confidence `yaml:"confidence"`
}

// TypeRule maps one place type to a category.
type TypeRule struct {
	Category   int               `yaml:"category"`
	Confidence models.Confidence `yaml:"confidence"`
}

// Rules is the decoded rules.yaml.
type Rules struct {
	Version      int                 `yaml:"version"`
	Squash       Tiers               `yaml:"squash"`
	MultiSport   Tiers               `yaml:"multi_sport"`
	Names        []NameRule          `yaml:"names"`
	Combinations []Combination       `yaml:"combinations"`
	Types        map[string]TypeRule `yaml:"types"`
}

// DefaultRules decodes the embedded rule set.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRulesYAML)
}

// LoadRulesFile decodes a rule set from disk.
func LoadRulesFile(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.NewValidation("mapper.LoadRulesFile", "read rules file", err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a rule set against the default taxonomy.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, errs.NewValidation("mapper.ParseRules", "invalid rules yaml", err)
	}
	if err := r.validate(models.DefaultTaxonomy()); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rules) validate(tax *models.Taxonomy) error {
	bad := func(msg string) error { return errs.NewValidation("mapper.Rules", msg, nil) }
	if len(r.Squash.High) == 0 {
		return bad("squash.high must not be empty")
	}
	for _, n := range r.Names {
		if !tax.Valid(n.Category) {
			return bad(fmt.Sprintf("names: unknown category %d", n.Category))
		}
	}
	for i, c := range r.Combinations {
		if !tax.Valid(c.Category) {
			return bad(fmt.Sprintf("combinations[%d]: unknown category %d", i, c.Category))
		}
		if !c.Confidence.Valid() {
			return bad(fmt.Sprintf("combinations[%d]: invalid confidence %q", i, c.Confidence))
		}
		if len(c.AllOf) == 0 {
			return bad(fmt.Sprintf("combinations[%d]: all_of is empty", i))
		}
	}
	for t, tr := range r.Types {
		if !tax.Valid(tr.Category) {
			return bad(fmt.Sprintf("types.%s: unknown category %d", t, tr.Category))
		}
		if !tr.Confidence.Valid() {
			return bad(fmt.Sprintf("types.%s: invalid confidence %q", t, tr.Confidence))
		}
	}
	return nil
}

// keyword is a compiled word-boundary matcher.
type keyword struct {
	text string
	re   *regexp.Regexp
}

func compileKeywords(words []string) []keyword {
	out := make([]keyword, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		out = append(out, keyword{
			text: w,
			re:   regexp.MustCompile(`(^|[^\p{L}\p{N}])` + regexp.QuoteMeta(w) + `($|[^\p{L}\p{N}])`),
		})
	}
	return out
}

// firstMatch returns the first keyword found in text.
func firstMatch(kws []keyword, text string) (string, bool) {
	for _, k := range kws {
		if k.re.MatchString(text) {
			return k.text, true
		}
	}
	return "", false
}

type compiledTiers struct {
	high, medium []keyword
}

func compileTiers(t Tiers) compiledTiers {
	return compiledTiers{high: compileKeywords(t.High), medium: compileKeywords(t.Medium)}
}

type compiledName struct {
	category int
	tiers    compiledTiers
}
