package venuecontext

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"squash-venue-enrichment/internal/models"
	errs "squash-venue-enrichment/pkg/errors"
)

//go:embed context.yaml
var defaultRulesYAML []byte

// Parent facility types.
const (
	ParentLeisureCentre = "leisure_centre"
	ParentGym           = "gym"
	ParentSportsComplex = "sports_complex"
)

type rawRules struct {
	Version int `yaml:"version"`
	Summary []struct {
		Pattern    string            `yaml:"pattern"`
		Parent     string            `yaml:"parent"`
		Confidence models.Confidence `yaml:"confidence"`
	} `yaml:"summary"`
	Name struct {
		Suffix     string   `yaml:"suffix"`
		MultiSport []string `yaml:"multi_sport"`
		Excluded   string   `yaml:"excluded"`
	} `yaml:"name"`
	Parents map[string][]string `yaml:"parents"`
}

type summaryRule struct {
	re         *regexp.Regexp
	parent     string
	confidence models.Confidence
}

// Rules is the compiled context.yaml.
type Rules struct {
	Version    int
	summary    []summaryRule
	nameSuffix *regexp.Regexp
	multiSport []*regexp.Regexp
	excluded   *regexp.Regexp
	// parents is ordered so leisure centre wins over gym on ties.
	parents []parentRule
}

type parentRule struct {
	parent   string
	patterns []*regexp.Regexp
}

// DefaultRules compiles the embedded tables.
func DefaultRules() (*Rules, error) {
	return ParseRules(defaultRulesYAML)
}

// ParseRules decodes and compiles a context rule set.
func ParseRules(data []byte) (*Rules, error) {
	const op = "venuecontext.ParseRules"
	var raw rawRules
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errs.NewValidation(op, "invalid context yaml", err)
	}

	compile := func(field, expr string) (*regexp.Regexp, error) {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, errs.NewValidation(op, fmt.Sprintf("%s: bad pattern %q", field, expr), err)
		}
		return re, nil
	}

	r := &Rules{Version: raw.Version}
	for i, s := range raw.Summary {
		re, err := compile(fmt.Sprintf("summary[%d]", i), s.Pattern)
		if err != nil {
			return nil, err
		}
		if !s.Confidence.Valid() {
			return nil, errs.NewValidation(op, fmt.Sprintf("summary[%d]: invalid confidence %q", i, s.Confidence), nil)
		}
		r.summary = append(r.summary, summaryRule{re: re, parent: s.Parent, confidence: s.Confidence})
	}

	var err error
	if r.nameSuffix, err = compile("name.suffix", raw.Name.Suffix); err != nil {
		return nil, err
	}
	if r.excluded, err = compile("name.excluded", raw.Name.Excluded); err != nil {
		return nil, err
	}
	for _, p := range raw.Name.MultiSport {
		re, err := compile("name.multi_sport", `\b`+p+`\b`)
		if err != nil {
			return nil, err
		}
		r.multiSport = append(r.multiSport, re)
	}

	for _, parent := range []string{ParentLeisureCentre, ParentGym} {
		pr := parentRule{parent: parent}
		for _, p := range raw.Parents[parent] {
			re, err := compile("parents."+parent, `\b`+p+`\b`)
			if err != nil {
				return nil, err
			}
			pr.patterns = append(pr.patterns, re)
		}
		r.parents = append(r.parents, pr)
	}
	return r, nil
}

// parentOf guesses the parent facility type from free text, or "".
func (r *Rules) parentOf(text string) string {
	for _, pr := range r.parents {
		for _, re := range pr.patterns {
			if re.MatchString(text) {
				return pr.parent
			}
		}
	}
	return ""
}

func anyMatch(res []*regexp.Regexp, text string) bool {
	for _, re := range res {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
