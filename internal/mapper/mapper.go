// Package mapper turns Google Places data into a category guess without any
// network calls, except the optional translated retry for non-English names.
package mapper

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/internal/translate"
	"squash-venue-enrichment/pkg/logging"
)

// Matched-type labels for name-based matches.
const (
	MatchNameMultiSport = "name_multi_sport"
	MatchNameHigh       = "name_high_confidence"
	MatchNameMedium     = "name_medium_confidence"
	translatedPrefix    = "translated_"
)

// Translator renders text in English. sourceLang may be empty.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang string) (string, error)
}

// Mapper applies a rule set. It is safe for concurrent use.
type Mapper struct {
	rules      *Rules
	tax        *models.Taxonomy
	translator Translator
	log        *logging.ComponentLogger

	squash     compiledTiers
	multiSport compiledTiers
	names      []compiledName
}

// New compiles rules. translator may be nil, which disables the translated retry.
func New(rules *Rules, tax *models.Taxonomy, translator Translator, log *logging.Logger) *Mapper {
	if log == nil {
		log = logging.Nop()
	}
	if tax == nil {
		tax = models.DefaultTaxonomy()
	}
	m := &Mapper{
		rules:      rules,
		tax:        tax,
		translator: translator,
		log:        log.WithComponent("mapper"),
		squash:     compileTiers(rules.Squash),
		multiSport: compileTiers(rules.MultiSport),
	}
	for _, n := range rules.Names {
		m.names = append(m.names, compiledName{category: n.Category, tiers: compileTiers(n.Tiers)})
	}
	return m
}

// RulesVersion reports the version of the loaded rule set.
func (m *Mapper) RulesVersion() int { return m.rules.Version }

// MapToCategory resolves a category from Places data. First match wins:
// name patterns, type combinations, primary type, secondary types, then a
// translated name retry. The result is deterministic for a given snapshot
// and translator output.
func (m *Mapper) MapToCategory(ctx context.Context, snap models.PlacesSnapshot) models.MappingResult {
	text := lower(snap.DisplayName + " " + snap.EditorialSummary)

	if res, ok := m.matchName(text); ok {
		return res
	}
	if res, ok := m.matchCombination(snap); ok {
		return res
	}
	if res, ok := m.matchPrimaryType(snap); ok {
		return res
	}
	if res, ok := m.matchSecondaryTypes(snap); ok {
		return res
	}
	if res, ok := m.matchTranslated(ctx, snap.DisplayName); ok {
		return res
	}
	return models.MappingResult{Confidence: models.ConfidenceLow, Reasoning: "no matching type"}
}

func lower(s string) string {
	return strings.TrimSpace(cases.Lower(language.Und).String(s))
}

func (m *Mapper) result(id int, conf models.Confidence, matched, reasoning string) models.MappingResult {
	return models.MappingResult{
		CategoryID:  models.IntPtr(id),
		Confidence:  conf,
		Reasoning:   reasoning,
		MatchedType: matched,
	}
}

// matchName runs the name/summary keyword step over already lower-cased text.
func (m *Mapper) matchName(text string) (models.MappingResult, bool) {
	if text == "" {
		return models.MappingResult{}, false
	}

	squashHigh, isHigh := firstMatch(m.squash.high, text)
	squashAny := squashHigh
	if !isHigh {
		squashAny, _ = firstMatch(m.squash.medium, text)
	}

	if squashAny != "" {
		sportHigh, sportIsHigh := firstMatch(m.multiSport.high, text)
		sport := sportHigh
		if !sportIsHigh {
			sport, _ = firstMatch(m.multiSport.medium, text)
		}
		if sport != "" {
			conf := models.ConfidenceMedium
			if isHigh || sportIsHigh {
				conf = models.ConfidenceHigh
			}
			return m.result(models.CategoryLeisureCentre, conf, MatchNameMultiSport,
				fmt.Sprintf("Name mentions %q alongside multi-sport term %q; squash courts are part of a larger facility", squashAny, sport)), true
		}
	}

	if isHigh {
		return m.result(models.CategoryDedicatedFacility, models.ConfidenceHigh, MatchNameHigh,
			fmt.Sprintf("Name matches squash facility pattern %q", squashHigh)), true
	}

	for _, n := range m.names {
		if kw, ok := firstMatch(n.tiers.high, text); ok {
			return m.result(n.category, models.ConfidenceHigh, MatchNameHigh,
				fmt.Sprintf("Name matches high-confidence pattern %q for %s", kw, m.tax.Name(n.category))), true
		}
	}
	for _, n := range m.names {
		if kw, ok := firstMatch(n.tiers.medium, text); ok {
			return m.result(n.category, models.ConfidenceMedium, MatchNameMedium,
				fmt.Sprintf("Name matches pattern %q for %s", kw, m.tax.Name(n.category))), true
		}
	}
	return models.MappingResult{}, false
}

func (m *Mapper) matchCombination(snap models.PlacesSnapshot) (models.MappingResult, bool) {
	for _, c := range m.rules.Combinations {
		matched := make([]string, 0, len(c.AllOf))
		for _, group := range c.AllOf {
			hit := ""
			for _, t := range group {
				if snap.HasType(t) {
					hit = t
					break
				}
			}
			if hit == "" {
				break
			}
			matched = append(matched, hit)
		}
		if len(matched) != len(c.AllOf) {
			continue
		}
		label := strings.Join(matched, "+")
		return m.result(c.Category, c.Confidence, label,
			fmt.Sprintf("Place types %s indicate %s", label, m.tax.Name(c.Category))), true
	}
	return models.MappingResult{}, false
}

func (m *Mapper) matchPrimaryType(snap models.PlacesSnapshot) (models.MappingResult, bool) {
	if snap.PrimaryType == "" {
		return models.MappingResult{}, false
	}
	tr, ok := m.rules.Types[snap.PrimaryType]
	if !ok {
		return models.MappingResult{}, false
	}
	return m.result(tr.Category, tr.Confidence, snap.PrimaryType,
		fmt.Sprintf("Primary type %q maps to %s", snap.PrimaryType, m.tax.Name(tr.Category))), true
}

func (m *Mapper) matchSecondaryTypes(snap models.PlacesSnapshot) (models.MappingResult, bool) {
	for _, t := range snap.SecondaryTypes() {
		tr, ok := m.rules.Types[t]
		if !ok {
			continue
		}
		return m.result(tr.Category, tr.Confidence.Downgrade(), t,
			fmt.Sprintf("Secondary type %q maps to %s (confidence downgraded)", t, m.tax.Name(tr.Category))), true
	}
	return models.MappingResult{}, false
}

func (m *Mapper) matchTranslated(ctx context.Context, name string) (models.MappingResult, bool) {
	if m.translator == nil || !translate.NeedsTranslation(name) {
		return models.MappingResult{}, false
	}
	translated, err := m.translator.Translate(ctx, name, "")
	if err != nil {
		m.log.Warn("name translation failed", logging.String("name", name), logging.Error(err))
		return models.MappingResult{}, false
	}
	res, ok := m.matchName(lower(translated))
	if !ok {
		return models.MappingResult{}, false
	}
	res.MatchedType = translatedPrefix + res.MatchedType
	res.Reasoning = fmt.Sprintf("%s (translated from %q as %q)", res.Reasoning, name, translated)
	return res, true
}
