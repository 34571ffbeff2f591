// Package venuecontext decides whether a venue is really a squash section of
// a larger facility, and corrects a "Dedicated facility" guess when it is.
package venuecontext

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"squash-venue-enrichment/internal/constants"
	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/pkg/logging"
)

// Signals, in detection order.
const (
	SignalSummary     = "summary"
	SignalCoLocated   = "co_located"
	SignalNearby      = "nearby"
	SignalNamePattern = "name_pattern"
)

// Finder looks up other venues around a venue.
type Finder interface {
	FindVenuesAtAddressCtx(ctx context.Context, venue models.Venue) ([]models.Venue, error)
	FindVenuesNearCtx(ctx context.Context, lat, lng, radiusMeters float64, excludeVenueID int64) ([]models.NearbyVenue, error)
}

// parentByCategory names the facility a co-located venue of that category is.
// Dedicated facility, Don't know and Other say nothing about a parent.
var parentByCategory = map[int]string{
	models.CategoryPrivateClub:        "private_club",
	models.CategoryLeisureCentre:      ParentLeisureCentre,
	models.CategoryGym:                ParentGym,
	models.CategoryHotelResort:        "hotel_resort",
	models.CategorySchool:             "school",
	models.CategoryUniversity:         "university",
	models.CategoryCountryClub:        "country_club",
	models.CategoryBusinessComplex:    "business_complex",
	models.CategoryResidentialComplex: "residential_complex",
	models.CategoryMilitary:           "military",
	models.CategoryShoppingCentre:     "shopping_centre",
	models.CategoryCommunityCentre:    "community_centre",
	models.CategoryHospital:           "hospital",
}

// Analyzer runs the sub-venue checks. finder may be nil, which skips the
// co-located and nearby checks.
type Analyzer struct {
	rules  *Rules
	finder Finder
	tax    *models.Taxonomy
	radius float64
	log    *logging.ComponentLogger
}

func New(rules *Rules, finder Finder, tax *models.Taxonomy, log *logging.Logger) *Analyzer {
	if log == nil {
		log = logging.Nop()
	}
	if tax == nil {
		tax = models.DefaultTaxonomy()
	}
	return &Analyzer{
		rules:  rules,
		finder: finder,
		tax:    tax,
		radius: constants.NearbyVenueRadiusMeters,
		log:    log.WithComponent("context"),
	}
}

func lower(s string) string {
	return strings.TrimSpace(cases.Lower(language.Und).String(s))
}

// AnalyzeContext returns the first sub-venue signal found, or a negative
// result. Lookup failures are logged and treated as "no signal".
func (a *Analyzer) AnalyzeContext(ctx context.Context, venue models.Venue, snap models.PlacesSnapshot) models.ContextResult {
	if r, ok := a.fromSummary(snap.EditorialSummary); ok {
		return r
	}
	if r, ok := a.fromCoLocated(ctx, venue); ok {
		return r
	}
	if r, ok := a.fromNearby(ctx, venue, snap); ok {
		return r
	}
	name := snap.DisplayName
	if name == "" {
		name = venue.Name
	}
	if r, ok := a.fromName(name); ok {
		return r
	}
	return models.ContextResult{Confidence: models.ConfidenceLow, Reasoning: "no sub-venue signal"}
}

func (a *Analyzer) fromSummary(summary string) (models.ContextResult, bool) {
	text := lower(summary)
	if text == "" {
		return models.ContextResult{}, false
	}
	for _, rule := range a.rules.summary {
		m := rule.re.FindString(text)
		if m == "" {
			continue
		}
		return models.ContextResult{
			IsSubVenue:         true,
			ParentFacilityType: rule.parent,
			Confidence:         rule.confidence,
			Reasoning:          fmt.Sprintf("Google summary describes a larger facility (%q)", m),
			Signal:             SignalSummary,
		}, true
	}
	return models.ContextResult{}, false
}

func (a *Analyzer) fromCoLocated(ctx context.Context, venue models.Venue) (models.ContextResult, bool) {
	if a.finder == nil {
		return models.ContextResult{}, false
	}
	others, err := a.finder.FindVenuesAtAddressCtx(ctx, venue)
	if err != nil {
		a.log.Warn("co-located venue lookup failed", logging.Int64("venue_id", venue.ID), logging.Error(err))
		return models.ContextResult{}, false
	}

	var pick *models.Venue
	for i := range others {
		parent, ok := parentByCategory[others[i].CategoryID]
		if !ok {
			continue
		}
		if pick == nil || (parent == ParentLeisureCentre || parent == ParentGym) && !isLeisureOrGym(pick.CategoryID) {
			pick = &others[i]
		}
	}
	if pick == nil {
		return models.ContextResult{}, false
	}
	return models.ContextResult{
		IsSubVenue:         true,
		ParentFacilityType: parentByCategory[pick.CategoryID],
		Confidence:         models.ConfidenceHigh,
		Reasoning: fmt.Sprintf("Shares its address with %q (venue %d, %s)",
			pick.Name, pick.ID, a.tax.Name(pick.CategoryID)),
		Signal: SignalCoLocated,
	}, true
}

func isLeisureOrGym(categoryID int) bool {
	return categoryID == models.CategoryLeisureCentre || categoryID == models.CategoryGym
}

func (a *Analyzer) fromNearby(ctx context.Context, venue models.Venue, snap models.PlacesSnapshot) (models.ContextResult, bool) {
	if a.finder == nil {
		return models.ContextResult{}, false
	}
	var lat, lng float64
	switch {
	case snap.Location != nil:
		lat, lng = snap.Location.Lat, snap.Location.Lng
	case venue.HasLocation():
		lat, lng = *venue.Lat, *venue.Lng
	default:
		return models.ContextResult{}, false
	}

	near, err := a.finder.FindVenuesNearCtx(ctx, lat, lng, a.radius, venue.ID)
	if err != nil {
		a.log.Warn("nearby venue lookup failed", logging.Int64("venue_id", venue.ID), logging.Error(err))
		return models.ContextResult{}, false
	}
	for _, n := range near {
		if !isLeisureOrGym(n.CategoryID) {
			continue
		}
		return models.ContextResult{
			IsSubVenue:         true,
			ParentFacilityType: parentByCategory[n.CategoryID],
			Confidence:         models.ConfidenceMedium,
			Reasoning: fmt.Sprintf("%s %q (venue %d) is %.0fm away",
				a.tax.Name(n.CategoryID), n.Name, n.ID, n.DistanceMeters),
			Signal: SignalNearby,
		}, true
	}
	return models.ContextResult{}, false
}

func (a *Analyzer) fromName(name string) (models.ContextResult, bool) {
	text := lower(name)
	if text == "" || !strings.Contains(text, "squash") || a.rules.excluded.MatchString(text) {
		return models.ContextResult{}, false
	}

	if m := a.rules.nameSuffix.FindStringSubmatch(text); m != nil {
		return models.ContextResult{
			IsSubVenue:         true,
			ParentFacilityType: a.rules.parentOf(m[1]),
			Confidence:         models.ConfidenceMedium,
			Reasoning:          fmt.Sprintf("Name reads as the squash section of %q", strings.TrimSpace(m[1])),
			Signal:             SignalNamePattern,
		}, true
	}
	if anyMatch(a.rules.multiSport, text) {
		parent := a.rules.parentOf(text)
		if parent == "" {
			parent = ParentSportsComplex
		}
		return models.ContextResult{
			IsSubVenue:         true,
			ParentFacilityType: parent,
			Confidence:         models.ConfidenceMedium,
			Reasoning:          "Name combines squash with a multi-sport facility term",
			Signal:             SignalNamePattern,
		}, true
	}
	return models.ContextResult{}, false
}

// AdjustCategoryForContext applies a context verdict to a mapping. Only a
// Dedicated facility guess with a sub-venue signal changes: a leisure centre
// or gym parent replaces the category at the context's confidence; any other
// parent keeps the category one confidence step lower.
func AdjustCategoryForContext(m models.MappingResult, cr models.ContextResult) models.Adjustment {
	keep := models.Adjustment{CategoryID: m.CategoryID, Confidence: m.Confidence, Reasoning: m.Reasoning}
	if !cr.IsSubVenue || m.CategoryID == nil || *m.CategoryID != models.CategoryDedicatedFacility {
		return keep
	}

	var to int
	switch cr.ParentFacilityType {
	case ParentLeisureCentre:
		to = models.CategoryLeisureCentre
	case ParentGym:
		to = models.CategoryGym
	default:
		return models.Adjustment{
			CategoryID: m.CategoryID,
			Confidence: m.Confidence.Downgrade(),
			Reasoning:  fmt.Sprintf("%s; confidence lowered: %s", m.Reasoning, cr.Reasoning),
		}
	}
	return models.Adjustment{
		CategoryID: models.IntPtr(to),
		Confidence: cr.Confidence,
		Reasoning:  fmt.Sprintf("Squash courts are part of a larger facility: %s", cr.Reasoning),
		Adjusted:   true,
	}
}
