package venuecontext

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squash-venue-enrichment/internal/models"
)

type fakeFinder struct {
	atAddress []models.Venue
	near      []models.NearbyVenue
	err       error

	nearCalls int
	radius    float64
}

func (f *fakeFinder) FindVenuesAtAddressCtx(ctx context.Context, venue models.Venue) ([]models.Venue, error) {
	return f.atAddress, f.err
}

func (f *fakeFinder) FindVenuesNearCtx(ctx context.Context, lat, lng, radiusMeters float64, excludeVenueID int64) ([]models.NearbyVenue, error) {
	f.nearCalls++
	f.radius = radiusMeters
	return f.near, f.err
}

func newAnalyzer(t *testing.T, f Finder) *Analyzer {
	t.Helper()
	rules, err := DefaultRules()
	require.NoError(t, err)
	return New(rules, f, nil, nil)
}

func fptr(v float64) *float64 { return &v }

func TestAnalyzeContext_Summary(t *testing.T) {
	a := newAnalyzer(t, nil)

	r := a.AnalyzeContext(context.Background(), models.Venue{ID: 1},
		models.PlacesSnapshot{DisplayName: "Westway", EditorialSummary: "Busy sports centre with a pool, gym and two squash courts."})
	assert.True(t, r.IsSubVenue)
	assert.Equal(t, ParentLeisureCentre, r.ParentFacilityType)
	assert.Equal(t, models.ConfidenceHigh, r.Confidence)
	assert.Equal(t, SignalSummary, r.Signal)

	r = a.AnalyzeContext(context.Background(), models.Venue{ID: 1},
		models.PlacesSnapshot{DisplayName: "Iron Works", EditorialSummary: "24-hour gym offering weights, classes and a squash court."})
	assert.Equal(t, ParentGym, r.ParentFacilityType)
	assert.Equal(t, models.ConfidenceHigh, r.Confidence)
}

func TestAnalyzeContext_CoLocatedBeatsNearby(t *testing.T) {
	f := &fakeFinder{
		atAddress: []models.Venue{{ID: 9, Name: "Riverside Leisure", CategoryID: models.CategoryLeisureCentre}},
		near:      []models.NearbyVenue{{Venue: models.Venue{ID: 10, Name: "Pure Gym", CategoryID: models.CategoryGym}, DistanceMeters: 40}},
	}
	a := newAnalyzer(t, f)

	r := a.AnalyzeContext(context.Background(),
		models.Venue{ID: 1, Name: "Riverside Squash", Lat: fptr(51.5), Lng: fptr(-0.1)},
		models.PlacesSnapshot{DisplayName: "Riverside Squash"})
	assert.True(t, r.IsSubVenue)
	assert.Equal(t, SignalCoLocated, r.Signal)
	assert.Equal(t, ParentLeisureCentre, r.ParentFacilityType)
	assert.Equal(t, models.ConfidenceHigh, r.Confidence)
	assert.Zero(t, f.nearCalls)
}

func TestAnalyzeContext_CoLocatedIgnoresDedicatedAndGap(t *testing.T) {
	f := &fakeFinder{atAddress: []models.Venue{
		{ID: 2, CategoryID: models.CategoryDedicatedFacility},
		{ID: 3, CategoryID: models.CategoryDontKnow},
		{ID: 4, CategoryID: models.CategoryOther},
	}}
	a := newAnalyzer(t, f)

	r := a.AnalyzeContext(context.Background(), models.Venue{ID: 1}, models.PlacesSnapshot{DisplayName: "Court One"})
	assert.False(t, r.IsSubVenue)
	assert.Equal(t, models.ConfidenceLow, r.Confidence)
}

func TestAnalyzeContext_Nearby(t *testing.T) {
	f := &fakeFinder{near: []models.NearbyVenue{
		{Venue: models.Venue{ID: 5, Name: "Hotel", CategoryID: models.CategoryHotelResort}, DistanceMeters: 10},
		{Venue: models.Venue{ID: 6, Name: "FitHub", CategoryID: models.CategoryGym}, DistanceMeters: 60},
	}}
	a := newAnalyzer(t, f)

	r := a.AnalyzeContext(context.Background(), models.Venue{ID: 1},
		models.PlacesSnapshot{DisplayName: "Court One", Location: &models.LatLng{Lat: 1, Lng: 2}})
	assert.True(t, r.IsSubVenue)
	assert.Equal(t, SignalNearby, r.Signal)
	assert.Equal(t, ParentGym, r.ParentFacilityType)
	assert.Equal(t, models.ConfidenceMedium, r.Confidence)
	assert.InDelta(t, 100.0, f.radius, 0.001)
}

func TestAnalyzeContext_NoLocationSkipsNearby(t *testing.T) {
	f := &fakeFinder{}
	a := newAnalyzer(t, f)
	a.AnalyzeContext(context.Background(), models.Venue{ID: 1}, models.PlacesSnapshot{DisplayName: "Court One"})
	assert.Zero(t, f.nearCalls)
}

func TestAnalyzeContext_FinderErrorIsNoSignal(t *testing.T) {
	f := &fakeFinder{err: errors.New("db down")}
	a := newAnalyzer(t, f)

	r := a.AnalyzeContext(context.Background(), models.Venue{ID: 1, Lat: fptr(1), Lng: fptr(2)},
		models.PlacesSnapshot{DisplayName: "Court One"})
	assert.False(t, r.IsSubVenue)
}

func TestAnalyzeContext_NamePattern(t *testing.T) {
	a := newAnalyzer(t, nil)

	r := a.AnalyzeContext(context.Background(), models.Venue{}, models.PlacesSnapshot{DisplayName: "Virgin Active Chelsea - Squash Club"})
	assert.True(t, r.IsSubVenue)
	assert.Equal(t, SignalNamePattern, r.Signal)
	assert.Equal(t, ParentGym, r.ParentFacilityType)
	assert.Equal(t, models.ConfidenceMedium, r.Confidence)

	r = a.AnalyzeContext(context.Background(), models.Venue{}, models.PlacesSnapshot{DisplayName: "Northgate Tennis and Squash Club"})
	assert.True(t, r.IsSubVenue)
	assert.Equal(t, ParentSportsComplex, r.ParentFacilityType)
}

func TestAnalyzeContext_SquashCentreNeverSubVenueByName(t *testing.T) {
	a := newAnalyzer(t, nil)
	for _, name := range []string{
		"City Squash Centre",
		"Leisure World Squash Center",
		"Fitness Squash-Centrum",
		"Elmwood - Squash Centre",
	} {
		r := a.AnalyzeContext(context.Background(), models.Venue{}, models.PlacesSnapshot{DisplayName: name})
		assert.False(t, r.IsSubVenue, name)
	}
}

func TestAnalyzeContext_FallsBackToVenueName(t *testing.T) {
	a := newAnalyzer(t, nil)
	r := a.AnalyzeContext(context.Background(), models.Venue{Name: "Parkside Leisure Squash"}, models.PlacesSnapshot{})
	assert.True(t, r.IsSubVenue)
	assert.Equal(t, ParentLeisureCentre, r.ParentFacilityType)
}

func TestAdjustCategoryForContext(t *testing.T) {
	dedicated := models.MappingResult{CategoryID: models.IntPtr(models.CategoryDedicatedFacility), Confidence: models.ConfidenceHigh, Reasoning: "Name contains squash"}

	t.Run("not a sub-venue", func(t *testing.T) {
		adj := AdjustCategoryForContext(dedicated, models.ContextResult{})
		assert.False(t, adj.Adjusted)
		assert.Equal(t, models.CategoryDedicatedFacility, *adj.CategoryID)
		assert.Equal(t, models.ConfidenceHigh, adj.Confidence)
	})

	t.Run("leisure parent", func(t *testing.T) {
		adj := AdjustCategoryForContext(dedicated, models.ContextResult{IsSubVenue: true, ParentFacilityType: ParentLeisureCentre, Confidence: models.ConfidenceMedium, Reasoning: "x"})
		assert.True(t, adj.Adjusted)
		assert.Equal(t, models.CategoryLeisureCentre, *adj.CategoryID)
		assert.Equal(t, models.ConfidenceMedium, adj.Confidence)
	})

	t.Run("gym parent", func(t *testing.T) {
		adj := AdjustCategoryForContext(dedicated, models.ContextResult{IsSubVenue: true, ParentFacilityType: ParentGym, Confidence: models.ConfidenceHigh})
		assert.True(t, adj.Adjusted)
		assert.Equal(t, models.CategoryGym, *adj.CategoryID)
	})

	t.Run("unknown parent downgrades", func(t *testing.T) {
		adj := AdjustCategoryForContext(dedicated, models.ContextResult{IsSubVenue: true, Confidence: models.ConfidenceMedium})
		assert.False(t, adj.Adjusted)
		assert.Equal(t, models.CategoryDedicatedFacility, *adj.CategoryID)
		assert.Equal(t, models.ConfidenceMedium, adj.Confidence)
	})

	t.Run("other categories untouched", func(t *testing.T) {
		hotel := models.MappingResult{CategoryID: models.IntPtr(models.CategoryHotelResort), Confidence: models.ConfidenceHigh}
		adj := AdjustCategoryForContext(hotel, models.ContextResult{IsSubVenue: true, ParentFacilityType: ParentGym, Confidence: models.ConfidenceHigh})
		assert.False(t, adj.Adjusted)
		assert.Equal(t, models.CategoryHotelResort, *adj.CategoryID)
	})

	t.Run("no mapping", func(t *testing.T) {
		adj := AdjustCategoryForContext(models.MappingResult{Confidence: models.ConfidenceLow}, models.ContextResult{IsSubVenue: true, ParentFacilityType: ParentGym})
		assert.Nil(t, adj.CategoryID)
		assert.False(t, adj.Adjusted)
	})
}
