// Package scraper talks to Google Places on behalf of the categorization
// pipeline: details for classification, plus the two Place ID repair paths.
package scraper

import (
	"context"
	"errors"
	"strings"

	"googlemaps.github.io/maps"

	"squash-venue-enrichment/internal/constants"
	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/pkg/circuit"
	errs "squash-venue-enrichment/pkg/errors"
	"squash-venue-enrichment/pkg/logging"
)

const system = "google_places"

// PlacesAPI is the subset of *maps.Client the gateway uses.
type PlacesAPI interface {
	PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error)
	TextSearch(ctx context.Context, r *maps.TextSearchRequest) (maps.PlacesSearchResponse, error)
}

var _ PlacesAPI = (*maps.Client)(nil)

var detailFields = []maps.PlaceDetailsFieldMask{
	maps.PlaceDetailsFieldMaskPlaceID,
	maps.PlaceDetailsFieldMaskName,
	maps.PlaceDetailsFieldMaskTypes,
	maps.PlaceDetailsFieldMaskFormattedAddress,
	maps.PlaceDetailsFieldMaskBusinessStatus,
	maps.PlaceDetailsFieldMaskGeometryLocation,
	maps.PlaceDetailsFieldMaskEditorialSummary,
	maps.PlaceDetailsFieldMaskWebsite,
}

// PlacesGateway wraps Places Details and Text Search behind a circuit breaker.
type PlacesGateway struct {
	api PlacesAPI
	cb  *circuit.Breaker
	log *logging.ComponentLogger
}

// NewPlacesGateway builds a gateway over the real Maps client. baseURL is
// only set by tests.
func NewPlacesGateway(apiKey, baseURL string, log *logging.Logger) (*PlacesGateway, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, errs.NewValidation("scraper.NewPlacesGateway", "invalid Google Maps client options", err)
	}
	return NewPlacesGatewayWithAPI(client, log), nil
}

// NewPlacesGatewayWithAPI builds a gateway over any PlacesAPI implementation.
func NewPlacesGatewayWithAPI(api PlacesAPI, log *logging.Logger) *PlacesGateway {
	if log == nil {
		log = logging.Nop()
	}
	cb := circuit.New(circuit.Config{
		Name:              "places",
		OperationTimeout:  constants.GoogleMapsOperationTimeout,
		OpenFor:           constants.GoogleMapsOpenFor,
		MaxConsecFailures: constants.CircuitMaxConsecFailures,
		FailureRate:       constants.CircuitFailureRate,
		SlowCallThreshold: constants.GoogleMapsSlowCallThreshold,
	}, log).WithPermanent(IsPermanent)
	return &PlacesGateway{api: api, cb: cb, log: log.WithComponent("places")}
}

// Breaker exposes the circuit breaker for health reporting.
func (g *PlacesGateway) Breaker() *circuit.Breaker { return g.cb }

// IsPermanent reports Places statuses that describe the request, not the
// health of the API: a stale id or a malformed request.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "NOT_FOUND") || strings.Contains(msg, "INVALID_REQUEST")
}

// GetDetails fetches the fields the categorizer needs.
func (g *PlacesGateway) GetDetails(ctx context.Context, placeID string) (*models.PlacesSnapshot, error) {
	if strings.TrimSpace(placeID) == "" {
		return nil, errs.NewValidation("PlacesGateway.GetDetails", "place id is empty", nil)
	}
	res, err := circuit.Call(ctx, g.cb, func(ctx context.Context) (maps.PlaceDetailsResult, error) {
		return g.api.PlaceDetails(ctx, &maps.PlaceDetailsRequest{PlaceID: placeID, Fields: detailFields})
	})
	if err != nil {
		g.log.Warn("place details failed", logging.String("place_id", placeID), logging.Error(err))
		return nil, g.wrap("PlacesGateway.GetDetails", "place details request failed", err)
	}
	return toSnapshot(res), nil
}

// RefreshPlaceID asks for the id field only, which Google bills as free and
// which returns the current id for a place whose id has been rotated.
func (g *PlacesGateway) RefreshPlaceID(ctx context.Context, placeID string) (string, error) {
	res, err := circuit.Call(ctx, g.cb, func(ctx context.Context) (maps.PlaceDetailsResult, error) {
		return g.api.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
			PlaceID: placeID,
			Fields:  []maps.PlaceDetailsFieldMask{maps.PlaceDetailsFieldMaskPlaceID},
		})
	})
	if err != nil {
		return "", g.wrap("PlacesGateway.RefreshPlaceID", "place id refresh failed", err)
	}
	return res.PlaceID, nil
}

// FindPlaceID runs a Text Search for the venue's name and address and returns
// the best match, or "" when nothing matched. Known coordinates bias the
// search to a small radius around them.
func (g *PlacesGateway) FindPlaceID(ctx context.Context, venue models.Venue) (string, error) {
	query := strings.TrimSpace(venue.Name + " " + venue.FullAddress())
	if query == "" {
		return "", nil
	}
	req := &maps.TextSearchRequest{Query: query}
	if venue.HasLocation() {
		req.Location = &maps.LatLng{Lat: *venue.Lat, Lng: *venue.Lng}
		req.Radius = constants.PlaceSearchRadiusMeters
	}
	resp, err := circuit.Call(ctx, g.cb, func(ctx context.Context) (maps.PlacesSearchResponse, error) {
		return g.api.TextSearch(ctx, req)
	})
	if err != nil {
		return "", g.wrap("PlacesGateway.FindPlaceID", "text search failed", err)
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return resp.Results[0].PlaceID, nil
}

func (g *PlacesGateway) wrap(op, msg string, err error) error {
	if errors.Is(err, circuit.ErrOpen) {
		msg = "circuit open"
	}
	return errs.NewExternal(op, system, msg, err)
}

func toSnapshot(d maps.PlaceDetailsResult) *models.PlacesSnapshot {
	s := &models.PlacesSnapshot{
		ID:               d.PlaceID,
		Types:            append([]string(nil), d.Types...),
		DisplayName:      d.Name,
		FormattedAddress: d.FormattedAddress,
		BusinessStatus:   d.BusinessStatus,
		Website:          d.Website,
	}
	if len(d.Types) > 0 {
		s.PrimaryType = d.Types[0]
	}
	if loc := d.Geometry.Location; loc.Lat != 0 || loc.Lng != 0 {
		s.Location = &models.LatLng{Lat: loc.Lat, Lng: loc.Lng}
	}
	if d.EditorialSummary != nil {
		s.EditorialSummary = d.EditorialSummary.Overview
	}
	return s
}
