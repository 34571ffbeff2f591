package processor

import (
	"context"

	"squash-venue-enrichment/internal/domain"
	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/internal/updater"
)

// The orchestrator's collaborators. Each is satisfied by a concrete
// component elsewhere in the module and by small fakes in tests.

// PlacesGateway fetches Places data and repairs stale Place IDs.
type PlacesGateway interface {
	GetDetails(ctx context.Context, placeID string) (*models.PlacesSnapshot, error)
	RefreshPlaceID(ctx context.Context, placeID string) (string, error)
	FindPlaceID(ctx context.Context, venue models.Venue) (string, error)
}

// TypeMapper is the rule-based category guess.
type TypeMapper interface {
	MapToCategory(ctx context.Context, snap models.PlacesSnapshot) models.MappingResult
}

// ContextAnalyzer looks for a larger facility around the venue.
type ContextAnalyzer interface {
	AnalyzeContext(ctx context.Context, venue models.Venue, snap models.PlacesSnapshot) models.ContextResult
}

// AICategorizer is the LLM fallback. It always returns a complete result.
type AICategorizer interface {
	Categorize(ctx context.Context, venue models.Venue, snap models.PlacesSnapshot, hint string) models.AICategoryResult
}

// CourtCounter answers the court-count question. It is optional.
type CourtCounter interface {
	AnalyzeCourtCount(ctx context.Context, venue models.Venue, snap models.PlacesSnapshot) (models.CourtCountResult, error)
}

// UnmappedTracker collects venues the mapper could not place.
type UnmappedTracker interface {
	Track(venue models.Venue, snap models.PlacesSnapshot, m models.MappingResult) bool
	RecordSuggestion(name string)
}

// VenueUpdater performs the audited writes.
type VenueUpdater interface {
	UpdateCategory(ctx context.Context, venueID int64, categoryID int, meta domain.AuditMeta) updater.Result
	UpdateCourtCount(ctx context.Context, venueID int64, courts int, meta domain.AuditMeta) updater.Result
	FlagVenueForDeletion(ctx context.Context, venueID int64, reason, details string) updater.Result
}

// Engine is what the CLI and ops server drive.
type Engine interface {
	CategorizeVenue(ctx context.Context, venueID int64, opts Options) (models.CategorizationResult, error)
	RunBatch(ctx context.Context, opts BatchOptions) (*Summary, error)
}

// Ensure Processor implements Engine.
var _ Engine = (*Processor)(nil)
