package domain

import (
	"context"

	"squash-venue-enrichment/internal/models"
)

// VenueRepository defines venue reads and the small single-statement writes
// the pipeline performs outside an explicit unit of work.
type VenueRepository interface {
	GetVenueCtx(ctx context.Context, venueID int64) (*models.Venue, error)
	// ListVenuesForCategorizationCtx returns approved gap-category venues with a
	// Place ID, unknown court counts first, then least recently updated.
	ListVenuesForCategorizationCtx(ctx context.Context, limit int) ([]models.Venue, error)
	// FindVenueByPlaceIDCtx returns the non-deleted venue other than
	// excludeVenueID that owns placeID, or nil.
	FindVenueByPlaceIDCtx(ctx context.Context, placeID string, excludeVenueID int64) (*models.Venue, error)
	FindVenuesAtAddressCtx(ctx context.Context, venue models.Venue) ([]models.Venue, error)
	FindVenuesNearCtx(ctx context.Context, lat, lng, radiusMeters float64, excludeVenueID int64) ([]models.NearbyVenue, error)

	UpdatePlaceIDCtx(ctx context.Context, venueID int64, placeID string) error
	UpdateNameCtx(ctx context.Context, venueID int64, name string) error
	TouchVenueCtx(ctx context.Context, venueID int64) error
	MarkCourtCountSearchedCtx(ctx context.Context, venueID int64) error
	FlagVenueForDeletionCtx(ctx context.Context, venueID int64, reason, details, flaggedBy string) error
}

// CategoryRepository loads the taxonomy reference data.
type CategoryRepository interface {
	ListCategoriesCtx(ctx context.Context) ([]models.Category, error)
}

// AuditLogRepository reads the venue audit trail.
type AuditLogRepository interface {
	ListAuditLogsCtx(ctx context.Context, venueID int64) ([]VenueAuditLog, error)
}

// Repository aggregates the repos commonly required by services.
type Repository interface {
	VenueRepository
	CategoryRepository
	AuditLogRepository
}
