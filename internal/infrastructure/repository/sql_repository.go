package repository

import (
	"context"

	"squash-venue-enrichment/internal/domain"
	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/pkg/database"
)

// SQLRepository is a thin adapter over pkg/database.DB to satisfy domain repositories.
// It keeps the pipeline decoupled from the SQL layer.
type SQLRepository struct {
	db *database.DB
}

func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Ensure interface compliance at compile time
var _ domain.Repository = (*SQLRepository)(nil)

// VenueRepository methods
func (r *SQLRepository) GetVenueCtx(ctx context.Context, venueID int64) (*models.Venue, error) {
	return r.db.GetVenueCtx(ctx, venueID)
}

func (r *SQLRepository) ListVenuesForCategorizationCtx(ctx context.Context, limit int) ([]models.Venue, error) {
	return r.db.ListVenuesForCategorizationCtx(ctx, limit)
}

func (r *SQLRepository) FindVenueByPlaceIDCtx(ctx context.Context, placeID string, excludeVenueID int64) (*models.Venue, error) {
	return r.db.FindVenueByPlaceIDCtx(ctx, placeID, excludeVenueID)
}

func (r *SQLRepository) FindVenuesAtAddressCtx(ctx context.Context, venue models.Venue) ([]models.Venue, error) {
	return r.db.FindVenuesAtAddressCtx(ctx, venue)
}

func (r *SQLRepository) FindVenuesNearCtx(ctx context.Context, lat, lng, radiusMeters float64, excludeVenueID int64) ([]models.NearbyVenue, error) {
	return r.db.FindVenuesNearCtx(ctx, lat, lng, radiusMeters, excludeVenueID)
}

func (r *SQLRepository) UpdatePlaceIDCtx(ctx context.Context, venueID int64, placeID string) error {
	return r.db.UpdatePlaceIDCtx(ctx, venueID, placeID)
}

func (r *SQLRepository) UpdateNameCtx(ctx context.Context, venueID int64, name string) error {
	return r.db.UpdateNameCtx(ctx, venueID, name)
}

func (r *SQLRepository) TouchVenueCtx(ctx context.Context, venueID int64) error {
	return r.db.TouchVenueCtx(ctx, venueID)
}

func (r *SQLRepository) MarkCourtCountSearchedCtx(ctx context.Context, venueID int64) error {
	return r.db.MarkCourtCountSearchedCtx(ctx, venueID)
}

func (r *SQLRepository) FlagVenueForDeletionCtx(ctx context.Context, venueID int64, reason, details, flaggedBy string) error {
	return r.db.FlagVenueForDeletionCtx(ctx, venueID, reason, details, flaggedBy)
}

// CategoryRepository methods
func (r *SQLRepository) ListCategoriesCtx(ctx context.Context) ([]models.Category, error) {
	return r.db.ListCategoriesCtx(ctx)
}

// AuditLogRepository methods
func (r *SQLRepository) ListAuditLogsCtx(ctx context.Context, venueID int64) ([]domain.VenueAuditLog, error) {
	return r.db.ListAuditLogsCtx(ctx, venueID)
}
