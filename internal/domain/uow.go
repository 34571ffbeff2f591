package domain

import (
	"context"

	"squash-venue-enrichment/internal/models"
)

// UnitOfWork runs the read-audit-write sequence of a venue update inside one
// database transaction.
//
// Typical usage:
//
//	uow, err := factory.Begin(ctx)
//	if err != nil { ... }
//	defer uow.Rollback()
//	v, err := uow.GetVenueForUpdateCtx(ctx, id)
//	if err := uow.CreateAuditLogCtx(ctx, entry); err != nil { ... }
//	if err := uow.SetVenueCategoryCtx(ctx, id, categoryID); err != nil { ... }
//	if err := uow.Commit(); err != nil { ... }
//
// Rollback after Commit is a no-op, so the deferred call is always safe.
type UnitOfWork interface {
	Commit() error
	Rollback() error

	GetVenueForUpdateCtx(ctx context.Context, venueID int64) (*models.Venue, error)
	CreateAuditLogCtx(ctx context.Context, entry *VenueAuditLog) error
	SetVenueCategoryCtx(ctx context.Context, venueID int64, categoryID int) error
	SetVenueCourtCountCtx(ctx context.Context, venueID int64, courts int) error
}

// UnitOfWorkFactory starts new UnitOfWork instances.
// A returned UnitOfWork is already begun.
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
