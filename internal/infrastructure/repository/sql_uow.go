package repository

import (
	"context"
	"database/sql"
	"fmt"

	"squash-venue-enrichment/internal/domain"
	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/pkg/database"
	errs "squash-venue-enrichment/pkg/errors"
)

// SQLUnitOfWorkFactory starts SQL-backed UnitOfWork transactions.
type SQLUnitOfWorkFactory struct {
	db *database.DB
}

func NewSQLUnitOfWorkFactory(db *database.DB) *SQLUnitOfWorkFactory {
	return &SQLUnitOfWorkFactory{db: db}
}

// Ensure interface conformance
var _ domain.UnitOfWorkFactory = (*SQLUnitOfWorkFactory)(nil)

func (f *SQLUnitOfWorkFactory) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := f.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.NewDB("uow.Begin", "begin tx", err)
	}
	return &SQLUnitOfWork{db: f.db, tx: tx}, nil
}

// SQLUnitOfWork coordinates operations using a single *sql.Tx.
type SQLUnitOfWork struct {
	db *database.DB
	tx *sql.Tx
	// simple guard to avoid double commit/rollback
	closed bool
}

var _ domain.UnitOfWork = (*SQLUnitOfWork)(nil)

func (u *SQLUnitOfWork) Commit() error {
	if u.closed {
		return nil
	}
	u.closed = true
	if err := u.tx.Commit(); err != nil {
		return errs.NewDB("uow.Commit", "commit", err)
	}
	return nil
}

func (u *SQLUnitOfWork) Rollback() error {
	if u.closed {
		return nil
	}
	u.closed = true
	return u.tx.Rollback()
}

func (u *SQLUnitOfWork) active(op string) error {
	if u.closed {
		return fmt.Errorf("uow: %s after commit/rollback", op)
	}
	return nil
}

func (u *SQLUnitOfWork) GetVenueForUpdateCtx(ctx context.Context, venueID int64) (*models.Venue, error) {
	if err := u.active("GetVenueForUpdateCtx"); err != nil {
		return nil, err
	}
	return u.db.GetVenueForUpdateTx(ctx, u.tx, venueID)
}

func (u *SQLUnitOfWork) CreateAuditLogCtx(ctx context.Context, entry *domain.VenueAuditLog) error {
	if err := u.active("CreateAuditLogCtx"); err != nil {
		return err
	}
	return u.db.CreateAuditLogTx(ctx, u.tx, entry)
}

func (u *SQLUnitOfWork) SetVenueCategoryCtx(ctx context.Context, venueID int64, categoryID int) error {
	if err := u.active("SetVenueCategoryCtx"); err != nil {
		return err
	}
	return u.db.SetVenueCategoryTx(ctx, u.tx, venueID, categoryID)
}

func (u *SQLUnitOfWork) SetVenueCourtCountCtx(ctx context.Context, venueID int64, courts int) error {
	if err := u.active("SetVenueCourtCountCtx"); err != nil {
		return err
	}
	return u.db.SetVenueCourtCountTx(ctx, u.tx, venueID, courts)
}
