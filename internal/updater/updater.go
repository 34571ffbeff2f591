// Package updater performs the audited venue mutations. Every method reports
// its outcome as a Result and never returns an error or panics to callers.
package updater

import (
	"context"
	"fmt"

	"squash-venue-enrichment/internal/domain"
	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/pkg/logging"
)

// Deletion reasons.
const (
	ReasonPlaceIDExpired = "place_id_expired"
	ReasonNoSquashCourts = "no_squash_courts"
)

// Result is the outcome of one mutation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func ok(format string, args ...any) Result {
	return Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

func fail(format string, args ...any) Result {
	return Result{Success: false, Message: fmt.Sprintf(format, args...)}
}

// Flagger is the single-statement write behind FlagVenueForDeletion.
type Flagger interface {
	FlagVenueForDeletionCtx(ctx context.Context, venueID int64, reason, details, flaggedBy string) error
}

type Updater struct {
	uow   domain.UnitOfWorkFactory
	flags Flagger
	tax   *models.Taxonomy
	actor string
	log   *logging.ComponentLogger
}

// New builds an Updater. actor is recorded as changed_by when the caller's
// metadata leaves it empty.
func New(uow domain.UnitOfWorkFactory, flags Flagger, tax *models.Taxonomy, actor string, log *logging.Logger) *Updater {
	if log == nil {
		log = logging.Nop()
	}
	if tax == nil {
		tax = models.DefaultTaxonomy()
	}
	return &Updater{uow: uow, flags: flags, tax: tax, actor: actor, log: log.WithComponent("updater")}
}

// UpdateCategory writes a new category with its audit row in one transaction.
func (u *Updater) UpdateCategory(ctx context.Context, venueID int64, categoryID int, meta domain.AuditMeta) (res Result) {
	defer u.guard("UpdateCategory", venueID, &res)

	if !u.tax.Valid(categoryID) {
		return fail("invalid category id %d", categoryID)
	}
	return u.audited(ctx, "UpdateCategory", venueID, meta,
		func(v *models.Venue) (*int, int) { return models.IntPtr(v.CategoryID), categoryID },
		domain.AuditFieldCategory,
		func(uow domain.UnitOfWork) error { return uow.SetVenueCategoryCtx(ctx, venueID, categoryID) },
		fmt.Sprintf("category set to %d (%s)", categoryID, u.tax.Name(categoryID)))
}

// UpdateCourtCount writes no_of_courts with its audit row in one transaction.
func (u *Updater) UpdateCourtCount(ctx context.Context, venueID int64, courts int, meta domain.AuditMeta) (res Result) {
	defer u.guard("UpdateCourtCount", venueID, &res)

	if courts <= 0 {
		return fail("invalid court count %d", courts)
	}
	return u.audited(ctx, "UpdateCourtCount", venueID, meta,
		func(v *models.Venue) (*int, int) { return v.NoOfCourts, courts },
		domain.AuditFieldCourtCount,
		func(uow domain.UnitOfWork) error { return uow.SetVenueCourtCountCtx(ctx, venueID, courts) },
		fmt.Sprintf("court count set to %d", courts))
}

// audited runs read-current, insert-audit, write-new inside one unit of work.
func (u *Updater) audited(ctx context.Context, op string, venueID int64, meta domain.AuditMeta,
	values func(*models.Venue) (*int, int), field string, write func(domain.UnitOfWork) error, done string) Result {

	if meta.ChangedBy == "" {
		meta.ChangedBy = u.actor
	}

	uow, err := u.uow.Begin(ctx)
	if err != nil {
		u.log.Error(op+": begin failed", err, logging.Int64("venue_id", venueID))
		return fail("could not start transaction: %v", err)
	}
	defer func() { _ = uow.Rollback() }()

	v, err := uow.GetVenueForUpdateCtx(ctx, venueID)
	if err != nil {
		u.log.Warn(op+": venue lookup failed", logging.Int64("venue_id", venueID), logging.Error(err))
		return fail("venue %d not loaded: %v", venueID, err)
	}
	oldValue, newValue := values(v)

	if err := uow.CreateAuditLogCtx(ctx, domain.NewAuditLog(venueID, field, oldValue, newValue, meta)); err != nil {
		u.log.Error(op+": audit insert failed", err, logging.Int64("venue_id", venueID))
		return fail("audit log not written: %v", err)
	}
	if err := write(uow); err != nil {
		u.log.Error(op+": write failed", err, logging.Int64("venue_id", venueID))
		return fail("%s not written: %v", field, err)
	}
	if err := uow.Commit(); err != nil {
		u.log.Error(op+": commit failed", err, logging.Int64("venue_id", venueID))
		return fail("commit failed: %v", err)
	}

	u.log.Info(op,
		logging.Int64("venue_id", venueID),
		logging.String("field", field),
		logging.Any("old", oldValue),
		logging.Int("new", newValue),
		logging.String("confidence", string(meta.Confidence)),
		logging.String("source", string(meta.Source)))
	return ok("%s", done)
}

// FlagVenueForDeletion marks a venue flagged_for_deletion with a structured
// reason. Flagging twice leaves the same end state.
func (u *Updater) FlagVenueForDeletion(ctx context.Context, venueID int64, reason, details string) (res Result) {
	defer u.guard("FlagVenueForDeletion", venueID, &res)

	if reason == "" {
		return fail("deletion reason is required")
	}
	if err := u.flags.FlagVenueForDeletionCtx(ctx, venueID, reason, details, u.actor); err != nil {
		u.log.Error("flag for deletion failed", err, logging.Int64("venue_id", venueID))
		return fail("venue %d not flagged: %v", venueID, err)
	}
	u.log.Info("venue flagged for deletion",
		logging.Int64("venue_id", venueID),
		logging.String("reason", reason),
		logging.String("details", details))
	return ok("venue flagged for deletion: %s", reason)
}

func (u *Updater) guard(op string, venueID int64, res *Result) {
	if r := recover(); r != nil {
		u.log.Error(op+": panic", fmt.Errorf("%v", r), logging.Int64("venue_id", venueID))
		*res = fail("%s panicked: %v", op, r)
	}
}
