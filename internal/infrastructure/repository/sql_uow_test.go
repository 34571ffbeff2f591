package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squash-venue-enrichment/internal/domain"
	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/pkg/database"
)

func newDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "uow.db"), database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestUnitOfWork_CommitAndRollback(t *testing.T) {
	db := newDB(t)
	ctx := context.Background()
	repo := NewSQLRepository(db)
	factory := NewSQLUnitOfWorkFactory(db)

	v := &models.Venue{Name: "Club", GPlaceID: "p1"}
	require.NoError(t, db.InsertVenueCtx(ctx, v))

	// rolled back: nothing persists
	uow, err := factory.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.SetVenueCategoryCtx(ctx, v.ID, models.CategoryGym))
	require.NoError(t, uow.Rollback())
	require.NoError(t, uow.Rollback(), "second rollback is a no-op")

	got, err := repo.GetVenueCtx(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryDontKnow, got.CategoryID)

	// committed
	uow, err = factory.Begin(ctx)
	require.NoError(t, err)
	locked, err := uow.GetVenueForUpdateCtx(ctx, v.ID)
	require.NoError(t, err)
	require.NoError(t, uow.CreateAuditLogCtx(ctx, domain.NewAuditLog(v.ID, domain.AuditFieldCategory, &locked.CategoryID, models.CategorySchool, domain.AuditMeta{
		Confidence: models.ConfidenceHigh, Source: models.SourceGoogleMapping, ChangedBy: "test",
	})))
	require.NoError(t, uow.SetVenueCategoryCtx(ctx, v.ID, models.CategorySchool))
	require.NoError(t, uow.Commit())
	require.NoError(t, uow.Rollback(), "rollback after commit is a no-op")

	got, err = repo.GetVenueCtx(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CategorySchool, got.CategoryID)

	logs, err := repo.ListAuditLogsCtx(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	assert.Error(t, uow.SetVenueCourtCountCtx(ctx, v.ID, 2), "closed unit of work rejects writes")
}
