package updater

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squash-venue-enrichment/internal/domain"
	"squash-venue-enrichment/internal/infrastructure/repository"
	"squash-venue-enrichment/internal/models"
	testutil "squash-venue-enrichment/internal/testing"
	"squash-venue-enrichment/pkg/database"
)

func newUpdater(t *testing.T) (*Updater, *database.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return New(repository.NewSQLUnitOfWorkFactory(db), repository.NewSQLRepository(db), nil, "test-runner", nil), db
}

var meta = domain.AuditMeta{Confidence: models.ConfidenceHigh, Reasoning: "Name contains 'university'", Source: models.SourceGoogleMapping}

func TestUpdateCategory(t *testing.T) {
	u, db := newUpdater(t)
	ctx := context.Background()
	v := testutil.InsertVenue(t, db, models.Venue{Name: "Campus Courts", GPlaceID: "p1"})

	res := u.UpdateCategory(ctx, v.ID, models.CategoryUniversity, meta)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, models.CategoryUniversity, testutil.MustGetVenue(t, db, v.ID).CategoryID)

	logs, err := db.ListAuditLogsCtx(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.AuditFieldCategory, logs[0].Field)
	assert.Equal(t, "6", *logs[0].OldValue)
	assert.Equal(t, "8", *logs[0].NewValue)
	assert.Equal(t, "HIGH", logs[0].Confidence)
	assert.Equal(t, "GOOGLE_MAPPING", logs[0].Source)
	assert.Equal(t, "test-runner", logs[0].ChangedBy)

	// same value again: end state unchanged, audit rows accumulate
	res = u.UpdateCategory(ctx, v.ID, models.CategoryUniversity, meta)
	require.True(t, res.Success)
	logs, err = db.ListAuditLogsCtx(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestUpdateCategory_Rejections(t *testing.T) {
	u, db := newUpdater(t)
	ctx := context.Background()
	v := testutil.InsertVenue(t, db, models.Venue{Name: "X", GPlaceID: "p1"})

	res := u.UpdateCategory(ctx, v.ID, 99, meta)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "invalid category")

	res = u.UpdateCategory(ctx, 424242, models.CategoryGym, meta)
	assert.False(t, res.Success)
}

func TestUpdateCategory_AuditFailureRollsBack(t *testing.T) {
	u, db := newUpdater(t)
	ctx := context.Background()
	v := testutil.InsertVenue(t, db, models.Venue{Name: "X", GPlaceID: "p1"})
	testutil.FailAuditInserts(t, db)

	res := u.UpdateCategory(ctx, v.ID, models.CategoryGym, meta)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "audit")
	assert.Equal(t, models.CategoryDontKnow, testutil.MustGetVenue(t, db, v.ID).CategoryID)

	res = u.UpdateCourtCount(ctx, v.ID, 4, meta)
	assert.False(t, res.Success)
	assert.Nil(t, testutil.MustGetVenue(t, db, v.ID).NoOfCourts)
}

func TestUpdateCategory_WriteFailureRollsBackAudit(t *testing.T) {
	u, db := newUpdater(t)
	ctx := context.Background()
	v := testutil.InsertVenue(t, db, models.Venue{Name: "X", GPlaceID: "p1"})
	testutil.FailVenueColumnUpdates(t, db, "category_id")

	res := u.UpdateCategory(ctx, v.ID, models.CategoryGym, meta)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "category_id")
	assert.Equal(t, models.CategoryDontKnow, testutil.MustGetVenue(t, db, v.ID).CategoryID)

	logs, err := db.ListAuditLogsCtx(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestUpdateCourtCount_WriteFailureRollsBackAudit(t *testing.T) {
	u, db := newUpdater(t)
	ctx := context.Background()
	v := testutil.InsertVenue(t, db, models.Venue{Name: "X", GPlaceID: "p1"})
	testutil.FailVenueColumnUpdates(t, db, "no_of_courts")

	res := u.UpdateCourtCount(ctx, v.ID, 4, meta)
	assert.False(t, res.Success)
	assert.Nil(t, testutil.MustGetVenue(t, db, v.ID).NoOfCourts)

	logs, err := db.ListAuditLogsCtx(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestUpdateCourtCount(t *testing.T) {
	u, db := newUpdater(t)
	ctx := context.Background()
	v := testutil.InsertVenue(t, db, models.Venue{Name: "X", GPlaceID: "p1"})

	res := u.UpdateCourtCount(ctx, v.ID, 0, meta)
	assert.False(t, res.Success)

	res = u.UpdateCourtCount(ctx, v.ID, 3, domain.AuditMeta{Confidence: models.ConfidenceMedium, Source: models.SourceOpenAI, ChangedBy: "someone"})
	require.True(t, res.Success, res.Message)

	got := testutil.MustGetVenue(t, db, v.ID)
	require.NotNil(t, got.NoOfCourts)
	assert.Equal(t, 3, *got.NoOfCourts)
	assert.NotNil(t, got.CourtCountSearchedAt)

	logs, err := db.ListAuditLogsCtx(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].OldValue)
	assert.Equal(t, "someone", logs[0].ChangedBy)
}

func TestFlagVenueForDeletion(t *testing.T) {
	u, db := newUpdater(t)
	ctx := context.Background()
	v := testutil.InsertVenue(t, db, models.Venue{Name: "X", GPlaceID: "p1"})

	assert.False(t, u.FlagVenueForDeletion(ctx, v.ID, "", "").Success)

	for i := 0; i < 2; i++ {
		res := u.FlagVenueForDeletion(ctx, v.ID, ReasonPlaceIDExpired, "Expired Place ID, venue not found")
		require.True(t, res.Success, res.Message)
	}
	got := testutil.MustGetVenue(t, db, v.ID)
	assert.Equal(t, models.StatusFlaggedForDeletion, got.Status)
	assert.Equal(t, ReasonPlaceIDExpired, got.DeletionReason)
	assert.Equal(t, "Expired Place ID, venue not found", got.DeletionReasonDetails)
	assert.Equal(t, "test-runner", got.DeletionFlaggedBy)
	assert.NotNil(t, got.DeletionFlaggedAt)

	assert.False(t, u.FlagVenueForDeletion(ctx, 777, ReasonNoSquashCourts, "").Success)
}

type panickyFactory struct{}

func (panickyFactory) Begin(ctx context.Context) (domain.UnitOfWork, error) { panic("driver bug") }

type failingFactory struct{}

func (failingFactory) Begin(ctx context.Context) (domain.UnitOfWork, error) {
	return nil, errors.New("too many connections")
}

func TestUpdater_NeverPanicsOrErrors(t *testing.T) {
	u := New(panickyFactory{}, nil, nil, "x", nil)
	res := u.UpdateCategory(context.Background(), 1, models.CategoryGym, meta)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "panicked")

	u = New(failingFactory{}, nil, nil, "x", nil)
	res = u.UpdateCourtCount(context.Background(), 1, 2, meta)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "too many connections")
}
