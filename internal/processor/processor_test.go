package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"squash-venue-enrichment/internal/detector"
	"squash-venue-enrichment/internal/domain"
	"squash-venue-enrichment/internal/infrastructure/repository"
	"squash-venue-enrichment/internal/mapper"
	"squash-venue-enrichment/internal/models"
	testutil "squash-venue-enrichment/internal/testing"
	"squash-venue-enrichment/internal/updater"
	"squash-venue-enrichment/internal/venuecontext"
	"squash-venue-enrichment/pkg/database"
)

type harness struct {
	db     *database.DB
	places *testutil.MockPlaces
	ai     *testutil.MockAI
	courts *testutil.MockCourts
	det    *detector.Detector
	p      *Processor
}

type harnessOpts struct {
	noAI     bool
	noCourts bool
	// ownerBlind hides Place ID owners from the pre-write check so the
	// database uniqueness constraint is what catches the collision.
	ownerBlind bool
}

type ownerBlindRepo struct {
	*repository.SQLRepository
}

func (ownerBlindRepo) FindVenueByPlaceIDCtx(ctx context.Context, placeID string, excludeVenueID int64) (*models.Venue, error) {
	return nil, nil
}

func newHarness(t *testing.T, ho harnessOpts) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	repo := repository.NewSQLRepository(db)
	tax := models.DefaultTaxonomy()

	mrules, err := mapper.DefaultRules()
	require.NoError(t, err)
	crules, err := venuecontext.DefaultRules()
	require.NoError(t, err)

	h := &harness{
		db:     db,
		places: testutil.NewMockPlaces(),
		ai:     testutil.NewMockAI(),
		courts: testutil.NewMockCourts(),
		det:    detector.New(),
	}
	var venues domain.VenueRepository = repo
	if ho.ownerBlind {
		venues = ownerBlindRepo{repo}
	}
	d := Deps{
		Venues:   venues,
		Places:   h.places,
		Mapper:   mapper.New(mrules, tax, nil, nil),
		Context:  venuecontext.New(crules, repo, tax, nil),
		Updater:  updater.New(repository.NewSQLUnitOfWorkFactory(db), repo, tax, "test-runner", nil),
		Tracker:  h.det,
		Taxonomy: tax,
	}
	if !ho.noAI {
		d.AI = h.ai
	}
	if !ho.noCourts {
		d.Courts = h.courts
	}
	h.p = New(d, Config{Actor: "tester"}, nil)
	return h
}

// venue inserts a gap-category venue whose Places details are snap.
func (h *harness) venue(t *testing.T, name, placeID string, snap *models.PlacesSnapshot) models.Venue {
	t.Helper()
	v := testutil.InsertVenue(t, h.db, models.Venue{Name: name, GPlaceID: placeID})
	if snap != nil {
		if snap.ID == "" {
			snap.ID = placeID
		}
		if snap.DisplayName == "" {
			snap.DisplayName = name
		}
		h.places.Details[placeID] = snap
	}
	return v
}

func (h *harness) audit(t *testing.T, venueID int64) []domain.VenueAuditLog {
	t.Helper()
	logs, err := h.db.ListAuditLogsCtx(context.Background(), venueID)
	require.NoError(t, err)
	return logs
}

var defaultOpts = Options{MinConfidence: models.ConfidenceMedium, SkipCourtCounts: true}

func categoryOf(t *testing.T, res models.CategorizationResult) int {
	t.Helper()
	require.NotNil(t, res.CategoryID, res.Reasoning)
	return *res.CategoryID
}

func TestCategorizeVenue_DedicatedSquashClub(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Riverside Squash Club", "p-a", &models.PlacesSnapshot{PrimaryType: "gym", Types: []string{"gym"}})

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryDedicatedFacility, categoryOf(t, res))
	assert.Equal(t, models.ConfidenceHigh, res.Confidence)
	assert.Equal(t, mapper.MatchNameHigh, res.MatchedType)
	assert.Equal(t, models.SourceGoogleMapping, res.Source)
	assert.True(t, res.CategoryUpdated)
	assert.Empty(t, res.Error)
	assert.Zero(t, h.ai.Calls)

	assert.Equal(t, models.CategoryDedicatedFacility, testutil.MustGetVenue(t, h.db, v.ID).CategoryID)
	logs := h.audit(t, v.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, "6", *logs[0].OldValue)
	assert.Equal(t, "5", *logs[0].NewValue)
	assert.Equal(t, "GOOGLE_MAPPING", logs[0].Source)
	assert.Equal(t, "tester", logs[0].ChangedBy)
}

func TestCategorizeVenue_MultiSportName(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Riverside Sports Centre", "p-b", &models.PlacesSnapshot{
		PrimaryType:      "sports_complex",
		Types:            []string{"sports_complex"},
		EditorialSummary: "Council sports centre with squash courts and a pool.",
	})

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryLeisureCentre, categoryOf(t, res))
	assert.Equal(t, models.ConfidenceHigh, res.Confidence)
	assert.Equal(t, mapper.MatchNameMultiSport, res.MatchedType)
	assert.True(t, res.SubVenue)
	assert.False(t, res.ContextAdjusted)
}

func TestCategorizeVenue_TypeCombination(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Northfield Venue", "p-c", &models.PlacesSnapshot{
		PrimaryType: "gym",
		Types:       []string{"gym", "swimming_pool"},
	})

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryLeisureCentre, categoryOf(t, res))
	assert.Equal(t, models.ConfidenceHigh, res.Confidence)
	assert.Equal(t, "gym+swimming_pool", res.MatchedType)
	assert.Equal(t, "Leisure centre", res.CategoryName)
}

func TestCategorizeVenue_ContextAdjustsToGym(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Virgin Active Chelsea - Squash Club", "p-ctx", &models.PlacesSnapshot{})

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryGym, categoryOf(t, res))
	assert.Equal(t, models.ConfidenceMedium, res.Confidence)
	assert.True(t, res.ContextAdjusted)
	assert.True(t, res.SubVenue)
	assert.True(t, res.CategoryUpdated)
}

func TestCategorizeVenue_PlaceIDRefreshed(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Riverside Squash Club", "p-old", nil)
	h.places.Refresh["p-old"] = "p-new"
	h.places.Details["p-new"] = &models.PlacesSnapshot{ID: "p-new", DisplayName: "Riverside Squash Club", Types: []string{"gym"}, PrimaryType: "gym"}

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.True(t, res.PlaceIDRefreshed)
	assert.Equal(t, RefreshSourceFree, res.PlaceIDRefreshSource)
	assert.Equal(t, "p-new", res.NewPlaceID)
	assert.Equal(t, models.CategoryDedicatedFacility, categoryOf(t, res))
	assert.Zero(t, h.places.FindCalls)

	assert.Equal(t, "p-new", testutil.MustGetVenue(t, h.db, v.ID).GPlaceID)
}

func TestCategorizeVenue_PlaceIDFromTextSearch(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Riverside Squash Club", "p-old", nil)
	h.places.Found[v.ID] = "p-found"
	h.places.Details["p-found"] = &models.PlacesSnapshot{ID: "p-found", DisplayName: "Riverside Squash Club"}

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.True(t, res.PlaceIDRefreshed)
	assert.Equal(t, RefreshSourceTextSearch, res.PlaceIDRefreshSource)
	assert.Equal(t, 1, h.places.FindCalls)
	assert.Equal(t, "p-found", testutil.MustGetVenue(t, h.db, v.ID).GPlaceID)
}

func TestCategorizeVenue_UnrepairablePlaceIDFlagsVenue(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Gone Squash Club", "p-dead", nil)

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.True(t, res.VenueFlaggedForDeletion)
	assert.Equal(t, updater.ReasonPlaceIDExpired, res.DeletionReason)
	assert.Equal(t, PlaceIDExpired.Description, res.Error)
	assert.Nil(t, res.CategoryID)
	assert.Empty(t, res.CategoryName)
	assert.False(t, res.CategoryUpdated)
	assert.Equal(t, 1, h.places.FindCalls)

	got := testutil.MustGetVenue(t, h.db, v.ID)
	assert.Equal(t, models.StatusFlaggedForDeletion, got.Status)
	assert.Equal(t, updater.ReasonPlaceIDExpired, got.DeletionReason)
	assert.Equal(t, models.CategoryDontKnow, got.CategoryID)
	assert.Empty(t, h.audit(t, v.ID))
}

func TestCategorizeVenue_TransientPlacesErrorDoesNotRepair(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Riverside Squash Club", "p-1", nil)
	h.places.DetailsErr["p-1"] = errors.New("dial tcp: connection reset by peer")

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.Contains(t, res.Error, "unavailable")
	assert.False(t, res.VenueFlaggedForDeletion)
	assert.Zero(t, h.places.FindCalls)
	assert.Equal(t, models.StatusApproved, testutil.MustGetVenue(t, h.db, v.ID).Status)
}

func TestCategorizeVenue_TextSearchErrorDoesNotFlag(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Riverside Squash Club", "p-1", nil)
	h.places.FindErr = errors.New("OVER_QUERY_LIMIT")

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.Contains(t, res.Error, "text search")
	assert.False(t, res.VenueFlaggedForDeletion)
	assert.Equal(t, models.StatusApproved, testutil.MustGetVenue(t, h.db, v.ID).Status)
}

func TestCategorizeVenue_RefreshedIDOwnedByAnotherVenue(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	owner := testutil.InsertVenue(t, h.db, models.Venue{Name: "Other Venue", GPlaceID: "p-new", CategoryID: models.CategoryGym})
	v := h.venue(t, "Riverside Squash Club", "p-old", nil)
	h.places.Refresh["p-old"] = "p-new"
	h.places.Details["p-new"] = &models.PlacesSnapshot{ID: "p-new", DisplayName: "Riverside Squash Club"}

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.False(t, res.PlaceIDRefreshed)
	assert.Equal(t, "p-new", res.NewPlaceID)
	assert.Contains(t, res.Reasoning, "already used by another venue")
	// the run still classifies from the new details
	assert.Equal(t, models.CategoryDedicatedFacility, categoryOf(t, res))

	assert.Equal(t, "p-old", testutil.MustGetVenue(t, h.db, v.ID).GPlaceID)
	assert.Equal(t, "p-new", testutil.MustGetVenue(t, h.db, owner.ID).GPlaceID)
}

func TestCategorizeVenue_RefreshedIDRejectedByUniqueConstraint(t *testing.T) {
	h := newHarness(t, harnessOpts{ownerBlind: true})
	owner := testutil.InsertVenue(t, h.db, models.Venue{Name: "Other Venue", GPlaceID: "p-new", CategoryID: models.CategoryGym})
	v := h.venue(t, "Riverside Squash Club", "p-old", nil)
	h.places.Refresh["p-old"] = "p-new"
	h.places.Details["p-new"] = &models.PlacesSnapshot{ID: "p-new", DisplayName: "Riverside Squash Club"}

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.False(t, res.PlaceIDRefreshed)
	assert.Equal(t, "p-new", res.NewPlaceID)
	assert.Empty(t, res.Error)
	assert.Contains(t, res.Reasoning, "already used by another venue")

	assert.Equal(t, "p-old", testutil.MustGetVenue(t, h.db, v.ID).GPlaceID)
	assert.Equal(t, "p-new", testutil.MustGetVenue(t, h.db, owner.ID).GPlaceID)
}

func TestCategorizeVenue_NameReconciled(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Riverside SC", "p-1", &models.PlacesSnapshot{DisplayName: "Riverside Squash Club"})

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.True(t, res.NameUpdated)
	assert.Equal(t, "Riverside SC", res.OldName)
	assert.Equal(t, "Riverside Squash Club", res.NewName)
	assert.Equal(t, "Riverside Squash Club", testutil.MustGetVenue(t, h.db, v.ID).Name)
}

func TestCategorizeVenue_AIFallback(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Zeta Holdings", "p-z", &models.PlacesSnapshot{PrimaryType: "point_of_interest", Types: []string{"point_of_interest"}})
	h.ai.Resp[v.ID] = models.AICategoryResult{
		CategoryID: models.IntPtr(models.CategoryCommunityCentre),
		Confidence: models.ConfidenceHigh,
		Reasoning:  "Run by the parish council",
	}

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, 1, h.ai.Calls)
	assert.Equal(t, models.CategoryCommunityCentre, categoryOf(t, res))
	assert.Equal(t, models.SourceOpenAI, res.Source)
	assert.Equal(t, "ai", res.MatchedType)
	assert.True(t, res.CategoryUpdated)

	logs := h.audit(t, v.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, "OPENAI", logs[0].Source)

	rep := h.det.Report(10)
	assert.Equal(t, 1, rep.UnmappedVenues)
}

func TestCategorizeVenue_AISuggestsNewCategory(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Zeta Holdings", "p-z", &models.PlacesSnapshot{})
	h.ai.Resp[v.ID] = models.AICategoryResult{
		Confidence:         models.ConfidenceLow,
		Reasoning:          "Looks like a church hall",
		SuggestedCategory:  "Religious venue",
		SuggestNewCategory: true,
	}

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.Nil(t, res.CategoryID)
	assert.True(t, res.AISuggestNew)
	assert.Equal(t, "Religious venue", res.AISuggestedCategory)
	assert.False(t, res.CategoryUpdated)

	rep := h.det.Report(10)
	require.Len(t, rep.Suggestions, 1)
	assert.Equal(t, "Religious venue", rep.Suggestions[0].Name)
}

func TestCategorizeVenue_NoAIWhenNotWired(t *testing.T) {
	h := newHarness(t, harnessOpts{noAI: true})
	v := h.venue(t, "Zeta Holdings", "p-z", &models.PlacesSnapshot{})

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.False(t, h.p.Capabilities().AIFallback)
	assert.Zero(t, h.ai.Calls)
	assert.Nil(t, res.CategoryID)
	assert.Empty(t, res.Error)
}

func TestCategorizeVenue_BelowMinConfidenceNotWritten(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Northfield Venue", "p-1", &models.PlacesSnapshot{PrimaryType: "sports_complex", Types: []string{"sports_complex"}})

	opts := defaultOpts
	opts.MinConfidence = models.ConfidenceHigh
	res, err := h.p.CategorizeVenue(context.Background(), v.ID, opts)
	require.NoError(t, err)
	assert.Equal(t, models.CategoryLeisureCentre, categoryOf(t, res))
	assert.Equal(t, models.ConfidenceMedium, res.Confidence)
	assert.False(t, res.CategoryUpdated)
	assert.Equal(t, models.CategoryDontKnow, testutil.MustGetVenue(t, h.db, v.ID).CategoryID)
	assert.Empty(t, h.audit(t, v.ID))
}

func TestCategorizeVenue_DryRunWritesNothing(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Riverside SC", "p-old", nil)
	h.places.Refresh["p-old"] = "p-new"
	h.places.Details["p-new"] = &models.PlacesSnapshot{ID: "p-new", DisplayName: "Riverside Squash Club"}
	before := testutil.MustGetVenue(t, h.db, v.ID)

	opts := defaultOpts
	opts.DryRun = true
	res, err := h.p.CategorizeVenue(context.Background(), v.ID, opts)
	require.NoError(t, err)
	assert.True(t, res.CategoryUpdated)
	assert.True(t, res.PlaceIDRefreshed)
	assert.True(t, res.NameUpdated)

	after := testutil.MustGetVenue(t, h.db, v.ID)
	assert.Equal(t, before.GPlaceID, after.GPlaceID)
	assert.Equal(t, before.Name, after.Name)
	assert.Equal(t, before.CategoryID, after.CategoryID)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
	assert.Empty(t, h.audit(t, v.ID))
}

func TestCategorizeVenue_SkipsFlaggedVenue(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := testutil.InsertVenue(t, h.db, models.Venue{Name: "X", GPlaceID: "p-1", Status: models.StatusFlaggedForDeletion})

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, FlaggedVenue.Description, res.Error)
	assert.Empty(t, h.places.DetailCalls)
}

func TestCategorizeVenue_NoPlaceID(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := testutil.InsertVenue(t, h.db, models.Venue{Name: "X"})

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, NoPlaceID.Description, res.Error)
	assert.True(t, res.Failed())
}

func TestCategorizeVenue_GuardExitLeavesVenueUntouched(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	noID := testutil.InsertVenue(t, h.db, models.Venue{Name: "X", UpdatedAt: old})
	flagged := testutil.InsertVenue(t, h.db, models.Venue{Name: "Y", GPlaceID: "p-1", Status: models.StatusFlaggedForDeletion, UpdatedAt: old})

	for _, v := range []models.Venue{noID, flagged} {
		res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
		require.NoError(t, err)
		assert.True(t, IsGuardExit(res.ExitCode), res.ExitCode)

		got := testutil.MustGetVenue(t, h.db, v.ID)
		assert.True(t, got.UpdatedAt.Equal(old), "updated_at moved to %s", got.UpdatedAt)
		assert.Empty(t, h.audit(t, v.ID))
	}
	assert.Empty(t, h.places.DetailCalls)
}

func TestCategorizeVenue_PlacesOutageStillRotatesVenue(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	v := testutil.InsertVenue(t, h.db, models.Venue{Name: "Riverside Squash Club", GPlaceID: "p-1", UpdatedAt: old})
	h.places.DetailsErr["p-1"] = errors.New("maps: connection reset")

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, defaultOpts)
	require.NoError(t, err)
	assert.Equal(t, "places_unavailable", res.ExitCode)
	assert.False(t, IsGuardExit(res.ExitCode))
	assert.True(t, testutil.MustGetVenue(t, h.db, v.ID).UpdatedAt.After(old))
}

func TestCategorizeVenue_UnknownVenue(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	_, err := h.p.CategorizeVenue(context.Background(), 4242, defaultOpts)
	require.Error(t, err)
}

func TestCourtCount_NullCountWithEvidenceKeepsVenue(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Riverside Squash Club", "p-1", &models.PlacesSnapshot{})
	h.courts.Resp[v.ID] = models.CourtCountResult{Confidence: models.ConfidenceLow, Reasoning: "mentions squash, no number", EvidenceFound: true}

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, Options{MinConfidence: models.ConfidenceMedium})
	require.NoError(t, err)
	assert.True(t, res.CourtCountSearched)
	assert.False(t, res.CourtCountUpdated)
	assert.False(t, res.VenueFlaggedForDeletion)

	got := testutil.MustGetVenue(t, h.db, v.ID)
	assert.Nil(t, got.NoOfCourts)
	assert.NotNil(t, got.CourtCountSearchedAt)
	assert.Equal(t, models.StatusApproved, got.Status)
}

func TestCourtCount_NoEvidenceFlagsVenue(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Riverside Squash Club", "p-1", &models.PlacesSnapshot{})
	h.courts.Resp[v.ID] = models.CourtCountResult{Confidence: models.ConfidenceHigh, Reasoning: "Website lists tennis and padel only", EvidenceFound: false}

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, Options{MinConfidence: models.ConfidenceMedium})
	require.NoError(t, err)
	assert.True(t, res.VenueFlaggedForDeletion)
	assert.Equal(t, updater.ReasonNoSquashCourts, res.DeletionReason)
	// flagged venues keep their category
	assert.False(t, res.CategoryUpdated)

	got := testutil.MustGetVenue(t, h.db, v.ID)
	assert.Equal(t, models.StatusFlaggedForDeletion, got.Status)
	assert.Equal(t, updater.ReasonNoSquashCourts, got.DeletionReason)
	assert.Equal(t, models.CategoryDontKnow, got.CategoryID)
}

func TestCourtCount_ApplicableCountWritten(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Riverside Squash Club", "p-1", &models.PlacesSnapshot{})
	h.courts.Resp[v.ID] = models.CourtCountResult{
		CourtCount:    models.IntPtr(4),
		Confidence:    models.ConfidenceHigh,
		Reasoning:     "Facilities page lists 4 squash courts",
		SourceURL:     "https://riverside.example/facilities",
		EvidenceFound: true,
	}

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, Options{MinConfidence: models.ConfidenceMedium})
	require.NoError(t, err)
	assert.True(t, res.CourtCountUpdated)

	got := testutil.MustGetVenue(t, h.db, v.ID)
	require.NotNil(t, got.NoOfCourts)
	assert.Equal(t, 4, *got.NoOfCourts)

	var courtLog *domain.VenueAuditLog
	for _, l := range h.audit(t, v.ID) {
		if l.Field == domain.AuditFieldCourtCount {
			courtLog = &l
		}
	}
	require.NotNil(t, courtLog)
	assert.Nil(t, courtLog.OldValue)
	assert.Equal(t, "4", *courtLog.NewValue)
	assert.Equal(t, "OPENAI", courtLog.Source)
	assert.Contains(t, courtLog.Reasoning, "riverside.example")
}

func TestCourtCount_SkippedWhenKnownOrDisabled(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	known := testutil.InsertVenue(t, h.db, models.Venue{Name: "Known Squash Club", GPlaceID: "p-k", NoOfCourts: models.IntPtr(3)})
	h.places.Details["p-k"] = &models.PlacesSnapshot{ID: "p-k", DisplayName: "Known Squash Club"}

	_, err := h.p.CategorizeVenue(context.Background(), known.ID, Options{MinConfidence: models.ConfidenceMedium})
	require.NoError(t, err)
	_, err = h.p.CategorizeVenue(context.Background(), known.ID, defaultOpts)
	require.NoError(t, err)
	assert.Zero(t, h.courts.Calls)

	h2 := newHarness(t, harnessOpts{noCourts: true})
	v := h2.venue(t, "Riverside Squash Club", "p-1", &models.PlacesSnapshot{})
	res, err := h2.p.CategorizeVenue(context.Background(), v.ID, Options{MinConfidence: models.ConfidenceMedium})
	require.NoError(t, err)
	assert.False(t, res.CourtCountSearched)
	assert.False(t, h2.p.Capabilities().CourtCounts)
}

func TestCourtCount_SearchErrorLeavesVenueUnsearched(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	v := h.venue(t, "Riverside Squash Club", "p-1", &models.PlacesSnapshot{})
	h.courts.Err[v.ID] = errors.New("openai: timeout")

	res, err := h.p.CategorizeVenue(context.Background(), v.ID, Options{MinConfidence: models.ConfidenceMedium})
	require.NoError(t, err)
	assert.False(t, res.CourtCountSearched)
	assert.Empty(t, res.Error)
	assert.Nil(t, testutil.MustGetVenue(t, h.db, v.ID).CourtCountSearchedAt)
	// the category still lands
	assert.True(t, res.CategoryUpdated)
}

func TestCourtCount_RecentSearchNotRepeated(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	recent := time.Now().UTC().Add(-24 * time.Hour)
	stale := time.Now().UTC().Add(-60 * 24 * time.Hour)

	fresh := testutil.InsertVenue(t, h.db, models.Venue{Name: "Riverside Squash Club", GPlaceID: "p-1", CourtCountSearchedAt: &recent})
	h.places.Details["p-1"] = &models.PlacesSnapshot{ID: "p-1", DisplayName: "Riverside Squash Club"}
	res, err := h.p.CategorizeVenue(context.Background(), fresh.ID, Options{MinConfidence: models.ConfidenceMedium})
	require.NoError(t, err)
	assert.False(t, res.CourtCountSearched)
	assert.Zero(t, h.courts.Calls)

	old := testutil.InsertVenue(t, h.db, models.Venue{Name: "Northfield Squash Club", GPlaceID: "p-2", CourtCountSearchedAt: &stale})
	h.places.Details["p-2"] = &models.PlacesSnapshot{ID: "p-2", DisplayName: "Northfield Squash Club"}
	res, err = h.p.CategorizeVenue(context.Background(), old.ID, Options{MinConfidence: models.ConfidenceMedium})
	require.NoError(t, err)
	assert.True(t, res.CourtCountSearched)
	assert.Equal(t, 1, h.courts.Calls)
}

func TestRunBatch(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	a := h.venue(t, "Riverside Squash Club", "p-a", &models.PlacesSnapshot{})
	b := h.venue(t, "Gone Squash Club", "p-b", nil)
	c := h.venue(t, "Zeta Holdings", "p-c", &models.PlacesSnapshot{PrimaryType: "bowling_alley", Types: []string{"bowling_alley", "point_of_interest"}})
	// not queued: already categorized
	testutil.InsertVenue(t, h.db, models.Venue{Name: "Done", GPlaceID: "p-d", CategoryID: models.CategoryGym})

	sum, err := h.p.RunBatch(context.Background(), BatchOptions{Options: defaultOpts, Limit: 10})
	require.NoError(t, err)
	require.NotNil(t, sum)

	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 3, sum.Processed)
	assert.Equal(t, 1, sum.CategoriesUpdated)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Flagged)
	assert.Len(t, sum.Results, 3)
	assert.Equal(t, 1, sum.ByConfidence[models.ConfidenceHigh])

	require.Len(t, sum.Unmapped.Types, 1)
	assert.Equal(t, "bowling_alley", sum.Unmapped.Types[0].Type)
	assert.Equal(t, c.ID, sum.Unmapped.Types[0].Samples[0].VenueID)

	logs := h.audit(t, a.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, "tester/"+sum.RunID[:8], logs[0].ChangedBy)

	assert.Equal(t, models.StatusFlaggedForDeletion, testutil.MustGetVenue(t, h.db, b.ID).Status)
}

func TestRunBatch_OwnUnmappedReport(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	single := h.venue(t, "Alpha Holdings", "p-s", &models.PlacesSnapshot{PrimaryType: "car_wash"})
	_, err := h.p.CategorizeVenue(context.Background(), single.ID, defaultOpts)
	require.NoError(t, err)
	require.Equal(t, 1, h.det.Report(10).UnmappedVenues)
	// keep the single-venue run out of the batch queue
	_, err = h.db.Conn().Exec(`UPDATE venues SET category_id = ? WHERE id = ?`, models.CategoryGym, single.ID)
	require.NoError(t, err)

	h.venue(t, "Zeta Holdings", "p-z", &models.PlacesSnapshot{PrimaryType: "bowling_alley"})
	first, err := h.p.RunBatch(context.Background(), BatchOptions{Options: defaultOpts})
	require.NoError(t, err)
	require.Len(t, first.Unmapped.Types, 1)
	assert.Equal(t, "bowling_alley", first.Unmapped.Types[0].Type)

	second, err := h.p.RunBatch(context.Background(), BatchOptions{Options: defaultOpts})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Unmapped.UnmappedVenues)

	// batches neither read nor reset the single-venue tracker
	rep := h.det.Report(10)
	assert.Equal(t, 1, rep.UnmappedVenues)
	require.Len(t, rep.Types, 1)
	assert.Equal(t, "car_wash", rep.Types[0].Type)
}

func TestRunBatch_OneAtATime(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.p.running.Lock()
	_, err := h.p.RunBatch(context.Background(), BatchOptions{})
	h.p.running.Unlock()
	assert.ErrorIs(t, err, ErrBatchRunning)
}

func TestRunBatch_StopsWhenPacingExceedsDeadline(t *testing.T) {
	h := newHarness(t, harnessOpts{})
	h.venue(t, "Riverside Squash Club", "p-a", &models.PlacesSnapshot{})
	h.venue(t, "Northfield Squash Club", "p-b", &models.PlacesSnapshot{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sum, err := h.p.RunBatch(ctx, BatchOptions{Options: defaultOpts, Delay: time.Hour})
	require.NoError(t, err)
	assert.True(t, sum.Interrupted)
	assert.Equal(t, 1, sum.Processed)
}

func TestShouldWriteCategory(t *testing.T) {
	base := models.CategorizationResult{PreviousCategoryID: models.CategoryDontKnow, CategoryID: models.IntPtr(models.CategoryGym), Confidence: models.ConfidenceMedium}

	assert.True(t, shouldWriteCategory(base, models.ConfidenceMedium))
	assert.False(t, shouldWriteCategory(base, models.ConfidenceHigh))

	same := base
	same.PreviousCategoryID = models.CategoryGym
	assert.False(t, shouldWriteCategory(same, models.ConfidenceLow))

	gap := base
	gap.CategoryID = models.IntPtr(models.CategoryDontKnow)
	assert.False(t, shouldWriteCategory(gap, models.ConfidenceLow))

	flagged := base
	flagged.VenueFlaggedForDeletion = true
	assert.False(t, shouldWriteCategory(flagged, models.ConfidenceLow))

	failed := base
	failed.Error = "boom"
	assert.False(t, shouldWriteCategory(failed, models.ConfidenceLow))
}

func TestBatchActor(t *testing.T) {
	assert.Equal(t, "cli/12345678", batchActor("cli", "12345678-aaaa"))
	assert.Equal(t, "batch/abcd", batchActor("", "abcd"))
}
