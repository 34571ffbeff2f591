package processor

import (
	"context"

	"squash-venue-enrichment/internal/scraper"
	"squash-venue-enrichment/internal/updater"
	"squash-venue-enrichment/pkg/database"
	"squash-venue-enrichment/pkg/logging"
)

// Place ID refresh sources, reported on the result.
const (
	RefreshSourceFree       = "Google (free)"
	RefreshSourceTextSearch = "Google Text Search"
)

// repairPlaceID runs after details failed with a permanent error. It tries
// the free id refresh, then a Text Search on name and address, and flags the
// venue when neither yields a usable id.
func (o *Orchestrator) repairPlaceID(ctx context.Context, r *run) Outcome {
	old := r.venue.GPlaceID

	newID, err := o.d.Places.RefreshPlaceID(ctx, old)
	switch {
	case err != nil && !scraper.IsPermanent(err):
		return r.fail(PlaceIDRepairFailed("refresh", err))
	case err == nil && newID != "" && newID != old:
		if out, ok := o.adopt(ctx, r, newID, RefreshSourceFree); ok {
			return out
		}
	}

	newID, err = o.d.Places.FindPlaceID(ctx, r.venue)
	if err != nil {
		return r.fail(PlaceIDRepairFailed("text search", err))
	}
	if newID != "" && newID != old {
		if out, ok := o.adopt(ctx, r, newID, RefreshSourceTextSearch); ok {
			return out
		}
	}

	o.log.Info("place id could not be repaired, flagging venue",
		logging.Int64("venue_id", r.venue.ID), logging.String("place_id", old))
	o.flag(ctx, r, updater.ReasonPlaceIDExpired, "Place ID "+old+" no longer resolves and no replacement was found")
	return r.fail(PlaceIDExpired)
}

// adopt fetches details for a candidate id and, when no other venue owns it,
// persists it. ok is false when the candidate is unusable and the next repair
// step should run.
func (o *Orchestrator) adopt(ctx context.Context, r *run, newID, source string) (Outcome, bool) {
	snap, err := o.d.Places.GetDetails(ctx, newID)
	if err != nil {
		if scraper.IsPermanent(err) {
			o.log.Warn("candidate place id did not resolve",
				logging.Int64("venue_id", r.venue.ID), logging.String("candidate", newID), logging.String("source", source))
			return Next, false
		}
		return r.fail(PlacesUnavailable(err)), true
	}

	r.result.NewPlaceID = newID
	r.result.PlaceIDRefreshSource = source
	if o.persistPlaceID(ctx, r, newID) {
		r.result.PlaceIDRefreshed = true
		r.venue.GPlaceID = newID
	}
	o.accept(r, snap)
	return Next, true
}

// persistPlaceID writes newID unless another venue already owns it. A
// collision leaves the stored id untouched; this run still uses the new
// details.
func (o *Orchestrator) persistPlaceID(ctx context.Context, r *run, newID string) bool {
	owner, err := o.d.Venues.FindVenueByPlaceIDCtx(ctx, newID, r.venue.ID)
	if err != nil {
		o.log.Warn("place id collision check failed", logging.Int64("venue_id", r.venue.ID), logging.Error(err))
		r.note("refreshed Place ID not saved")
		return false
	}
	if owner != nil {
		o.collision(r, newID, owner.ID)
		return false
	}
	if r.opts.DryRun {
		return true
	}
	if err := o.d.Venues.UpdatePlaceIDCtx(ctx, r.venue.ID, newID); err != nil {
		if database.IsDuplicateKey(err) {
			o.collision(r, newID, 0)
			return false
		}
		o.log.Warn("place id update failed", logging.Int64("venue_id", r.venue.ID), logging.Error(err))
		r.note("refreshed Place ID not saved")
		return false
	}
	o.log.Info("place id refreshed",
		logging.Int64("venue_id", r.venue.ID),
		logging.String("old_place_id", r.venue.GPlaceID),
		logging.String("new_place_id", newID))
	return true
}

func (o *Orchestrator) collision(r *run, newID string, ownerID int64) {
	o.log.Warn("refreshed place id already belongs to another venue",
		logging.Int64("venue_id", r.venue.ID),
		logging.Int64("owner_venue_id", ownerID),
		logging.String("place_id", newID))
	r.note("refreshed Place ID %s already used by another venue, not saved", newID)
}
