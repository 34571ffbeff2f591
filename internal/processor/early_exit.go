package processor

import (
	"fmt"

	"squash-venue-enrichment/internal/models"
)

// EarlyExitReason is a structured reason for ending a venue's run before
// classification.
type EarlyExitReason struct {
	Code        string
	Description string
}

// String returns the description for logging/display
func (r EarlyExitReason) String() string {
	return r.Description
}

// Predefined early exit reasons
var (
	NoPlaceID = EarlyExitReason{
		Code:        "no_place_id",
		Description: "Venue has no Google Place ID",
	}

	FlaggedVenue = EarlyExitReason{
		Code:        "flagged_for_deletion",
		Description: "Venue is already flagged for deletion",
	}

	DeletedVenue = EarlyExitReason{
		Code:        "deleted",
		Description: "Venue is deleted",
	}

	PlaceIDExpired = EarlyExitReason{
		Code:        "place_id_expired",
		Description: "Expired Place ID, venue not found",
	}

	PlacesUnavailable = func(err error) EarlyExitReason {
		return EarlyExitReason{
			Code:        "places_unavailable",
			Description: fmt.Sprintf("Google Places details unavailable: %v", err),
		}
	}

	PlaceIDRepairFailed = func(step string, err error) EarlyExitReason {
		return EarlyExitReason{
			Code:        "place_id_repair_failed",
			Description: fmt.Sprintf("Place ID repair failed during %s: %v", step, err),
		}
	}
)

// IsGuardExit reports whether code ended the run before any lookup, in which
// case the venue must be left untouched.
func IsGuardExit(code string) bool {
	switch code {
	case NoPlaceID.Code, FlaggedVenue.Code, DeletedVenue.Code:
		return true
	}
	return false
}

// checkPlaceID verifies the venue can be looked up at all.
func checkPlaceID(venue *models.Venue) (skip bool, reason EarlyExitReason) {
	if venue.GPlaceID == "" {
		return true, NoPlaceID
	}
	return false, EarlyExitReason{}
}

// checkVenueState keeps flagged and deleted venues out of the pipeline.
func checkVenueState(venue *models.Venue) (skip bool, reason EarlyExitReason) {
	if venue.DeletedAt != nil {
		return true, DeletedVenue
	}
	if venue.Status == models.StatusFlaggedForDeletion {
		return true, FlaggedVenue
	}
	return false, EarlyExitReason{}
}
