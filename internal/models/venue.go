package models

import (
	"strings"
	"time"
)

// Venue lifecycle states.
const (
	StatusApproved           = "approved"
	StatusPending            = "pending"
	StatusFlaggedForDeletion = "flagged_for_deletion"
)

// Venue is a squash venue row.
type Venue struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Address1 string `json:"address1,omitempty"`
	Address2 string `json:"address2,omitempty"`
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country,omitempty"`

	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`

	GPlaceID   string `json:"g_place_id,omitempty"`
	Status     string `json:"status"`
	CategoryID int    `json:"category_id"`

	NoOfCourts           *int       `json:"no_of_courts,omitempty"`
	GlassCourts          *int       `json:"no_of_glass_courts,omitempty"`
	NonGlassCourts       *int       `json:"no_of_non_glass_courts,omitempty"`
	OutdoorCourts        *int       `json:"no_of_outdoor_courts,omitempty"`
	SinglesCourts        *int       `json:"no_of_singles_courts,omitempty"`
	DoublesCourts        *int       `json:"no_of_doubles_courts,omitempty"`
	CourtCountSearchedAt *time.Time `json:"court_count_searched_at,omitempty"`

	Website     string `json:"website,omitempty"`
	FacebookURL string `json:"facebook_url,omitempty"`

	DeletionReason        string     `json:"deletion_reason,omitempty"`
	DeletionReasonDetails string     `json:"deletion_reason_details,omitempty"`
	DeletionFlaggedBy     string     `json:"deletion_flagged_by,omitempty"`
	DeletionFlaggedAt     *time.Time `json:"deletion_flagged_at,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// FullAddress joins the non-empty postal address parts.
func (v Venue) FullAddress() string {
	parts := make([]string, 0, 6)
	for _, p := range []string{v.Address1, v.Address2, v.City, v.Region, v.Postcode, v.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// HasCourtCount reports whether a positive court count is stored.
func (v Venue) HasCourtCount() bool {
	return v.NoOfCourts != nil && *v.NoOfCourts > 0
}

// CourtCountSearchedWithin reports whether a court-count search ran in the
// window before now.
func (v Venue) CourtCountSearchedWithin(window time.Duration, now time.Time) bool {
	return v.CourtCountSearchedAt != nil && now.Sub(*v.CourtCountSearchedAt) < window
}

// HasLocation reports whether usable coordinates are stored.
func (v Venue) HasLocation() bool {
	return v.Lat != nil && v.Lng != nil && !(*v.Lat == 0 && *v.Lng == 0)
}

// NearbyVenue is a venue found close to another one, with its distance.
type NearbyVenue struct {
	Venue
	DistanceMeters float64 `json:"distance_m"`
}
