package models

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlacesSnapshot is the Google Places data fetched for one categorization
// attempt. It is never persisted; audit rows only carry summaries of it.
type PlacesSnapshot struct {
	ID               string   `json:"id"`
	PrimaryType      string   `json:"primary_type,omitempty"`
	Types            []string `json:"types,omitempty"`
	DisplayName      string   `json:"display_name"`
	FormattedAddress string   `json:"formatted_address,omitempty"`
	BusinessStatus   string   `json:"business_status,omitempty"`
	Location         *LatLng  `json:"location,omitempty"`
	EditorialSummary string   `json:"editorial_summary,omitempty"`
	Website          string   `json:"website,omitempty"`
}

// SecondaryTypes returns Types without the primary type.
func (p PlacesSnapshot) SecondaryTypes() []string {
	out := make([]string, 0, len(p.Types))
	for _, t := range p.Types {
		if t != p.PrimaryType {
			out = append(out, t)
		}
	}
	return out
}

// HasType reports whether t is the primary type or one of the types.
func (p PlacesSnapshot) HasType(t string) bool {
	if p.PrimaryType == t {
		return true
	}
	for _, x := range p.Types {
		if x == t {
			return true
		}
	}
	return false
}

// PermanentlyClosed reports Google's CLOSED_PERMANENTLY business status.
func (p PlacesSnapshot) PermanentlyClosed() bool {
	return p.BusinessStatus == "CLOSED_PERMANENTLY"
}
