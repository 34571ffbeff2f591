package models

import "strings"

// Confidence is the three-level certainty label attached to every decision.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// ParseConfidence normalizes free text ("high", " Medium ") to a Confidence.
// Anything unrecognised is LOW.
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.ToUpper(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Valid reports whether c is one of the three labels.
func (c Confidence) Valid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow
}

func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

// AtLeast reports whether c meets the minimum floor.
func (c Confidence) AtLeast(floor Confidence) bool { return c.rank() >= floor.rank() }

// Downgrade moves one step down: HIGH->MEDIUM, anything else->LOW.
func (c Confidence) Downgrade() Confidence {
	if c == ConfidenceHigh {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// Source tags where a category recommendation came from.
type Source string

const (
	SourceGoogleMapping Source = "GOOGLE_MAPPING"
	SourceOpenAI        Source = "OPENAI"
	SourceManual        Source = "MANUAL"
)

// IntPtr returns a pointer to a copy of v.
func IntPtr(v int) *int { return &v }

// MappingResult is the Type Mapper output.
type MappingResult struct {
	CategoryID  *int       `json:"category_id"`
	Confidence  Confidence `json:"confidence"`
	Reasoning   string     `json:"reasoning"`
	MatchedType string     `json:"matched_type,omitempty"`
}

// Found reports whether a category was recommended.
func (m MappingResult) Found() bool { return m.CategoryID != nil }

// ContextResult is the Context Analyzer's sub-venue verdict.
type ContextResult struct {
	IsSubVenue bool `json:"is_sub_venue"`
	// ParentFacilityType is "leisure_centre", "gym", "sports_complex", ... or
	// empty when no parent facility was identified.
	ParentFacilityType string     `json:"parent_facility_type,omitempty"`
	Confidence         Confidence `json:"confidence"`
	Reasoning          string     `json:"reasoning"`
	Signal             string     `json:"signal,omitempty"` // summary|co_located|nearby|name_pattern
}

// Adjustment is the outcome of applying a ContextResult to a mapping.
type Adjustment struct {
	CategoryID *int       `json:"category_id"`
	Confidence Confidence `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
	Adjusted   bool       `json:"adjusted"`
}

// AICategoryResult is the LLM categorizer output. It is always well formed:
// failures come back as a nil category at LOW with the error in Reasoning.
type AICategoryResult struct {
	CategoryID         *int       `json:"category_id"`
	Confidence         Confidence `json:"confidence"`
	Reasoning          string     `json:"reasoning"`
	SuggestedCategory  string     `json:"suggested_category,omitempty"`
	SuggestNewCategory bool       `json:"suggest_new_category"`
	Failed             bool       `json:"failed,omitempty"`
}

// CourtCountResult is the court-count analyzer output.
type CourtCountResult struct {
	CourtCount    *int       `json:"court_count"`
	Confidence    Confidence `json:"confidence"`
	Reasoning     string     `json:"reasoning"`
	SourceURL     string     `json:"source_url,omitempty"`
	SourceType    string     `json:"source_type,omitempty"`
	EvidenceFound bool       `json:"evidence_found"`
}

// Applicable reports whether the count may be written to the venue.
func (r CourtCountResult) Applicable() bool {
	return r.CourtCount != nil && *r.CourtCount > 0 && r.Confidence.AtLeast(ConfidenceMedium)
}

// CategorizationResult is everything one pipeline run learned and did for a
// venue. It is returned to the caller and never persisted as-is.
type CategorizationResult struct {
	VenueID            int64  `json:"venue_id"`
	VenueName          string `json:"venue_name"`
	PreviousCategoryID int    `json:"previous_category_id"`

	CategoryID   *int       `json:"category_id"`
	CategoryName string     `json:"category_name,omitempty"`
	Confidence   Confidence `json:"confidence"`
	Reasoning    string     `json:"reasoning"`
	Source       Source     `json:"source,omitempty"`
	MatchedType  string     `json:"matched_type,omitempty"`

	// CategoryUpdated is set by the caller once the recommendation passed its
	// confidence gate and was written.
	CategoryUpdated bool `json:"category_updated"`

	GooglePrimaryType string   `json:"google_primary_type,omitempty"`
	GoogleTypes       []string `json:"google_types,omitempty"`

	PlaceIDRefreshed     bool   `json:"place_id_refreshed"`
	PlaceIDRefreshSource string `json:"place_id_refresh_source,omitempty"`
	NewPlaceID           string `json:"new_place_id,omitempty"`

	NameUpdated bool   `json:"name_updated"`
	OldName     string `json:"old_name,omitempty"`
	NewName     string `json:"new_name,omitempty"`

	ContextAdjusted bool `json:"context_adjusted"`
	SubVenue        bool `json:"sub_venue"`

	AISuggestedCategory string `json:"ai_suggested_category,omitempty"`
	AISuggestNew        bool   `json:"ai_suggest_new_category"`

	CourtCountSearched bool              `json:"court_count_searched"`
	CourtCount         *CourtCountResult `json:"court_count,omitempty"`
	CourtCountUpdated  bool              `json:"court_count_updated"`

	VenueFlaggedForDeletion bool   `json:"venue_flagged_for_deletion"`
	DeletionReason          string `json:"deletion_reason,omitempty"`

	Error string `json:"error,omitempty"`
	// ExitCode names the early exit that ended the run, if any.
	ExitCode string `json:"exit_code,omitempty"`
}

// Failed reports whether the run ended with an error.
func (r CategorizationResult) Failed() bool { return r.Error != "" }
