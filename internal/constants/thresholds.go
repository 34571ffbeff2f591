package constants

// Centralized threshold values used across the pipeline.
// These are not configuration knobs; use pkg/config for env-driven settings.

const (
	// NearbyVenueRadiusMeters bounds the "nearby leisure centre or gym"
	// co-location check.
	NearbyVenueRadiusMeters = 100.0

	// PlaceSearchRadiusMeters biases Text Search around the stored coordinates
	// when repairing an expired Place ID.
	PlaceSearchRadiusMeters = 5000

	// PluralCourtsDefault is the court count assumed when a source says
	// "squash courts" without a number. Tunable; 2 is the long-standing value.
	PluralCourtsDefault = 2

	// SingularCourtDefault is assumed when a source mentions "a squash court".
	SingularCourtDefault = 1

	// MaxPlausibleCourts rejects parse results that are clearly not court counts
	// (years, phone fragments, street numbers).
	MaxPlausibleCourts = 60

	// DetectorSampleVenues caps the sample venues kept per unmapped type.
	DetectorSampleVenues = 5

	// Circuit breaker rate thresholds
	CircuitFailureRate       = 0.6
	OpenAICircuitFailureRate = 0.5
	CircuitMaxConsecFailures = 5
)
