package constants

import "time"

// Centralized default values for timeouts, intervals, and related settings.
// Environment/config may override where supported.

const (
	// Database
	DBReadTimeoutDefault  = 8 * time.Second
	DBWriteTimeoutDefault = 6 * time.Second

	// Google Places
	GoogleMapsOperationTimeout  = 10 * time.Second
	GoogleMapsOpenFor           = 30 * time.Second
	GoogleMapsSlowCallThreshold = 1500 * time.Millisecond

	// OpenAI. Web-search completions are markedly slower than plain chat.
	OpenAIDefaultAPITimeout     = 60 * time.Second
	OpenAIOperationTimeout      = 50 * time.Second
	OpenAISearchTimeout         = 90 * time.Second
	OpenAIOpenFor               = 45 * time.Second
	OpenAISlowCallThreshold     = 20 * time.Second
	OpenAICategorizeMaxTokens   = 300
	OpenAICourtCountMaxTokens   = 700
	OpenAICategorizeTemperature = 0.1

	// Translation / social gateways
	TranslateTimeout = 10 * time.Second
	FacebookTimeout  = 10 * time.Second

	// Batch driver
	BatchDelayDefault = 1 * time.Second
	BatchLimitDefault = 50
	// A court-count search that found nothing usable is not repeated sooner.
	CourtCountRecheckAfter = 30 * 24 * time.Hour

	// Ops server
	GracefulShutdownTimeoutDefault = 10 * time.Second
	HealthTimeoutDefault           = 5 * time.Second
)
