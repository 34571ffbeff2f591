package config

import (
	"fmt"
	"strconv"
	"strings"

	errs "squash-venue-enrichment/pkg/errors"
)

// FieldError is a single invalid configuration value.
type FieldError struct {
	Field   string
	Value   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("config validation error for field '%s' with value '%s': %s", e.Field, e.Value, e.Message)
}

// Validator collects field errors so all problems are reported at once.
type Validator struct {
	errors []FieldError
}

func (v *Validator) AddError(field, value, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Value: value, Message: message})
}

func (v *Validator) HasErrors() bool { return len(v.errors) > 0 }

func (v *Validator) Errors() []FieldError { return v.errors }

func (v *Validator) String() string {
	out := make([]string, 0, len(v.errors))
	for _, e := range v.errors {
		out = append(out, e.Error())
	}
	return strings.Join(out, "\n")
}

// Scope says which collaborators a command actually needs.
type Scope struct {
	Database bool
	Places   bool
	OpenAI   bool
	Server   bool
}

// Validate checks the fields required by scope.
func (c *Config) Validate(scope Scope) error {
	v := &Validator{}

	if scope.Database {
		switch c.DatabaseDriver {
		case "mysql":
			if c.DatabaseURL == "" {
				v.AddError("DATABASE_URL", c.DatabaseURL, "database URL is required")
			} else if !strings.Contains(c.DatabaseURL, "/") {
				v.AddError("DATABASE_URL", c.DatabaseURL, "invalid MySQL DSN (expected user:pass@tcp(host)/db)")
			}
		case "sqlite":
			if c.DatabaseURL == "" {
				v.AddError("DATABASE_URL", c.DatabaseURL, "sqlite file path is required")
			}
		default:
			v.AddError("DATABASE_DRIVER", c.DatabaseDriver, "must be mysql or sqlite")
		}
		if c.DBReadTimeout <= 0 {
			v.AddError("DB_READ_TIMEOUT", c.DBReadTimeout.String(), "must be positive")
		}
		if c.DBWriteTimeout <= 0 {
			v.AddError("DB_WRITE_TIMEOUT", c.DBWriteTimeout.String(), "must be positive")
		}
	}

	if scope.Places && c.GoogleMapsAPIKey == "" {
		v.AddError("GOOGLE_MAPS_API_KEY", "", "Google Maps API key is required")
	}

	if scope.OpenAI {
		if c.OpenAIAPIKey == "" {
			v.AddError("OPENAI_API_KEY", "", "OpenAI API key is required")
		}
		if c.OpenAITimeout <= 0 {
			v.AddError("OPENAI_REQUEST_TIMEOUT_SECONDS", c.OpenAITimeout.String(), "must be positive")
		}
	}

	switch c.MinConfidence {
	case "HIGH", "MEDIUM", "LOW":
	default:
		v.AddError("MIN_CONFIDENCE", c.MinConfidence, "must be HIGH, MEDIUM or LOW")
	}

	if c.BatchDelay < 0 {
		v.AddError("BATCH_DELAY", c.BatchDelay.String(), "must not be negative")
	}
	if c.BatchRPS < 0 {
		v.AddError("BATCH_RPS", strconv.FormatFloat(c.BatchRPS, 'f', -1, 64), "must not be negative")
	}

	if scope.Server {
		if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
			v.AddError("PORT", c.Port, "invalid port number (must be 1-65535)")
		}
		if !strings.HasPrefix(c.MetricsPath, "/") {
			v.AddError("METRICS_PATH", c.MetricsPath, "must start with /")
		}
	}

	if v.HasErrors() {
		return errs.NewValidation("config.Validate", fmt.Sprintf("configuration validation failed:\n%s", v.String()), nil)
	}
	return nil
}
