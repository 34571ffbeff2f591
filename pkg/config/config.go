package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Database
	DatabaseDriver    string // "mysql" or "sqlite"
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime int // minutes
	DBReadTimeout     time.Duration
	DBWriteTimeout    time.Duration

	// Google Places
	GoogleMapsAPIKey  string
	GoogleMapsBaseURL string // empty = maps SDK default

	// OpenAI
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string // categorization
	OpenAISearchModel string // web-search court counts
	OpenAITimeout     time.Duration

	// Optional gateways; empty key disables the capability
	TranslateAPIKey     string
	FacebookAccessToken string

	// DirectoryDomain is excluded from court-count web searches so the
	// directory never cites itself as evidence.
	DirectoryDomain string

	// Batch behaviour
	BatchDelay    time.Duration
	BatchRPS      float64
	MinConfidence string
	Actor         string

	// Ops server and logging
	Port        string
	MetricsPath string
	LogLevel    string
	LogFormat   string
	Env         string
	EnablePprof bool

	// PromptDir holds optional template overrides; empty = embedded only.
	PromptDir string
}

func Load() *Config {
	dbMaxOpenConns, _ := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "10"))
	dbMaxIdleConns, _ := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))
	dbConnMaxLifetime, _ := strconv.Atoi(getEnv("DB_CONN_MAX_LIFETIME_MINUTES", "10"))

	dbReadTO, _ := time.ParseDuration(getEnv("DB_READ_TIMEOUT", "8s"))
	dbWriteTO, _ := time.ParseDuration(getEnv("DB_WRITE_TIMEOUT", "6s"))

	openAIReqTimeoutSec, _ := strconv.Atoi(getEnv("OPENAI_REQUEST_TIMEOUT_SECONDS", "60"))

	// The upstream APIs are rate limited; one venue per second by default.
	batchDelay, _ := time.ParseDuration(getEnv("BATCH_DELAY", "1s"))
	batchRPS, _ := strconv.ParseFloat(getEnv("BATCH_RPS", "0"), 64)

	return &Config{
		DatabaseDriver:    strings.ToLower(getEnv("DATABASE_DRIVER", "mysql")),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:    dbMaxOpenConns,
		DBMaxIdleConns:    dbMaxIdleConns,
		DBConnMaxLifetime: dbConnMaxLifetime,
		DBReadTimeout:     dbReadTO,
		DBWriteTimeout:    dbWriteTO,

		GoogleMapsAPIKey:  getEnv("GOOGLE_MAPS_API_KEY", ""),
		GoogleMapsBaseURL: getEnv("GOOGLE_MAPS_BASE_URL", ""),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAISearchModel: getEnv("OPENAI_SEARCH_MODEL", "gpt-4o-search-preview"),
		OpenAITimeout:     time.Duration(openAIReqTimeoutSec) * time.Second,

		TranslateAPIKey:     getEnv("GOOGLE_TRANSLATE_API_KEY", ""),
		FacebookAccessToken: getEnv("FACEBOOK_ACCESS_TOKEN", ""),
		DirectoryDomain:     getEnv("DIRECTORY_DOMAIN", "squash.players.app"),

		BatchDelay:    batchDelay,
		BatchRPS:      batchRPS,
		MinConfidence: strings.ToUpper(getEnv("MIN_CONFIDENCE", "MEDIUM")),
		Actor:         getEnv("ACTOR", "venue-categorizer"),

		Port:        getEnv("PORT", "8080"),
		MetricsPath: getEnv("METRICS_PATH", "/metrics"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		Env:         strings.ToLower(getEnv("ENV", "development")),
		EnablePprof: getEnv("ENABLE_PPROF", "false") == "true",

		PromptDir: getEnv("PROMPT_DIR", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
