// Package config handles application configuration.
//
// Go Pattern: Configuration via environment variables with sensible defaults.
// In Go, we typically use structs to hold configuration, and a function to
// load values from environment variables. A local .env file is honoured for
// development, but real environment variables always win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/Shimizu-Technology/post-insights-api/internal/apperrors"
)

// Service modes. "demo" swaps the real implementation for a no-network one.
const (
	ModeReal = "real"
	ModeDemo = "demo"
)

// DefaultMaxUploadBytes is the largest file the workflow accepts (10 MiB).
const DefaultMaxUploadBytes = 10 << 20

const defaultSessionSecret = "dev-session-secret-change-in-production"

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    string
	GinMode string // "debug", "release", or "test"

	// Generative API (Gemini generateContent)
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	GeminiTimeout time.Duration

	// Service selection: "real" or "demo"
	AnalysisMode   string
	ExtractionMode string

	// OCR
	TesseractPath string
	TesseractLang string

	// Upload limits
	MaxUploadBytes int64

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration
	PreviewDir    string // empty = a fresh temp dir

	// Optional history store
	DatabaseURL    string
	MigrationsPath string

	// Worker settings
	WorkerCount  int
	JobQueueSize int

	// Rate limiting (requests per hour per client)
	DefaultRateLimit int

	// CORS
	AllowedOrigins []string

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from the environment.
//
// A missing GEMINI_API_KEY while ANALYSIS_MODE is "real" is a configuration
// error: we refuse to start rather than fail on the first user request.
func Load() (*Config, error) {
	// .env is optional; ignore "file not found".
	_ = godotenv.Load()

	cfg := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash-preview-05-20"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTimeout: getEnvDuration("GEMINI_TIMEOUT", 60*time.Second),

		AnalysisMode:   getEnv("ANALYSIS_MODE", ModeReal),
		ExtractionMode: getEnv("EXTRACTION_MODE", ModeReal),

		TesseractPath: getEnv("TESSERACT_PATH", "tesseract"),
		TesseractLang: getEnv("TESSERACT_LANG", "eng"),

		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes)),

		SessionSecret: getEnv("SESSION_SECRET", defaultSessionSecret),
		SessionTTL:    getEnvDuration("SESSION_TTL", time.Hour),
		PreviewDir:    getEnv("PREVIEW_DIR", ""),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),

		WorkerCount:  getEnvInt("WORKER_COUNT", 4),
		JobQueueSize: getEnvInt("JOB_QUEUE_SIZE", 64),

		DefaultRateLimit: getEnvInt("DEFAULT_RATE_LIMIT", 100),

		AllowedOrigins: []string{
			getEnv("CORS_ORIGIN", "http://localhost:5173"), // Vite dev server default
		},

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values we cannot run with.
func (c *Config) Validate() error {
	if !validMode(c.AnalysisMode) {
		return apperrors.Configuration(fmt.Sprintf("ANALYSIS_MODE must be %q or %q, got %q", ModeReal, ModeDemo, c.AnalysisMode))
	}
	if !validMode(c.ExtractionMode) {
		return apperrors.Configuration(fmt.Sprintf("EXTRACTION_MODE must be %q or %q, got %q", ModeReal, ModeDemo, c.ExtractionMode))
	}

	if c.AnalysisMode == ModeReal && c.GeminiAPIKey == "" {
		return apperrors.Configuration("GEMINI_API_KEY is not set; set it or run with ANALYSIS_MODE=demo")
	}

	if c.MaxUploadBytes <= 0 {
		return apperrors.Configuration("MAX_UPLOAD_BYTES must be positive")
	}
	if c.WorkerCount <= 0 || c.JobQueueSize <= 0 {
		return apperrors.Configuration("WORKER_COUNT and JOB_QUEUE_SIZE must be positive")
	}

	// Session tokens are signed with this secret; refuse the default in production.
	if c.GinMode == "release" && c.SessionSecret == defaultSessionSecret {
		return apperrors.Configuration("SESSION_SECRET must be set in production; refusing to start with default secret")
	}

	return nil
}

// HistoryEnabled reports whether a database was configured.
func (c *Config) HistoryEnabled() bool {
	return c.DatabaseURL != ""
}

func validMode(m string) bool {
	return m == ModeReal || m == ModeDemo
}

// getEnv reads an environment variable with a fallback default.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvInt reads an integer environment variable with a fallback.
func getEnvInt(key string, fallback int) int {
	str := getEnv(key, "")
	if str == "" {
		return fallback
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return fallback
	}
	return val
}

// getEnvDuration reads a duration like "30s" or "1h".
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	str := getEnv(key, "")
	if str == "" {
		return fallback
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		return fallback
	}
	return d
}
