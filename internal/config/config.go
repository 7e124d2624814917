// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Profile selects which route families a process mounts.
type Profile string

const (
	// ProfilePartner serves honeytokens, watermarks, policies and partner data requests.
	ProfilePartner Profile = "partner"
	// ProfileFiles serves the file sharing protocol, alerts and notifications.
	ProfileFiles Profile = "files"
	// ProfileFull serves both.
	ProfileFull Profile = "full"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"
	Profile   Profile

	// Database
	DatabaseURL string // PostgreSQL audit mirror (optional, audit stays in memory if not set)
	AutoMigrate bool   // Apply embedded migrations at startup when DatabaseURL is set

	// Tracing
	OTLPEndpoint string // OTLP gRPC collector (optional, tracing disabled if not set)

	// CORS
	AllowedOrigins []string

	// Security
	APIKey       string // Shared secret every client presents in X-API-Key
	AdminSecret  string // Optional separate secret for /admin routes
	RateLimitRPM int

	// Domain defaults
	DefaultRegion string // geo restriction applied when a policy names none
	SeedDemoData  bool
}

// Defaults
const (
	DefaultPort          = "5000"
	DefaultEnv           = "development"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultProfile       = ProfileFull
	DefaultRateLimitRPM  = 120
	DefaultRegion        = "IN"
	minAPIKeyLength      = 8
	maxRateLimitRPM      = 100000
	defaultSeedDemoValue = true
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", DefaultPort),
		Env:            getEnv("ENV", DefaultEnv),
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:      getEnv("LOG_FORMAT", DefaultLogFormat),
		Profile:        Profile(strings.ToLower(getEnv("DEPLOYMENT_PROFILE", string(DefaultProfile)))),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		AutoMigrate:    getEnvBool("AUTO_MIGRATE", true),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		APIKey:         os.Getenv("API_KEY"), // Required, no default
		AdminSecret:    os.Getenv("ADMIN_SECRET"),
		AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPM:   getEnvInt("RATE_LIMIT_RPM", DefaultRateLimitRPM),
		DefaultRegion:  strings.ToUpper(getEnv("DEFAULT_REGION", DefaultRegion)),
		SeedDemoData:   getEnvBool("SEED_DEMO_DATA", defaultSeedDemoValue),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if len(c.APIKey) < minAPIKeyLength {
		return fmt.Errorf("API_KEY must be at least %d characters", minAPIKeyLength)
	}

	switch c.Profile {
	case ProfilePartner, ProfileFiles, ProfileFull:
	default:
		return fmt.Errorf("DEPLOYMENT_PROFILE must be one of partner, files, full (got %q)", c.Profile)
	}

	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json (got %q)", c.LogFormat)
	}

	if c.RateLimitRPM <= 0 || c.RateLimitRPM > maxRateLimitRPM {
		return fmt.Errorf("RATE_LIMIT_RPM must be between 1 and %d", maxRateLimitRPM)
	}

	return nil
}

// ServesPartner reports whether the partner-facing routes are mounted.
func (c *Config) ServesPartner() bool {
	return c.Profile == ProfilePartner || c.Profile == ProfileFull
}

// ServesFiles reports whether the file sharing routes are mounted.
func (c *Config) ServesFiles() bool {
	return c.Profile == ProfileFiles || c.Profile == ProfileFull
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
