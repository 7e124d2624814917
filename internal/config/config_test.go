package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_WithValidConfig(t *testing.T) {
	setEnv(t, "API_KEY", "sentinel-secret")
	setEnv(t, "PORT", "9090")
	setEnv(t, "DEPLOYMENT_PROFILE", "Partner")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, ProfilePartner, cfg.Profile)
	assert.Equal(t, DefaultRateLimitRPM, cfg.RateLimitRPM)
	assert.Equal(t, DefaultRegion, cfg.DefaultRegion)
	assert.True(t, cfg.SeedDemoData)
	assert.True(t, cfg.ServesPartner())
	assert.False(t, cfg.ServesFiles())
}

func TestLoad_MissingAPIKey(t *testing.T) {
	setEnv(t, "API_KEY", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY is required")
}

func TestLoad_UnknownProfile(t *testing.T) {
	setEnv(t, "API_KEY", "sentinel-secret")
	setEnv(t, "DEPLOYMENT_PROFILE", "gateway")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "DEPLOYMENT_PROFILE")
}

func TestLoad_BadNumbersFallBack(t *testing.T) {
	setEnv(t, "API_KEY", "sentinel-secret")
	setEnv(t, "RATE_LIMIT_RPM", "lots")
	setEnv(t, "SEED_DEMO_DATA", "nope")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultRateLimitRPM, cfg.RateLimitRPM)
	assert.True(t, cfg.SeedDemoData)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{APIKey: "sentinel-secret", Profile: ProfileFull, LogFormat: "text", RateLimitRPM: 60}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"short key", func(c *Config) { c.APIKey = "short" }, "at least"},
		{"empty profile", func(c *Config) { c.Profile = "" }, "DEPLOYMENT_PROFILE"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"zero rate", func(c *Config) { c.RateLimitRPM = 0 }, "RATE_LIMIT_RPM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Profiles(t *testing.T) {
	full := Config{Profile: ProfileFull}
	assert.True(t, full.ServesPartner())
	assert.True(t, full.ServesFiles())

	files := Config{Profile: ProfileFiles}
	assert.False(t, files.ServesPartner())
	assert.True(t, files.ServesFiles())
}

func TestConfig_Environment(t *testing.T) {
	assert.True(t, (&Config{Env: "development"}).IsDevelopment())
	assert.True(t, (&Config{Env: "production"}).IsProduction())
	assert.False(t, (&Config{Env: "staging"}).IsProduction())
}

func TestLoad_CORSAndMigrate(t *testing.T) {
	setEnv(t, "API_KEY", "sentinel-secret")
	setEnv(t, "CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	setEnv(t, "AUTO_MIGRATE", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.False(t, cfg.AutoMigrate)
}
