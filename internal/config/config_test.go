package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmml-outcomes-server/internal/domain"
)

func resetEnv(t *testing.T) {
	t.Helper()
	viper.Reset()
	for _, key := range []string{
		"CMML_SERVER_PORT",
		"CMML_SOURCES_DETAILED_URL",
		"CMML_SOURCES_SUMMARIZED_URL",
		"CMML_SOURCES_RATE_LIMIT",
		"CMML_FEEDBACK_BACKEND",
		"CMML_LOGGING_LEVEL",
	} {
		os.Unsetenv(key)
	}
	t.Cleanup(func() { viper.Reset() })
}

func validConfig() *domain.Config {
	return &domain.Config{
		Server: domain.ServerConfig{Host: "0.0.0.0", Port: 8080},
		Sources: domain.SourcesConfig{
			DetailedURL: "https://data.example.org/detailed.json",
			RateLimit:   3,
		},
		Feedback: domain.FeedbackConfig{Backend: "sqlite", SQLitePath: "./data/flags.db"},
		Logging:  domain.LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestNewManagerDefaults(t *testing.T) {
	resetEnv(t)

	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 3, cfg.Sources.RateLimit)
	assert.True(t, cfg.Sources.RefreshOnBoot)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 256, cfg.Cache.AggregateCacheSize)
	assert.Equal(t, "sqlite", cfg.Feedback.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestNewManagerEnvironmentOverrides(t *testing.T) {
	resetEnv(t)

	os.Setenv("CMML_SERVER_PORT", "9090")
	os.Setenv("CMML_SOURCES_DETAILED_URL", "https://data.example.org/detailed.json")
	os.Setenv("CMML_LOGGING_LEVEL", "debug")
	defer func() {
		os.Unsetenv("CMML_SERVER_PORT")
		os.Unsetenv("CMML_SOURCES_DETAILED_URL")
		os.Unsetenv("CMML_LOGGING_LEVEL")
	}()

	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://data.example.org/detailed.json", cfg.Sources.DetailedURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NoError(t, m.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.Config)
		wantErr string
	}{
		{"valid", func(c *domain.Config) {}, ""},
		{"bad port", func(c *domain.Config) { c.Server.Port = 0 }, "invalid server port"},
		{"no source URLs", func(c *domain.Config) {
			c.Sources.DetailedURL = ""
			c.Sources.SummarizedURL = ""
		}, "at least one source document URL"},
		{"bad rate limit", func(c *domain.Config) { c.Sources.RateLimit = 0 }, "rate limit must be positive"},
		{"sqlite without path", func(c *domain.Config) { c.Feedback.SQLitePath = "" }, "sqlite_path is required"},
		{"postgres without URL", func(c *domain.Config) { c.Feedback.Backend = "postgres" }, "database_url is required"},
		{"unknown backend", func(c *domain.Config) { c.Feedback.Backend = "dynamodb" }, "unknown feedback backend"},
		{"no backend is allowed", func(c *domain.Config) { c.Feedback.Backend = "none" }, ""},
		{"cache without redis URL", func(c *domain.Config) {
			c.Cache.Enabled = true
			c.Cache.RedisURL = ""
		}, "redis URL is required"},
		{"bad log level", func(c *domain.Config) { c.Logging.Level = "verbose" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			m := &Manager{config: cfg}

			err := m.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetters(t *testing.T) {
	m := &Manager{config: validConfig()}

	assert.Equal(t, 8080, m.GetServerConfig().Port)
	assert.Equal(t, "https://data.example.org/detailed.json", m.GetSourcesConfig().DetailedURL)
}
