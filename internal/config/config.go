package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/cmml-outcomes-server/internal/domain"
)

// Manager loads and validates application configuration using Viper
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/cmml-outcomes-server/")

	viper.SetEnvPrefix("CMML")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars cover everything
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.static_dir", "")

	// Source document defaults
	viper.SetDefault("sources.detailed_url", "")
	viper.SetDefault("sources.summarized_url", "")
	viper.SetDefault("sources.timeout", "30s")
	viper.SetDefault("sources.rate_limit", 3)
	viper.SetDefault("sources.refresh_on_boot", true)

	// Cache defaults
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "1h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")
	viper.SetDefault("cache.aggregate_cache_size", 256)

	// Feedback store defaults
	viper.SetDefault("feedback.backend", "sqlite")
	viper.SetDefault("feedback.sqlite_path", "./data/record_flags.db")
	viper.SetDefault("feedback.database_url", "")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetSourcesConfig returns source endpoint configuration
func (m *Manager) GetSourcesConfig() *domain.SourcesConfig {
	return &m.config.Sources
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Sources.DetailedURL == "" && config.Sources.SummarizedURL == "" {
		return fmt.Errorf("at least one source document URL is required")
	}

	if config.Sources.RateLimit <= 0 {
		return fmt.Errorf("sources rate limit must be positive: %d", config.Sources.RateLimit)
	}

	switch strings.ToLower(config.Feedback.Backend) {
	case "sqlite":
		if config.Feedback.SQLitePath == "" {
			return fmt.Errorf("feedback sqlite_path is required for the sqlite backend")
		}
	case "postgres":
		if config.Feedback.DatabaseURL == "" {
			return fmt.Errorf("feedback database_url is required for the postgres backend")
		}
	case "", "none":
		// Flag endpoints are disabled without a backend
	default:
		return fmt.Errorf("unknown feedback backend: %s", config.Feedback.Backend)
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("redis URL is required when cache is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
