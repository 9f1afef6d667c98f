// Package config loads ingest service settings.
package config

import (
	"fmt"
	"time"

	"github.com/crnapay/crnapay-stack/common/config"
	"github.com/crnapay/crnapay-stack/common/middleware"
)

// Config holds all ingest service configuration.
type Config struct {
	Server    config.ServerConfig   `mapstructure:"server"`
	NATS      config.NATSConfig     `mapstructure:"nats"`
	Redis     config.RedisConfig    `mapstructure:"redis"`
	Guard     config.GuardConfig    `mapstructure:"guard"`
	Ingestion IngestionConfig       `mapstructure:"ingestion"`
	CORS      middleware.CORSConfig `mapstructure:"cors"`
	Logging   config.LoggingConfig  `mapstructure:"logging"`
}

// IngestionConfig controls request handling.
type IngestionConfig struct {
	DefaultDataSource  string        `mapstructure:"default_data_source"`
	PreValidate        bool          `mapstructure:"pre_validate"`
	RateLimitEnabled   bool          `mapstructure:"rate_limit_enabled"`
	RateLimitRequests  int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow    time.Duration `mapstructure:"rate_limit_window"`
	StatsFlushInterval time.Duration `mapstructure:"stats_flush_interval"`
}

func defaults() config.Defaults {
	cors := middleware.DefaultCORSConfig()
	return config.Defaults{
		"server.port":                    8088,
		"ingestion.default_data_source":  "user_submission",
		"ingestion.pre_validate":         true,
		"ingestion.rate_limit_enabled":   true,
		"ingestion.rate_limit_requests":  30,
		"ingestion.rate_limit_window":    "1m",
		"ingestion.stats_flush_interval": "30s",
		"cors.allowed_origins":           cors.AllowedOrigins,
		"cors.allowed_methods":           cors.AllowedMethods,
		"cors.allowed_headers":           cors.AllowedHeaders,
		"cors.allow_credentials":         cors.AllowCredentials,
		"cors.max_age":                   cors.MaxAge,
	}
}

// Load reads ingest configuration from configPath (optional) and INGEST_*
// environment variables.
func Load(configPath string) (*Config, error) {
	var cfg Config
	if err := config.Load("ingest", "INGEST", configPath, defaults(), &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks limits that would otherwise fail at request time.
func (c *Config) Validate() error {
	if c.Ingestion.DefaultDataSource == "" {
		return fmt.Errorf("ingestion.default_data_source is required")
	}
	if c.Ingestion.RateLimitEnabled {
		if c.Ingestion.RateLimitRequests <= 0 {
			return fmt.Errorf("ingestion.rate_limit_requests must be positive, got %d", c.Ingestion.RateLimitRequests)
		}
		if c.Ingestion.RateLimitWindow <= 0 {
			return fmt.Errorf("ingestion.rate_limit_window must be positive")
		}
	}
	return nil
}
