package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "user_submission", cfg.Ingestion.DefaultDataSource)
	assert.True(t, cfg.Ingestion.PreValidate)
	assert.Equal(t, 30, cfg.Ingestion.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.Ingestion.RateLimitWindow)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "budget:pause:", cfg.Guard.KeyPrefix)
}

func TestLoad_WithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9088
ingestion:
  default_data_source: partner_feed
  rate_limit_requests: 5
cors:
  allowed_origins:
    - https://crnapay.example.com
    - "*.crnapay.dev"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9088, cfg.Server.Port)
	assert.Equal(t, "partner_feed", cfg.Ingestion.DefaultDataSource)
	assert.Equal(t, 5, cfg.Ingestion.RateLimitRequests)
	assert.Equal(t, []string{"https://crnapay.example.com", "*.crnapay.dev"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INGEST_SERVER_PORT", "7000")
	t.Setenv("INGEST_REDIS_ENABLED", "true")
	t.Setenv("INGEST_NATS_URL", "nats://queue:4222")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "nats://queue:4222", cfg.NATS.URL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no data source", mutate: func(c *Config) { c.Ingestion.DefaultDataSource = "" }, wantErr: "default_data_source"},
		{name: "zero limit", mutate: func(c *Config) { c.Ingestion.RateLimitRequests = 0 }, wantErr: "rate_limit_requests"},
		{name: "zero window", mutate: func(c *Config) { c.Ingestion.RateLimitWindow = 0 }, wantErr: "rate_limit_window"},
		{
			name: "limits ignored when disabled",
			mutate: func(c *Config) {
				c.Ingestion.RateLimitEnabled = false
				c.Ingestion.RateLimitRequests = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Ingestion: IngestionConfig{
				DefaultDataSource: "user_submission",
				RateLimitEnabled:  true,
				RateLimitRequests: 10,
				RateLimitWindow:   time.Minute,
			}}
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
