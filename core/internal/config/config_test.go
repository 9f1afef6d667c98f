package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crnapay/crnapay-stack/core/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CORE_BIGQUERY_PROJECT", "crnapay-dev")

	cfg, err := config.Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "bigquery", cfg.Storage.Backend)
	assert.Equal(t, "crna_compensation", cfg.Storage.Table)
	assert.Equal(t, "crnapay-dev", cfg.BigQuery.Project)
	assert.Equal(t, "crna", cfg.BigQuery.Dataset)
	assert.Equal(t, config.GeocoderFile, cfg.Geocoder.Mode)
	assert.True(t, cfg.Consumer.Enabled)

	js := cfg.Consumer.JetStream()
	assert.Equal(t, "core-processor", js.Name)
	assert.Equal(t, "submissions.received", js.FilterSubject)
	assert.Equal(t, 30*time.Second, js.AckWait)
	assert.Equal(t, 5, js.MaxDeliver)
}

func TestLoad_PostgresFromEnv(t *testing.T) {
	t.Setenv("CORE_STORAGE_BACKEND", "postgres")
	t.Setenv("CORE_POSTGRES_PASSWORD", "s3cret")
	t.Setenv("CORE_GEOCODER_MODE", "none")

	cfg, err := config.Load(writeConfig(t, "postgres:\n  host: db\n"))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, "postgres://crnapay:s3cret@db:5432/crnapay?sslmode=disable", cfg.Postgres.DSN())
	assert.Equal(t, config.GeocoderNone, cfg.Geocoder.Mode)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown backend", "storage:\n  backend: mysql\n", "storage.backend"},
		{"bigquery without project", "storage:\n  backend: bigquery\n", "bigquery.project"},
		{"unknown geocoder", "bigquery:\n  project: p\ngeocoder:\n  mode: google\n", "geocoder.mode"},
		{"redis geocoder without redis", "bigquery:\n  project: p\ngeocoder:\n  mode: redis\n", "requires redis.enabled"},
		{"empty table", "bigquery:\n  project: p\nstorage:\n  table: \"\"\n", "storage.table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
