package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "default", cfg.CurrentProfile)
	assert.Empty(t, cfg.Profiles)
	require.NotNil(t, cfg.Defaults)
	assert.Equal(t, "http://localhost:8088", cfg.Defaults.IngestURL)
	assert.Equal(t, "nats://localhost:4222", cfg.Defaults.NATSURL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Defaults.RedisURL)
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	p, err := cfg.GetProfile("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8088", p.IngestURL)
}

func TestLoad_WithConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`current_profile: staging
profiles:
  staging:
    ingest_url: https://ingest.staging.example.com
    nats_token: s3cret
defaults:
  redis_url: redis://cache:6379/1
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.CurrentProfile)

	p, err := cfg.GetProfile("")
	require.NoError(t, err)
	assert.Equal(t, "https://ingest.staging.example.com", p.IngestURL)
	assert.Equal(t, "s3cret", p.NATSToken)
	assert.Equal(t, "redis://cache:6379/1", p.RedisURL, "unset field falls back to defaults section")
	assert.Equal(t, "nats://localhost:4222", p.NATSURL, "unset everywhere falls back to built-in defaults")
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [nope"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, cfg.SaveProfile("prod", &Profile{IngestURL: "https://ingest.example.com"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", reloaded.CurrentProfile)
	p, err := reloaded.GetProfile("prod")
	require.NoError(t, err)
	assert.Equal(t, "https://ingest.example.com", p.IngestURL)
}

func TestGetProfile_NotFound(t *testing.T) {
	_, err := Default().GetProfile("nope")
	assert.EqualError(t, err, "profile 'nope' not found")
}

func TestRemoveProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.SaveProfile("prod", &Profile{}))

	require.NoError(t, cfg.RemoveProfile("prod"))
	assert.Equal(t, "default", cfg.CurrentProfile)
	assert.NotContains(t, cfg.Profiles, "prod")

	assert.Error(t, cfg.RemoveProfile("prod"))
}
