package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crnapay/crnapay-stack/common/config"
)

type testConfig struct {
	Server  config.ServerConfig  `mapstructure:"server"`
	NATS    config.NATSConfig    `mapstructure:"nats"`
	Redis   config.RedisConfig   `mapstructure:"redis"`
	Logging config.LoggingConfig `mapstructure:"logging"`
	Table   string               `mapstructure:"table"`
}

func testDefaults() config.Defaults {
	return config.Defaults{
		"server.port": 8090,
		"table":       "crna_compensation",
	}
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	t.Chdir(t.TempDir())
	require.NoError(t, config.Load("test", "CRNATEST", "", testDefaults(), &cfg))

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, -1, cfg.NATS.MaxReconnects)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "crna_compensation", cfg.Table)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
  read_timeout: 5s
nats:
  url: nats://broker:4222
table: from_file
`), 0o600))

	t.Setenv("CRNATEST_TABLE", "from_env")
	t.Setenv("CRNATEST_LOGGING_LEVEL", "debug")

	var cfg testConfig
	require.NoError(t, config.Load("test", "CRNATEST", path, testDefaults(), &cfg))

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
	assert.Equal(t, "from_env", cfg.Table)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	var cfg testConfig
	err := config.Load("test", "CRNATEST", path, nil, &cfg)
	assert.ErrorContains(t, err, "failed to read config")
}

func TestServerConfig_Addr(t *testing.T) {
	assert.Equal(t, ":8080", config.ServerConfig{Port: 8080}.Addr())
}

func TestNATSConfig_ClientConfig(t *testing.T) {
	cfg := config.NATSConfig{URL: "nats://broker:4222", Token: "s3cret"}.ClientConfig("crnapay-core")

	assert.Equal(t, "crnapay-core", cfg.Name)
	assert.Equal(t, "nats://broker:4222", cfg.URL)
	assert.Equal(t, "s3cret", cfg.Token)
	assert.Equal(t, -1, cfg.MaxReconnects)
	assert.Equal(t, 2*time.Second, cfg.ReconnectWait)
}

func TestPostgresConfig_DSN(t *testing.T) {
	p := config.PostgresConfig{
		Host:     "db",
		Port:     5432,
		Database: "crnapay",
		User:     "crnapay",
		Password: "p@ss word",
		SSLMode:  "disable",
	}
	assert.Equal(t, "postgres://crnapay:p%40ss%20word@db:5432/crnapay?sslmode=disable", p.DSN())
}

func TestRedisConfig_NewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := config.RedisConfig{URL: "redis://" + mr.Addr() + "/0"}.NewClient(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	assert.NoError(t, client.Ping(context.Background()).Err())

	_, err = config.RedisConfig{URL: "not a url"}.NewClient(context.Background())
	assert.ErrorContains(t, err, "invalid redis URL")
}
