// Package config holds the configuration sections shared by crnapay services
// and the viper plumbing every service loader is built on.
//
// Each service reads an optional YAML file and then environment variables
// with its own prefix, so server.port for ingest is INGEST_SERVER_PORT.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/crnapay/crnapay-stack/common/logging"
	natsclient "github.com/crnapay/crnapay-stack/common/messaging/nats"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr returns the listen address for the configured port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// NATSConfig holds message broker connection settings.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Token         string        `mapstructure:"token"`
}

// ClientConfig converts the section into a NATS client config named after
// the connecting service.
func (n NATSConfig) ClientConfig(name string) natsclient.Config {
	cfg := natsclient.DefaultConfig()
	cfg.Name = name
	if n.URL != "" {
		cfg.URL = n.URL
	}
	if n.MaxReconnects != 0 {
		cfg.MaxReconnects = n.MaxReconnects
	}
	if n.ReconnectWait > 0 {
		cfg.ReconnectWait = n.ReconnectWait
	}
	if n.Timeout > 0 {
		cfg.Timeout = n.Timeout
	}
	cfg.Token = n.Token
	return cfg
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// NewClient connects to Redis and verifies the connection.
func (r RedisConfig) NewClient(ctx context.Context) (*redis.Client, error) {
	opt, err := redis.ParseURL(r.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// DSN returns a postgres:// connection URL.
func (p PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(p.User, p.Password),
		Host:   fmt.Sprintf("%s:%d", p.Host, p.Port),
		Path:   "/" + p.Database,
	}
	q := url.Values{}
	if p.SSLMode != "" {
		q.Set("sslmode", p.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// OpenSearchConfig holds OpenSearch connection settings.
type OpenSearchConfig struct {
	URL           string `mapstructure:"url"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	Index         string `mapstructure:"index"`
}

// GuardConfig locates the budget pause keys. The guard is active whenever
// Redis is enabled.
type GuardConfig struct {
	KeyPrefix    string        `mapstructure:"key_prefix"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NewLogger builds the service logger described by the section, tagged with
// the service name.
func (l LoggingConfig) NewLogger(service string) *logging.Logger {
	return logging.New(logging.ParseLevel(l.Level), l.Format).With(slog.String(logging.FieldService, service))
}

// Defaults maps dotted keys to default values.
type Defaults map[string]any

// CommonDefaults returns defaults for the shared sections.
func CommonDefaults() Defaults {
	return Defaults{
		"server.read_timeout":     "15s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "30s",
		"nats.url":                "nats://localhost:4222",
		"nats.max_reconnects":     -1,
		"nats.reconnect_wait":     "2s",
		"nats.timeout":            "5s",
		"nats.token":              "",
		"redis.url":               "redis://localhost:6379/0",
		"redis.enabled":           false,
		"guard.key_prefix":        "budget:pause:",
		"guard.poll_interval":     "15s",
		"logging.level":           "info",
		"logging.format":          "json",
	}
}

// Load reads configuration into out. configPath may be empty, in which case
// config.yaml is searched for in the working directory and in
// /etc/crnapay/<service>. A missing file is not an error; a malformed one is.
func Load(service, envPrefix, configPath string, defaults Defaults, out any) error {
	v := viper.New()

	for key, value := range CommonDefaults() {
		v.SetDefault(key, value)
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/crnapay/" + service)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}
