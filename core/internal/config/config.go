// Package config loads core processor settings.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/crnapay/crnapay-stack/common/config"
	"github.com/crnapay/crnapay-stack/common/messaging"
	natsclient "github.com/crnapay/crnapay-stack/common/messaging/nats"
	"github.com/crnapay/crnapay-stack/core/internal/storage"
)

// Geocoder modes.
const (
	GeocoderFile  = "file"
	GeocoderRedis = "redis"
	GeocoderChain = "chain"
	GeocoderNone  = "none"
)

// Config holds all core service configuration.
type Config struct {
	Server     config.ServerConfig     `mapstructure:"server"`
	NATS       config.NATSConfig       `mapstructure:"nats"`
	Consumer   ConsumerConfig          `mapstructure:"consumer"`
	Redis      config.RedisConfig      `mapstructure:"redis"`
	Storage    StorageConfig           `mapstructure:"storage"`
	BigQuery   BigQueryConfig          `mapstructure:"bigquery"`
	Postgres   config.PostgresConfig   `mapstructure:"postgres"`
	OpenSearch config.OpenSearchConfig `mapstructure:"opensearch"`
	Geocoder   GeocoderConfig          `mapstructure:"geocoder"`
	Guard      config.GuardConfig      `mapstructure:"guard"`
	Logging    config.LoggingConfig    `mapstructure:"logging"`
}

// ConsumerConfig controls the JetStream consumer.
type ConsumerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Name          string        `mapstructure:"name"`
	AckWait       time.Duration `mapstructure:"ack_wait"`
	MaxDeliver    int           `mapstructure:"max_deliver"`
	MaxAckPending int           `mapstructure:"max_ack_pending"`
	NakDelay      time.Duration `mapstructure:"nak_delay"`
}

// JetStream converts the section into a consumer config.
func (c ConsumerConfig) JetStream() natsclient.ConsumerConfig {
	return natsclient.ConsumerConfig{
		Name:          c.Name,
		FilterSubject: messaging.SubjectSubmissionsReceived,
		AckWait:       c.AckWait,
		MaxDeliver:    c.MaxDeliver,
		MaxAckPending: c.MaxAckPending,
		NakDelay:      c.NakDelay,
	}
}

// StorageConfig selects the row sink.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Table   string `mapstructure:"table"`
	Migrate bool   `mapstructure:"migrate"`
}

// BigQueryConfig holds BigQuery settings.
type BigQueryConfig struct {
	Project         string `mapstructure:"project"`
	Dataset         string `mapstructure:"dataset"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// GeocoderConfig selects the postal code lookup.
type GeocoderConfig struct {
	Mode      string `mapstructure:"mode"`
	File      string `mapstructure:"file"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

func defaults() config.Defaults {
	return config.Defaults{
		"server.port":                8090,
		"consumer.enabled":           true,
		"consumer.name":              messaging.ConsumerCoreProcessor,
		"consumer.ack_wait":          "30s",
		"consumer.max_deliver":       5,
		"consumer.max_ack_pending":   100,
		"consumer.nak_delay":         "5s",
		"storage.backend":            storage.BackendBigQuery,
		"storage.table":              "crna_compensation",
		"storage.migrate":            true,
		"bigquery.project":           "",
		"bigquery.dataset":           "crna",
		"bigquery.credentials_file":  "",
		"postgres.host":              "localhost",
		"postgres.port":              5432,
		"postgres.database":          "crnapay",
		"postgres.user":              "crnapay",
		"postgres.password":          "",
		"postgres.sslmode":           "disable",
		"postgres.max_conns":         10,
		"opensearch.url":             "https://localhost:9200",
		"opensearch.username":        "admin",
		"opensearch.password":        "",
		"opensearch.tls_skip_verify": false,
		"geocoder.mode":              GeocoderFile,
		"geocoder.file":              "/var/lib/crnapay/geonames/US.txt",
		"geocoder.key_prefix":        "geo:us:",
	}
}

// Load reads core configuration from configPath (optional) and CORE_*
// environment variables. Every key needs a default for its environment
// override to be seen.
func Load(configPath string) (*Config, error) {
	var cfg Config
	if err := config.Load("core", "CORE", configPath, defaults(), &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the backend and geocoder selections.
func (c *Config) Validate() error {
	backends := []string{storage.BackendBigQuery, storage.BackendPostgres, storage.BackendOpenSearch}
	if !slices.Contains(backends, c.Storage.Backend) {
		return fmt.Errorf("storage.backend %q must be one of %v", c.Storage.Backend, backends)
	}
	if c.Storage.Table == "" {
		return fmt.Errorf("storage.table is required")
	}
	if c.Storage.Backend == storage.BackendBigQuery && c.BigQuery.Project == "" {
		return fmt.Errorf("bigquery.project is required for the bigquery backend")
	}

	modes := []string{GeocoderFile, GeocoderRedis, GeocoderChain, GeocoderNone}
	if !slices.Contains(modes, c.Geocoder.Mode) {
		return fmt.Errorf("geocoder.mode %q must be one of %v", c.Geocoder.Mode, modes)
	}
	if (c.Geocoder.Mode == GeocoderRedis || c.Geocoder.Mode == GeocoderChain) && !c.Redis.Enabled {
		return fmt.Errorf("geocoder.mode %q requires redis.enabled", c.Geocoder.Mode)
	}
	return nil
}
