// Package config loads budget monitor settings.
package config

import (
	"fmt"
	"time"

	"github.com/crnapay/crnapay-stack/common/config"
	"github.com/crnapay/crnapay-stack/common/messaging"
	natsclient "github.com/crnapay/crnapay-stack/common/messaging/nats"
)

// Config holds all budget service configuration.
type Config struct {
	Server   config.ServerConfig  `mapstructure:"server"`
	NATS     config.NATSConfig    `mapstructure:"nats"`
	Consumer ConsumerConfig       `mapstructure:"consumer"`
	Redis    config.RedisConfig   `mapstructure:"redis"`
	Guard    config.GuardConfig   `mapstructure:"guard"`
	Reset    ResetConfig          `mapstructure:"reset"`
	Logging  config.LoggingConfig `mapstructure:"logging"`
}

// ConsumerConfig controls the JetStream consumer on billing.budget.alerts.
type ConsumerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Name       string        `mapstructure:"name"`
	AckWait    time.Duration `mapstructure:"ack_wait"`
	MaxDeliver int           `mapstructure:"max_deliver"`
	NakDelay   time.Duration `mapstructure:"nak_delay"`
}

// JetStream converts the section into a consumer config.
func (c ConsumerConfig) JetStream() natsclient.ConsumerConfig {
	cfg := natsclient.DefaultConsumerConfig(c.Name, messaging.SubjectBudgetAlerts)
	cfg.AckWait = c.AckWait
	cfg.MaxDeliver = c.MaxDeliver
	cfg.NakDelay = c.NakDelay
	cfg.MaxAckPending = 1
	return cfg
}

// ResetConfig schedules the billing period reset.
type ResetConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
	TimeZone string `mapstructure:"time_zone"`
}

// Location resolves TimeZone.
func (r ResetConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("reset.time_zone: %w", err)
	}
	return loc, nil
}

func defaults() config.Defaults {
	return config.Defaults{
		"server.port":          8095,
		"consumer.enabled":     true,
		"consumer.name":        messaging.ConsumerBudgetMonitor,
		"consumer.ack_wait":    "30s",
		"consumer.max_deliver": 10,
		"consumer.nak_delay":   "10s",
		"redis.enabled":        true,
		"reset.enabled":        true,
		"reset.schedule":       "@monthly",
		"reset.time_zone":      "America/Los_Angeles",
	}
}

// Load reads budget configuration from configPath (optional) and BUDGET_*
// environment variables.
func Load(configPath string) (*Config, error) {
	var cfg Config
	if err := config.Load("budget", "BUDGET", configPath, defaults(), &cfg); err != nil {
		return nil, err
	}
	if !cfg.Redis.Enabled {
		return nil, fmt.Errorf("redis.enabled must be true: pauses are stored in redis")
	}
	if _, err := cfg.Reset.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
