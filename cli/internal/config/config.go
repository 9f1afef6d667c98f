// Package config manages crnactl profiles stored in ~/.crnactl/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk CLI configuration.
type Config struct {
	CurrentProfile string              `yaml:"current_profile"`
	Profiles       map[string]*Profile `yaml:"profiles"`
	Defaults       *Profile            `yaml:"defaults"`
	path           string
}

// Profile holds the endpoints of one crnapay deployment.
type Profile struct {
	IngestURL      string `yaml:"ingest_url,omitempty"`
	NATSURL        string `yaml:"nats_url,omitempty"`
	NATSToken      string `yaml:"nats_token,omitempty"`
	RedisURL       string `yaml:"redis_url,omitempty"`
	GuardKeyPrefix string `yaml:"guard_key_prefix,omitempty"`
	GeoKeyPrefix   string `yaml:"geo_key_prefix,omitempty"`
}

// DefaultProfile returns endpoints for a local development stack.
func DefaultProfile() *Profile {
	return &Profile{
		IngestURL:      "http://localhost:8088",
		NATSURL:        "nats://localhost:4222",
		RedisURL:       "redis://localhost:6379/0",
		GuardKeyPrefix: "budget:pause:",
		GeoKeyPrefix:   "geo:us:",
	}
}

func Default() *Config {
	return &Config{
		CurrentProfile: "default",
		Profiles:       make(map[string]*Profile),
		Defaults:       DefaultProfile(),
	}
}

// DefaultPath returns ~/.crnactl/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".crnactl", "config.yaml"), nil
}

// Load reads cfgFile, or the default path when cfgFile is empty. A missing
// file yields the default configuration.
func Load(cfgFile string) (*Config, error) {
	if cfgFile == "" {
		var err error
		if cfgFile, err = DefaultPath(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	cfg.path = cfgFile

	data, err := os.ReadFile(cfgFile)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", cfgFile, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]*Profile)
	}
	if cfg.Defaults == nil {
		cfg.Defaults = DefaultProfile()
	}

	return cfg, nil
}

// Path returns the file the configuration is saved to.
func (c *Config) Path() string {
	return c.path
}

// Save writes the configuration with owner-only permissions; profiles may
// carry broker tokens.
func (c *Config) Save() error {
	if c.path == "" {
		var err error
		if c.path, err = DefaultPath(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.path, data, 0600)
}

// SaveProfile stores p under name, makes it current and saves.
func (c *Config) SaveProfile(name string, p *Profile) error {
	if c.Profiles == nil {
		c.Profiles = make(map[string]*Profile)
	}
	c.Profiles[name] = p
	c.CurrentProfile = name
	return c.Save()
}

// GetProfile returns the named profile, or the current one when name is
// empty. Unset fields fall back to Defaults.
func (c *Config) GetProfile(name string) (*Profile, error) {
	if name == "" {
		name = c.CurrentProfile
	}

	p, ok := c.Profiles[name]
	if !ok {
		if name == "default" {
			return c.defaults(), nil
		}
		return nil, fmt.Errorf("profile '%s' not found", name)
	}

	return p.withDefaults(c.defaults()), nil
}

func (c *Config) RemoveProfile(name string) error {
	if _, ok := c.Profiles[name]; !ok {
		return fmt.Errorf("profile '%s' not found", name)
	}

	delete(c.Profiles, name)

	if c.CurrentProfile == name {
		c.CurrentProfile = "default"
	}

	return c.Save()
}

func (c *Config) defaults() *Profile {
	if c.Defaults == nil {
		return DefaultProfile()
	}
	return c.Defaults.withDefaults(DefaultProfile())
}

func (p *Profile) withDefaults(d *Profile) *Profile {
	out := *p
	if out.IngestURL == "" {
		out.IngestURL = d.IngestURL
	}
	if out.NATSURL == "" {
		out.NATSURL = d.NATSURL
	}
	if out.NATSToken == "" {
		out.NATSToken = d.NATSToken
	}
	if out.RedisURL == "" {
		out.RedisURL = d.RedisURL
	}
	if out.GuardKeyPrefix == "" {
		out.GuardKeyPrefix = d.GuardKeyPrefix
	}
	if out.GeoKeyPrefix == "" {
		out.GeoKeyPrefix = d.GeoKeyPrefix
	}
	return &out
}
