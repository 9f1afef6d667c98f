package seeder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/crnapay/crnapay-stack/core/pkg/submission"
)

// Config represents the complete seeder configuration
type Config struct {
	Version  string             `mapstructure:"version" yaml:"version"`
	Defaults DefaultsConfig     `mapstructure:"defaults" yaml:"defaults"`
	Mix      map[string]float64 `mapstructure:"mix" yaml:"mix"`
}

// DefaultsConfig holds default seeder settings
type DefaultsConfig struct {
	IngestURL    string        `mapstructure:"ingest_url" yaml:"ingest_url"`
	Count        int           `mapstructure:"count" yaml:"count"`
	Concurrency  int           `mapstructure:"concurrency" yaml:"concurrency"`
	Interval     time.Duration `mapstructure:"interval" yaml:"interval"`
	InvalidRatio float64       `mapstructure:"invalid_ratio" yaml:"invalid_ratio"`
	DataSource   string        `mapstructure:"data_source" yaml:"data_source"`
	Seed         int64         `mapstructure:"seed" yaml:"seed"`
}

// LoadConfig loads configuration with cascade: flags > ./seeder.yaml > ~/.crnactl/seeder.yaml > defaults
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("seeder")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SEEDER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".crnactl"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", "1.0")

	v.SetDefault("defaults.ingest_url", "")
	v.SetDefault("defaults.count", 100)
	v.SetDefault("defaults.concurrency", 4)
	v.SetDefault("defaults.interval", 0)
	v.SetDefault("defaults.invalid_ratio", 0.0)
	v.SetDefault("defaults.data_source", "seeder")
	v.SetDefault("defaults.seed", 0)
}

// DefaultMix applies when the configuration names no mix. A viper default
// would merge into a configured mix rather than be replaced by it.
func DefaultMix() map[string]float64 {
	return map[string]float64{
		submission.EmploymentW2:         0.55,
		submission.EmploymentContractor: 0.3,
		submission.EmploymentPartTimeW2: 0.1,
		submission.EmploymentOther:      0.05,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Defaults.Count < 1 {
		return fmt.Errorf("count must be at least 1, got %d", c.Defaults.Count)
	}
	if c.Defaults.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Defaults.Concurrency)
	}
	if c.Defaults.InvalidRatio < 0 || c.Defaults.InvalidRatio > 1 {
		return fmt.Errorf("invalid_ratio must be between 0 and 1, got %g", c.Defaults.InvalidRatio)
	}

	if len(c.Mix) == 0 {
		c.Mix = DefaultMix()
	}

	// viper lowercases map keys, so mix keys are matched case-insensitively
	// and stored under their canonical spelling.
	mix := make(map[string]float64, len(c.Mix))
	var total float64
	for key, weight := range c.Mix {
		i := slices.IndexFunc(submission.EmploymentTypes, func(e string) bool { return strings.EqualFold(e, key) })
		if i < 0 {
			return fmt.Errorf("mix: unknown employment type %q", key)
		}
		if weight < 0 {
			return fmt.Errorf("mix: negative weight for %q", key)
		}
		mix[submission.EmploymentTypes[i]] = weight
		total += weight
	}
	if total == 0 {
		return errors.New("mix: weights sum to zero")
	}
	c.Mix = mix

	return nil
}
