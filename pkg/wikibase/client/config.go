package client

import (
	"io"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/knowbase/wikibase/pkg/wikibase/errors"
)

// Duration wraps time.Duration so that configuration files can use
// readable values like "500ms" or "2m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var value string
	if err := unmarshal(&value); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return errors.NewValidationError("duration", value)
	}

	*d = Duration(parsed)
	return nil
}

type RetryConfig struct {
	MaxAttempts         int      `yaml:"maxAttempts"`
	InitialInterval     Duration `yaml:"initialInterval"`
	MaxInterval         Duration `yaml:"maxInterval"`
	MaxElapsedTime      Duration `yaml:"maxElapsedTime"`
	Multiplier          float64  `yaml:"multiplier"`
	RandomizationFactor float64  `yaml:"randomizationFactor"`
}

type Config struct {
	Endpoint  string      `yaml:"endpoint"`
	UserAgent string      `yaml:"userAgent"`
	Maxlag    int         `yaml:"maxlag"`
	Bot       bool        `yaml:"bot"`
	Retry     RetryConfig `yaml:"retry"`
}

// DefaultConfig returns a configuration with conservative retry
// behavior, suitable when no configuration file is provided.
func DefaultConfig() *Config {
	return &Config{
		Maxlag: 5,
		Retry: RetryConfig{
			MaxAttempts:         5,
			InitialInterval:     Duration(500 * time.Millisecond),
			MaxInterval:         Duration(30 * time.Second),
			MaxElapsedTime:      Duration(2 * time.Minute),
			Multiplier:          1.5,
			RandomizationFactor: 0.5,
		},
	}
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	err = yaml.Unmarshal(buf, cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.Retry.MaxAttempts < 1 {
		return errors.NewValidationError("retry.maxAttempts", "must be at least 1")
	}
	if cfg.Retry.InitialInterval <= 0 {
		return errors.NewValidationError("retry.initialInterval", "must be positive")
	}
	if cfg.Retry.Multiplier < 1 {
		return errors.NewValidationError("retry.multiplier", "must be at least 1")
	}
	if cfg.Maxlag < 0 {
		return errors.NewValidationError("maxlag", "must not be negative")
	}
	return nil
}
