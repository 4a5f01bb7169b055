// Package config loads runtime configuration from defaults, an optional
// config file and HFCORE_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/drfirst/go-hfcore/internal/quantity"
)

// Config holds runtime configuration
type Config struct {
	LogLevel        string   `mapstructure:"LOG_LEVEL"`
	LogFormat       string   `mapstructure:"LOG_FORMAT"`
	Languages       []string `mapstructure:"LANGUAGES"`
	MassUnit        string   `mapstructure:"MASS_UNIT"`
	Workers         int      `mapstructure:"WORKERS"`
	QueueSize       int      `mapstructure:"QUEUE_SIZE"`
	OTLPEndpoint    string   `mapstructure:"OTLP_ENDPOINT"`
	TraceSampleRate float64  `mapstructure:"TRACE_SAMPLE_RATE"`
	MetricsFile     string   `mapstructure:"METRICS_FILE"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		LogLevel:        "info",
		LogFormat:       "json",
		Languages:       []string{"en-US"},
		MassUnit:        quantity.Milligrams.Code(),
		Workers:         8,
		QueueSize:       1024,
		TraceSampleRate: 1.0,
	}
}

// Load reads configuration. path may be empty; a missing file is an error
// only when a path was given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HFCORE")
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("LOG_LEVEL", def.LogLevel)
	v.SetDefault("LOG_FORMAT", def.LogFormat)
	v.SetDefault("LANGUAGES", strings.Join(def.Languages, ","))
	v.SetDefault("MASS_UNIT", def.MassUnit)
	v.SetDefault("WORKERS", def.Workers)
	v.SetDefault("QUEUE_SIZE", def.QueueSize)
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("TRACE_SAMPLE_RATE", def.TraceSampleRate)
	v.SetDefault("METRICS_FILE", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Env values arrive as one comma separated string, config files as lists.
	cfg.Languages = splitList(strings.Join(v.GetStringSlice("LANGUAGES"), ","))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later.
func (c *Config) Validate() error {
	if _, ok := quantity.Lookup(c.MassUnit); !ok {
		return fmt.Errorf("MASS_UNIT %q is not a recognized unit", c.MassUnit)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("WORKERS must be positive, got %d", c.Workers)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("QUEUE_SIZE must be positive, got %d", c.QueueSize)
	}
	if c.TraceSampleRate < 0 || c.TraceSampleRate > 1 {
		return fmt.Errorf("TRACE_SAMPLE_RATE must be within [0, 1], got %v", c.TraceSampleRate)
	}
	return nil
}

// Unit returns the configured mass unit.
func (c *Config) Unit() quantity.Unit {
	u, _ := quantity.Lookup(c.MassUnit)
	return u
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
