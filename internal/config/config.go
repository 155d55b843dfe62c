// Package config loads Homeboard configuration from an optional YAML file,
// a .env file, and environment variable overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration parses "30s"-style values from both YAML and environment.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Decode implements envdecode.Decoder.
func (d *Duration) Decode(repl string) error {
	parsed, err := time.ParseDuration(repl)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", repl, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full runtime configuration.
type Config struct {
	// APIBaseURL is the dashboard backend origin.
	APIBaseURL string `yaml:"api_base_url" env:"HOMEBOARD_API_URL"`
	// ForecastBaseURL is the history/predict service origin. Defaults to
	// APIBaseURL when empty.
	ForecastBaseURL string `yaml:"forecast_base_url" env:"HOMEBOARD_FORECAST_URL"`
	// RequestTimeout bounds each outbound HTTP request.
	RequestTimeout Duration `yaml:"request_timeout" env:"HOMEBOARD_REQUEST_TIMEOUT"`
	// DataInterval is the metrics+dashboard poll period.
	DataInterval Duration `yaml:"data_interval" env:"HOMEBOARD_DATA_INTERVAL"`
	// ChartInterval is the energy chart poll period.
	ChartInterval Duration `yaml:"chart_interval" env:"HOMEBOARD_CHART_INTERVAL"`
	// SessionFile is where the bearer token and cached user are persisted.
	SessionFile string `yaml:"session_file" env:"HOMEBOARD_SESSION_FILE"`
	// DataSource selects "live" or "mock".
	DataSource string `yaml:"data_source" env:"HOMEBOARD_DATA_SOURCE"`
	// AdjustForecast shifts forecast values when a device is toggled.
	AdjustForecast bool `yaml:"adjust_forecast" env:"HOMEBOARD_ADJUST_FORECAST"`
	LogLevel       string `yaml:"log_level" env:"HOMEBOARD_LOG_LEVEL"`
	// DebugAddr, when set, serves Prometheus metrics on this address.
	DebugAddr string `yaml:"debug_addr" env:"HOMEBOARD_DEBUG_ADDR"`
}

// Default returns the configuration used when nothing is specified.
func Default() Config {
	return Config{
		APIBaseURL:     "http://localhost:8000",
		RequestTimeout: Duration(10 * time.Second),
		DataInterval:   Duration(30 * time.Second),
		ChartInterval:  Duration(5 * time.Minute),
		SessionFile:    defaultSessionFile(),
		DataSource:     "live",
		LogLevel:       "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then .env, then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	// .env is optional; ignore a missing file.
	_ = godotenv.Load()

	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the application cannot run with.
func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url is required")
	}
	if c.RequestTimeout.Std() <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.DataInterval.Std() <= 0 {
		return fmt.Errorf("data_interval must be positive")
	}
	if c.ChartInterval.Std() <= 0 {
		return fmt.Errorf("chart_interval must be positive")
	}
	switch c.DataSource {
	case "live", "mock":
	default:
		return fmt.Errorf("data_source must be %q or %q", "live", "mock")
	}
	if c.SessionFile == "" {
		return fmt.Errorf("session_file is required")
	}
	return nil
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "homeboard", "session.json")
}
