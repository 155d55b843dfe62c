package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.DataInterval.Std())
	assert.Equal(t, 5*time.Minute, cfg.ChartInterval.Std())
	assert.Equal(t, "live", cfg.DataSource)
	assert.NotEmpty(t, cfg.SessionFile)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api_base_url: http://backend:9000
forecast_base_url: http://forecast:9001
data_interval: 10s
chart_interval: 1m
data_source: mock
adjust_forecast: true
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://backend:9000", cfg.APIBaseURL)
	assert.Equal(t, "http://forecast:9001", cfg.ForecastBaseURL)
	assert.Equal(t, 10*time.Second, cfg.DataInterval.Std())
	assert.Equal(t, time.Minute, cfg.ChartInterval.Std())
	assert.Equal(t, "mock", cfg.DataSource)
	assert.True(t, cfg.AdjustForecast)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched fields keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout.Std())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_base_url: http://from-file\n"), 0o600))
	t.Setenv("HOMEBOARD_API_URL", "http://from-env")
	t.Setenv("HOMEBOARD_DATA_INTERVAL", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env", cfg.APIBaseURL)
	assert.Equal(t, 45*time.Second, cfg.DataInterval.Std())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_interval: soon\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"EmptyBaseURL", func(c *Config) { c.APIBaseURL = "" }},
		{"ZeroTimeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"ZeroDataInterval", func(c *Config) { c.DataInterval = 0 }},
		{"ZeroChartInterval", func(c *Config) { c.ChartInterval = 0 }},
		{"BadSource", func(c *Config) { c.DataSource = "replay" }},
		{"EmptySessionFile", func(c *Config) { c.SessionFile = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}
