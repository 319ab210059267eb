// Package config provides configuration for the agent builder preview service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int `toml:"http_port"`

	// Database
	DatabaseURL string `toml:"database_url"`

	// Simulation backend
	FlowsAPIBaseURL string        `toml:"flows_api_base_url"`
	FlowsAPIToken   string        `toml:"flows_api_token"`
	SimulateTimeout time.Duration `toml:"-"`

	// Preview environment sent with every start
	PreviewPace       time.Duration `toml:"-"`
	PreviewTimezone   string        `toml:"preview_timezone"`
	PreviewDateFormat string        `toml:"preview_date_format"`
	PreviewTimeFormat string        `toml:"preview_time_format"`

	// Traces
	TraceStreamURL    string `toml:"trace_stream_url"`
	TraceProfilesFile string `toml:"trace_profiles_file"`

	// Supervisor backend
	SupervisorAPIBaseURL string `toml:"supervisor_api_base_url"`
	SupervisorAPIToken   string `toml:"supervisor_api_token"`
	ProjectUUID          string `toml:"project_uuid"`

	// Limits
	ResumeRatePerSec int `toml:"resume_rate_per_sec"`

	// Logging
	LogLevel string `toml:"log_level"`

	// Millisecond durations as they appear in the file.
	SimulateTimeoutMs int `toml:"simulate_timeout_ms"`
	PreviewPaceMs     int `toml:"preview_pace_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:          8080,
		DatabaseURL:       "file:agentbuilder.db?cache=shared&mode=rwc",
		FlowsAPIBaseURL:   "http://localhost:8000",
		SimulateTimeoutMs: 30000,
		SimulateTimeout:   30 * time.Second,
		PreviewPaceMs:     200,
		PreviewPace:       200 * time.Millisecond,
		PreviewTimezone:   "America/Sao_Paulo",
		PreviewDateFormat: "DD-MM-YYYY",
		PreviewTimeFormat: "tt:mm",
		ResumeRatePerSec:  5,
		LogLevel:          "info",
	}
}

// Load loads configuration from an optional TOML file named by CONFIG_FILE and
// then from environment variables, which take precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.FlowsAPIBaseURL = getEnv("FLOWS_API_BASE_URL", cfg.FlowsAPIBaseURL)
	cfg.FlowsAPIToken = getEnv("FLOWS_API_TOKEN", cfg.FlowsAPIToken)
	cfg.SimulateTimeoutMs = getEnvInt("SIMULATE_TIMEOUT_MS", cfg.SimulateTimeoutMs)
	cfg.PreviewPaceMs = getEnvInt("PREVIEW_PACE_MS", cfg.PreviewPaceMs)
	cfg.PreviewTimezone = getEnv("PREVIEW_TIMEZONE", cfg.PreviewTimezone)
	cfg.PreviewDateFormat = getEnv("PREVIEW_DATE_FORMAT", cfg.PreviewDateFormat)
	cfg.PreviewTimeFormat = getEnv("PREVIEW_TIME_FORMAT", cfg.PreviewTimeFormat)
	cfg.TraceStreamURL = getEnv("TRACE_STREAM_URL", cfg.TraceStreamURL)
	cfg.TraceProfilesFile = getEnv("TRACE_PROFILES_FILE", cfg.TraceProfilesFile)
	cfg.SupervisorAPIBaseURL = getEnv("SUPERVISOR_API_BASE_URL", cfg.SupervisorAPIBaseURL)
	cfg.SupervisorAPIToken = getEnv("SUPERVISOR_API_TOKEN", cfg.SupervisorAPIToken)
	cfg.ProjectUUID = getEnv("PROJECT_UUID", cfg.ProjectUUID)
	cfg.ResumeRatePerSec = getEnvInt("RESUME_RATE_PER_SEC", cfg.ResumeRatePerSec)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.SimulateTimeout = time.Duration(cfg.SimulateTimeoutMs) * time.Millisecond
	cfg.PreviewPace = time.Duration(cfg.PreviewPaceMs) * time.Millisecond

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot default away.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTPPort)
	}
	if c.FlowsAPIBaseURL == "" {
		return fmt.Errorf("flows api base url is required")
	}
	if c.PreviewPaceMs < 0 {
		return fmt.Errorf("preview pace must not be negative")
	}
	if c.SimulateTimeoutMs <= 0 {
		return fmt.Errorf("simulate timeout must be positive")
	}
	if c.ResumeRatePerSec <= 0 {
		return fmt.Errorf("resume rate must be positive")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
