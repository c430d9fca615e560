// Package config provides unified configuration loading for trialrun.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/trialrun/internal/constants"
)

// Config contains all trialrun configuration settings.
type Config struct {
	// Output contains settings for the windowed batch writer and its sink.
	Output OutputConfig `json:"output" yaml:"output"`

	// Extraction contains settings for the entity snapshot extractor.
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`

	// Run contains settings for the scenario scheduler loop.
	Run RunConfig `json:"run" yaml:"run"`

	// Logging contains settings for operational and tick logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// OutputConfig configures where flushed frame windows are persisted.
type OutputConfig struct {
	// Dir is the directory for persisted windows and tick traces.
	Dir string `json:"dir" yaml:"dir"`

	// Backend selects the storage sink: "file" (default) or "sqlite".
	Backend string `json:"backend" yaml:"backend"`

	// WindowSize is the number of frame records per flushed window.
	WindowSize int `json:"window_size" yaml:"window_size"`
}

// ExtractionConfig configures proximity filtering for frame snapshots.
type ExtractionConfig struct {
	// ProximityMeters is the strict upper bound on the distance between
	// the monitored entity and any included candidate.
	ProximityMeters float64 `json:"proximity_meters" yaml:"proximity_meters"`
}

// RunConfig configures the scheduler's tick loop.
type RunConfig struct {
	// DefaultTimeout is the scenario timeout in simulated seconds, used
	// when a scenario definition does not carry its own.
	DefaultTimeout float64 `json:"default_timeout" yaml:"default_timeout"`

	// PollInterval is the back-off between frame-source polls when no
	// new frame is available.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
}

// LoggingConfig configures trialrun's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables tick logging to <output>/ticks.jsonl.
	// "trace" additionally includes skipped-frame events.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Dir:        "_out",
			Backend:    constants.BackendFile,
			WindowSize: constants.DefaultWindowSize,
		},
		Extraction: ExtractionConfig{
			ProximityMeters: constants.DefaultProximityMeters,
		},
		Run: RunConfig{
			DefaultTimeout: constants.DefaultTimeoutSeconds,
			PollInterval:   constants.DefaultPollIntervalMillis * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the given file (optional) and environment
// variables. Order: defaults -> file -> environment variables.
// An empty path skips the file stage.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
		config = fileConfig
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Output.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive, got %d", c.Output.WindowSize)
	}

	if c.Extraction.ProximityMeters <= 0 {
		return fmt.Errorf("proximity_meters must be positive, got %f", c.Extraction.ProximityMeters)
	}

	if c.Run.DefaultTimeout <= 0 {
		return fmt.Errorf("default_timeout must be positive, got %f", c.Run.DefaultTimeout)
	}

	if c.Run.PollInterval < 0 {
		return fmt.Errorf("poll_interval must be non-negative, got %v", c.Run.PollInterval)
	}

	validBackends := map[string]bool{constants.BackendFile: true, constants.BackendSQLite: true}
	if !validBackends[c.Output.Backend] {
		return fmt.Errorf("invalid backend: %s (valid: file, sqlite)", c.Output.Backend)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("TRIALRUN_OUTPUT_DIR"); v != "" {
		config.Output.Dir = v
	}

	if v := os.Getenv("TRIALRUN_BACKEND"); v != "" {
		config.Output.Backend = v
	}

	if v := os.Getenv("TRIALRUN_WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Output.WindowSize = n
		}
	}

	if v := os.Getenv("TRIALRUN_PROXIMITY_METERS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Extraction.ProximityMeters = f
		}
	}

	if v := os.Getenv("TRIALRUN_DEFAULT_TIMEOUT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Run.DefaultTimeout = f
		}
	}

	if v := os.Getenv("TRIALRUN_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
