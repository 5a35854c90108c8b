package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of Default(), so absent fields keep their
// defaults, then the result is validated.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides
// for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration data on top of the defaults without
// validating it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention BULWARK_SECTION_FIELD (e.g., BULWARK_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file on top of the defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format BULWARK_SECTION_FIELD. Values that
// fail to parse are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("BULWARK_SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("BULWARK_SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("BULWARK_SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("BULWARK_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Source overrides
	envString("BULWARK_SOURCE_MODE", &cfg.Source.Mode)
	envString("BULWARK_SOURCE_FILE_PATH", &cfg.Source.FilePath)
	envBool("BULWARK_SOURCE_WATCH", &cfg.Source.Watch)
	envDuration("BULWARK_SOURCE_DEBOUNCE", &cfg.Source.Debounce)
	envString("BULWARK_SOURCE_GIT_REPOSITORY", &cfg.Source.Git.Repository)
	envString("BULWARK_SOURCE_GIT_BRANCH", &cfg.Source.Git.Branch)
	envString("BULWARK_SOURCE_GIT_PATH", &cfg.Source.Git.Path)
	envString("BULWARK_SOURCE_GIT_AUTH_TYPE", &cfg.Source.Git.Auth.Type)
	envString("BULWARK_SOURCE_GIT_AUTH_TOKEN", &cfg.Source.Git.Auth.Token)
	envString("BULWARK_SOURCE_GIT_AUTH_SSH_KEY_PATH", &cfg.Source.Git.Auth.SSHKeyPath)
	envString("BULWARK_SOURCE_GIT_POLL_SCHEDULE", &cfg.Source.Git.Poll.Schedule)

	// Registry overrides
	envString("BULWARK_REGISTRY_REINSTALL", &cfg.Registry.Reinstall)
	envString("BULWARK_REGISTRY_PROPERTY_PREFIX", &cfg.Registry.PropertyPrefix)

	// History overrides
	envBool("BULWARK_HISTORY_ENABLED", &cfg.History.Enabled)
	envString("BULWARK_HISTORY_DRIVER", &cfg.History.Driver)
	envString("BULWARK_HISTORY_PATH", &cfg.History.Path)
	envInt("BULWARK_HISTORY_KEEP", &cfg.History.Keep)
	envString("BULWARK_HISTORY_PRUNE_SCHEDULE", &cfg.History.PruneSchedule)

	// Telemetry overrides
	envString("BULWARK_TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("BULWARK_TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("BULWARK_TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("BULWARK_TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("BULWARK_TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("BULWARK_TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	if val := os.Getenv("BULWARK_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}
