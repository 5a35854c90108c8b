package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bulwark.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9191"
  read_timeout: "30s"

source:
  mode: "file"
  file_path: "./resilience.toml"
  watch: true

registry:
  reinstall: "swap"
  compact_properties: true

history:
  driver: "sqlite3"
  path: "./history.db"
  keep: 10

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9191" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:9191", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("expected read timeout %v, got %v", 30*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Source.Mode != "file" || !cfg.Source.Watch {
		t.Errorf("unexpected source config: %+v", cfg.Source)
	}
	if cfg.Registry.Reinstall != "swap" || !cfg.Registry.CompactProperties {
		t.Errorf("unexpected registry config: %+v", cfg.Registry)
	}
	if cfg.History.Driver != "sqlite3" || cfg.History.Keep != 10 {
		t.Errorf("unexpected history config: %+v", cfg.History)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.Metrics.Path != DefaultMetricsPath {
		t.Errorf("expected default metrics path, got %q", cfg.Telemetry.Metrics.Path)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server:\n  listen_address: [unclosed\n")

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for malformed YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "source:\n  mode: \"consul\"\n")

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Errors[0].Field != "source.mode" {
		t.Errorf("expected source.mode error, got %s", verr.Errors[0].Field)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  listen_address: \"127.0.0.1:9090\"\n")

	t.Setenv("BULWARK_SERVER_LISTEN_ADDRESS", "0.0.0.0:9999")
	t.Setenv("BULWARK_SERVER_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("BULWARK_SOURCE_MODE", "file")
	t.Setenv("BULWARK_SOURCE_WATCH", "true")
	t.Setenv("BULWARK_HISTORY_KEEP", "7")
	t.Setenv("BULWARK_REGISTRY_REINSTALL", "swap")
	t.Setenv("BULWARK_TELEMETRY_TRACING_SAMPLE_RATIO", "0.25")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9999" {
		t.Errorf("expected env listen address, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Errorf("expected shutdown timeout 3s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Source.Mode != "file" || !cfg.Source.Watch {
		t.Errorf("unexpected source config: %+v", cfg.Source)
	}
	if cfg.History.Keep != 7 {
		t.Errorf("expected keep 7, got %d", cfg.History.Keep)
	}
	if cfg.Registry.Reinstall != "swap" {
		t.Errorf("expected reinstall swap, got %q", cfg.Registry.Reinstall)
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.25 {
		t.Errorf("expected sample ratio 0.25, got %v", cfg.Telemetry.Tracing.SampleRatio)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidEnvValues(t *testing.T) {
	path := writeConfig(t, "history:\n  keep: 12\n")

	t.Setenv("BULWARK_HISTORY_KEEP", "lots")
	t.Setenv("BULWARK_SOURCE_WATCH", "maybe")
	t.Setenv("BULWARK_SERVER_READ_TIMEOUT", "soon")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.History.Keep != 12 {
		t.Errorf("expected keep 12 to survive invalid env, got %d", cfg.History.Keep)
	}
	if cfg.Source.Watch {
		t.Error("expected watch to stay false")
	}
	if cfg.Server.ReadTimeout != DefaultReadTimeout {
		t.Errorf("expected default read timeout, got %v", cfg.Server.ReadTimeout)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidResult(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("BULWARK_REGISTRY_REINSTALL", "merge")

	_, err := LoadConfigWithEnvOverrides(path)
	if err == nil || !strings.Contains(err.Error(), "after environment overrides") {
		t.Errorf("expected validation error after overrides, got %v", err)
	}
}

func TestLoadConfig_ExampleConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "examples", "config", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Source.Mode != "file" || !cfg.Source.Watch {
		t.Errorf("source = %+v", cfg.Source)
	}
	if cfg.Registry.Reinstall != DefaultRegistryReinstall {
		t.Errorf("Reinstall = %q", cfg.Registry.Reinstall)
	}
}
