package loader

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/bulwark/pkg/policy"
	"mercator-hq/bulwark/pkg/policy/compiler"
)

const ordersYAML = `
defaults:
  metrics:
    stats_window: 20s
    num_buckets: 20
    percentile_window: 60s
    percentile_bucket_size: 100
    health_snapshot_interval: 500ms
commands:
  - name: orders
    fallback_enabled: true
    thread_pool:
      concurrency: 25
      max_queue_size: 50
      dynamic_queue_size: 40
      timeout: 2s
  - name: payments
    circuit_breaker:
      request_volume_threshold: 10
      error_threshold_percentage: 25
      sleep_window: 3s
`

const ordersTOML = `
[defaults.metrics]
stats_window = "20s"
num_buckets = 20
percentile_window = "60s"
percentile_bucket_size = 100
health_snapshot_interval = "500ms"

[[commands]]
name = "orders"
fallback_enabled = true

[commands.thread_pool]
concurrency = 25
max_queue_size = 50
dynamic_queue_size = 40
timeout = "2s"

[[commands]]
name = "payments"

[commands.circuit_breaker]
request_volume_threshold = 10
error_threshold_percentage = 25
sleep_window = "3s"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}

func TestLoadFile_YAMLAndTOMLAgree(t *testing.T) {
	l := New(0)

	fromYAML, err := l.LoadFile(writeFile(t, "resilience.yaml", ordersYAML))
	if err != nil {
		t.Fatalf("LoadFile(yaml) error = %v", err)
	}
	fromTOML, err := l.LoadFile(writeFile(t, "resilience.toml", ordersTOML))
	if err != nil {
		t.Fatalf("LoadFile(toml) error = %v", err)
	}

	a, err := compiler.Resolve(fromYAML)
	if err != nil {
		t.Fatal(err)
	}
	b, err := compiler.Resolve(fromTOML)
	if err != nil {
		t.Fatal(err)
	}
	if a.Version() != b.Version() {
		t.Errorf("versions differ: yaml %s, toml %s", a.Version(), b.Version())
	}

	orders, _ := b.Get("orders")
	if orders.ThreadPool().Timeout != 2*time.Second || !orders.FallbackEnabled() {
		t.Errorf("orders = %+v", orders.View())
	}
	if orders.Metrics().StatsWindow != 20*time.Second {
		t.Errorf("orders metrics = %+v, want defaults from file", orders.Metrics())
	}
	payments, _ := b.Get("payments")
	if payments.CircuitBreaker().SleepWindow != 3*time.Second {
		t.Errorf("payments breaker = %+v", payments.CircuitBreaker())
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		max     int64
		wantMsg string
		parse   bool
	}{
		{name: "unsupported extension", file: "resilience.json", content: "{}", wantMsg: "unsupported file type"},
		{name: "too large", file: "resilience.yaml", content: ordersYAML, max: 16, wantMsg: "exceeds maximum"},
		{name: "invalid utf-8", file: "resilience.yaml", content: "commands: \xff\xfe", wantMsg: "invalid UTF-8"},
		{name: "unknown yaml key", file: "resilience.yaml", content: "commands:\n  - name: a\n    fallback: true\n", parse: true},
		{name: "unknown toml key", file: "resilience.toml", content: "[[commands]]\nname = \"a\"\nfallback = true\n", wantMsg: "unknown keys", parse: true},
		{name: "malformed toml", file: "resilience.toml", content: "[[commands]\nname = ", parse: true},
		{name: "bare integer toml timeout", file: "resilience.toml", content: "[[commands]]\nname = \"a\"\n[commands.thread_pool]\nconcurrency = 5\ntimeout = 2000\n", wantMsg: "commands[0].thread_pool.timeout", parse: true},
		{name: "bare integer toml default window", file: "resilience.toml", content: "[defaults.metrics]\nstats_window = 10000\n", wantMsg: "defaults.metrics.stats_window", parse: true},
		{name: "bare integer yaml timeout", file: "resilience.yaml", content: "commands:\n  - name: a\n    thread_pool:\n      concurrency: 5\n      timeout: 2000\n", parse: true},
		{name: "bad isolation", file: "resilience.yaml", content: "commands:\n  - name: a\n    thread_pool:\n      isolation: fiber\n", parse: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.max).LoadFile(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want %q", err, tt.wantMsg)
			}
			var perr *ParseError
			if got := errors.As(err, &perr); got != tt.parse {
				t.Errorf("ParseError = %v, want %v (%v)", got, tt.parse, err)
			}
		})
	}
}

func TestLoadFile_TOMLDurationsInMixedCommands(t *testing.T) {
	content := `
[[commands]]
name = "orders"
[commands.thread_pool]
concurrency = 5
timeout = "2s"

[[commands]]
name = "payments"
[commands.thread_pool]
concurrency = 5
timeout = 2000
`
	_, err := New(0).LoadFile(writeFile(t, "resilience.toml", content))

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want ParseError", err)
	}
	if !strings.Contains(perr.Message, "commands[1].thread_pool.timeout") || strings.Contains(perr.Message, "commands[0]") {
		t.Errorf("Message = %q, want only the second command's timeout", perr.Message)
	}
}

func TestLoadFile_NotFound(t *testing.T) {
	_, err := New(0).LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))

	var lerr *LoadError
	if !errors.As(err, &lerr) || lerr.Message != "file not found" {
		t.Fatalf("error = %v, want file not found", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("expected error chain to contain os.ErrNotExist")
	}
}

func TestDecode_Empty(t *testing.T) {
	cfg, err := New(0).Decode("empty.yaml", FormatYAML, nil)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if cfg.Defaults != nil || len(cfg.Commands) != 0 {
		t.Errorf("cfg = %+v, want empty", cfg)
	}

	snap, err := compiler.Resolve(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Len() != 0 || snap.Defaults() != policy.BuiltinDefaults() {
		t.Error("empty file should resolve to built-in defaults only")
	}
}

func TestFormatFor(t *testing.T) {
	for path, want := range map[string]Format{"a.yaml": FormatYAML, "b.YML": FormatYAML, "c.toml": FormatTOML} {
		got, err := FormatFor(path)
		if err != nil || got != want {
			t.Errorf("FormatFor(%q) = %v, %v", path, got, err)
		}
	}
	if HasValidExtension("resilience.ini") {
		t.Error("expected .ini to be rejected")
	}
}

func TestLoadFile_ExampleConfigs(t *testing.T) {
	l := New(0)
	var versions []string
	for _, name := range []string{"resilience.yaml", "resilience.toml"} {
		cfg, err := l.LoadFile(filepath.Join("..", "..", "..", "examples", "config", name))
		if err != nil {
			t.Fatalf("LoadFile(%s) error = %v", name, err)
		}
		snap, err := compiler.Resolve(cfg)
		if err != nil {
			t.Fatalf("Resolve(%s) error = %v", name, err)
		}
		if snap.Len() != 3 {
			t.Errorf("%s: commands = %d, want 3", name, snap.Len())
		}
		versions = append(versions, snap.Version())
	}
	if versions[0] != versions[1] {
		t.Errorf("example versions differ: %v", versions)
	}
}
