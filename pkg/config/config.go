package config

import (
	"time"

	"mercator-hq/bulwark/pkg/policy"
)

// Config is the root configuration structure for Bulwark.
// It contains the admin server, the resilience policy source, registry
// behaviour, install history and telemetry settings.
type Config struct {
	// Server contains admin HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Source selects where the resilience configuration is read from.
	Source SourceConfig `yaml:"source"`

	// Registry controls how compiled snapshots are installed and exposed.
	Registry RegistryConfig `yaml:"registry"`

	// History contains configuration for the snapshot install history.
	History HistoryConfig `yaml:"history"`

	// Telemetry contains configuration for logging, metrics, tracing and health.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Resilience is the inline resilience configuration, used when
	// Source.Mode is "inline".
	Resilience policy.Config `yaml:"resilience"`
}

// ServerConfig contains configuration for the admin HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the admin server.
	// Format: "host:port" (e.g., "127.0.0.1:9090").
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 65536
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// SourceConfig selects and configures the resilience configuration source.
type SourceConfig struct {
	// Mode specifies where resilience policies come from.
	// Options: "inline" (the resilience section of this file),
	// "file" (a separate YAML or TOML file), "git" (a Git repository)
	// Default: "inline"
	Mode string `yaml:"mode"`

	// FilePath is the resilience file when Mode is "file".
	// Supported extensions: .yaml, .yml, .toml
	// Default: "./resilience.yaml"
	FilePath string `yaml:"file_path"`

	// Watch enables hot reload when the source changes.
	// In file mode the file is watched; in git mode the repository is polled.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce delays reloads after a file change so editors that write in
	// several steps trigger only one reload.
	// Default: 100ms
	Debounce time.Duration `yaml:"debounce"`

	// MaxFileSize is the largest resilience file accepted, in bytes.
	// Default: 1048576 (1MB)
	MaxFileSize int64 `yaml:"max_file_size"`

	// Git contains Git repository configuration, used when Mode is "git".
	Git GitSourceConfig `yaml:"git"`
}

// GitSourceConfig configures Git-based resilience loading.
type GitSourceConfig struct {
	// Repository URL (HTTPS or SSH).
	// Example: "https://github.com/company/resilience.git"
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path of the resilience file within the repository.
	// Default: "resilience.yaml"
	Path string `yaml:"path"`

	// Auth configures Git authentication.
	Auth GitAuthConfig `yaml:"auth"`

	// Poll configures change detection.
	Poll GitPollConfig `yaml:"poll"`

	// Clone configures repository cloning.
	Clone GitCloneConfig `yaml:"clone"`
}

// GitAuthConfig configures Git authentication.
type GitAuthConfig struct {
	// Type: "token", "ssh", "none"
	// Default: "none"
	Type string `yaml:"type"`

	// Token for HTTPS authentication.
	// Required when Type is "token".
	Token string `yaml:"token"`

	// SSHKeyPath for SSH authentication.
	// Required when Type is "ssh".
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKeyPassphrase for encrypted SSH keys.
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// GitPollConfig configures change detection.
type GitPollConfig struct {
	// Schedule is a cron expression or descriptor for polling.
	// Examples: "@every 30s", "*/5 * * * *"
	// Default: "@every 30s"
	Schedule string `yaml:"schedule"`

	// Timeout for Git operations.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// GitCloneConfig configures repository cloning.
type GitCloneConfig struct {
	// Depth for shallow clones (0 = full clone).
	// Default: 1
	Depth int `yaml:"depth"`

	// LocalPath where the repository is cloned.
	// Default: system temp directory
	LocalPath string `yaml:"local_path"`

	// CleanOnStart removes the local repository before cloning.
	// Default: false
	CleanOnStart bool `yaml:"clean_on_start"`
}

// RegistryConfig controls the policy registry.
type RegistryConfig struct {
	// Reinstall decides what a second install does once the registry is READY.
	// Options: "reject" (fail with an error), "swap" (atomically replace)
	// Default: "reject"
	Reinstall string `yaml:"reinstall"`

	// PropertyPrefix is prepended to flat property keys.
	// Default: "hystrix.command"
	PropertyPrefix string `yaml:"property_prefix"`

	// CompactProperties omits per-command properties equal to the default.
	// Default: false
	CompactProperties bool `yaml:"compact_properties"`
}

// HistoryConfig contains configuration for the snapshot install history.
type HistoryConfig struct {
	// Enabled controls whether installs are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Driver selects the storage backend.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo), "memory"
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the SQLite database file.
	// Default: "data/history.db"
	Path string `yaml:"path"`

	// Keep is the number of newest entries retained by pruning (0 = keep all).
	// Default: 100
	Keep int `yaml:"keep"`

	// PruneSchedule is a cron expression for pruning.
	// Default: "0 4 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// BusyTimeout is the SQLite busy timeout.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text", "console"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "bulwark"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "policy"
	Subsystem string `yaml:"subsystem"`

	// ResolveDurationBuckets defines histogram buckets for compile duration (seconds).
	// Default: [0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5]
	ResolveDurationBuckets []float64 `yaml:"resolve_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "bulwark"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS for the OTLP connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
