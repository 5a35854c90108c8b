package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:9090"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxHeaderBytes  = 65536

	// Source defaults
	DefaultSourceMode        = "inline"
	DefaultSourceFilePath    = "./resilience.yaml"
	DefaultSourceDebounce    = 100 * time.Millisecond
	DefaultSourceMaxFileSize = int64(1 << 20)
	DefaultGitBranch         = "main"
	DefaultGitPath           = "resilience.yaml"
	DefaultGitAuthType       = "none"
	DefaultGitPollSchedule   = "@every 30s"
	DefaultGitPollTimeout    = 10 * time.Second
	DefaultGitCloneDepth     = 1

	// Registry defaults
	DefaultRegistryReinstall      = "reject"
	DefaultRegistryPropertyPrefix = "hystrix.command"

	// History defaults
	DefaultHistoryEnabled       = true
	DefaultHistoryDriver        = "sqlite"
	DefaultHistoryPath          = "data/history.db"
	DefaultHistoryKeep          = 100
	DefaultHistoryPruneSchedule = "0 4 * * *"
	DefaultHistoryBusyTimeout   = 5 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultMetricsEnabled      = true
	DefaultMetricsPath         = "/metrics"
	DefaultMetricsNamespace    = "bulwark"
	DefaultMetricsSubsystem    = "policy"
	DefaultTracingEnabled      = false
	DefaultTracingSampler      = "ratio"
	DefaultTracingSampleRatio  = 1.0
	DefaultTracingServiceName  = "bulwark"
	DefaultTracingTimeout      = 10 * time.Second
	DefaultHealthEnabled       = true
	DefaultHealthLivenessPath  = "/health"
	DefaultHealthReadinessPath = "/ready"
	DefaultHealthCheckTimeout  = 5 * time.Second
)

// DefaultResolveDurationBuckets are the compile duration histogram buckets in seconds.
var DefaultResolveDurationBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5}

// Default returns a configuration with every default applied, including the
// boolean fields whose default is true. LoadConfig decodes on top of it so
// an explicit false in the file is kept.
func Default() *Config {
	cfg := &Config{}
	cfg.History.Enabled = DefaultHistoryEnabled
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Health.Enabled = DefaultHealthEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	applySourceDefaults(&cfg.Source)

	// Registry defaults
	if cfg.Registry.Reinstall == "" {
		cfg.Registry.Reinstall = DefaultRegistryReinstall
	}
	if cfg.Registry.PropertyPrefix == "" {
		cfg.Registry.PropertyPrefix = DefaultRegistryPropertyPrefix
	}

	// History defaults
	if cfg.History.Driver == "" {
		cfg.History.Driver = DefaultHistoryDriver
	}
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath
	}
	if cfg.History.Keep == 0 {
		cfg.History.Keep = DefaultHistoryKeep
	}
	if cfg.History.PruneSchedule == "" {
		cfg.History.PruneSchedule = DefaultHistoryPruneSchedule
	}
	if cfg.History.BusyTimeout == 0 {
		cfg.History.BusyTimeout = DefaultHistoryBusyTimeout
	}

	applyTelemetryDefaults(&cfg.Telemetry)
}

func applySourceDefaults(src *SourceConfig) {
	if src.Mode == "" {
		src.Mode = DefaultSourceMode
	}
	if src.FilePath == "" {
		src.FilePath = DefaultSourceFilePath
	}
	if src.Debounce == 0 {
		src.Debounce = DefaultSourceDebounce
	}
	if src.MaxFileSize == 0 {
		src.MaxFileSize = DefaultSourceMaxFileSize
	}

	git := &src.Git
	if git.Branch == "" {
		git.Branch = DefaultGitBranch
	}
	if git.Path == "" {
		git.Path = DefaultGitPath
	}
	if git.Auth.Type == "" {
		git.Auth.Type = DefaultGitAuthType
	}
	if git.Poll.Schedule == "" {
		git.Poll.Schedule = DefaultGitPollSchedule
	}
	if git.Poll.Timeout == 0 {
		git.Poll.Timeout = DefaultGitPollTimeout
	}
	if git.Clone.Depth == 0 {
		git.Clone.Depth = DefaultGitCloneDepth
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	// Logging defaults
	if t.Logging.Level == "" {
		t.Logging.Level = DefaultLoggingLevel
	}
	if t.Logging.Format == "" {
		t.Logging.Format = DefaultLoggingFormat
	}

	// Metrics defaults
	if t.Metrics.Path == "" {
		t.Metrics.Path = DefaultMetricsPath
	}
	if t.Metrics.Namespace == "" {
		t.Metrics.Namespace = DefaultMetricsNamespace
	}
	if t.Metrics.Subsystem == "" {
		t.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(t.Metrics.ResolveDurationBuckets) == 0 {
		t.Metrics.ResolveDurationBuckets = append([]float64(nil), DefaultResolveDurationBuckets...)
	}

	// Tracing defaults
	if t.Tracing.Sampler == "" {
		t.Tracing.Sampler = DefaultTracingSampler
	}
	if t.Tracing.SampleRatio == 0 {
		t.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if t.Tracing.ServiceName == "" {
		t.Tracing.ServiceName = DefaultTracingServiceName
	}
	if t.Tracing.Timeout == 0 {
		t.Tracing.Timeout = DefaultTracingTimeout
	}

	// Health defaults
	if t.Health.LivenessPath == "" {
		t.Health.LivenessPath = DefaultHealthLivenessPath
	}
	if t.Health.ReadinessPath == "" {
		t.Health.ReadinessPath = DefaultHealthReadinessPath
	}
	if t.Health.CheckTimeout == 0 {
		t.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
