package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the service configuration and returns a ValidationError
// if any rule fails. All errors are collected and returned together.
//
// The resilience section is not compiled here; policy values are checked by
// the compiler when the snapshot is built.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateSource(&cfg.Source)...)
	errs = append(errs, validateRegistry(&cfg.Registry)...)
	errs = append(errs, validateHistory(&cfg.History)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: fmt.Sprintf("invalid host:port: %v", err)})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "shutdown timeout must be positive"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_header_bytes", Message: "max header bytes must be non-negative"})
	}

	return errs
}

func validateSource(cfg *SourceConfig) []FieldError {
	var errs []FieldError

	switch cfg.Mode {
	case "inline":
		if cfg.Watch {
			errs = append(errs, FieldError{Field: "source.watch", Message: "watch is not supported in inline mode"})
		}
	case "file":
		if cfg.FilePath == "" {
			errs = append(errs, FieldError{Field: "source.file_path", Message: "file path is required in file mode"})
		}
	case "git":
		errs = append(errs, validateGit(&cfg.Git)...)
	default:
		errs = append(errs, FieldError{
			Field:   "source.mode",
			Message: fmt.Sprintf("invalid mode %q (must be inline, file, or git)", cfg.Mode),
		})
	}

	if cfg.Debounce < 0 {
		errs = append(errs, FieldError{Field: "source.debounce", Message: "debounce must be non-negative"})
	}
	if cfg.MaxFileSize <= 0 {
		errs = append(errs, FieldError{Field: "source.max_file_size", Message: "max file size must be positive"})
	}

	return errs
}

func validateGit(cfg *GitSourceConfig) []FieldError {
	var errs []FieldError

	if cfg.Repository == "" {
		errs = append(errs, FieldError{Field: "source.git.repository", Message: "repository URL is required in git mode"})
	}
	if cfg.Branch == "" {
		errs = append(errs, FieldError{Field: "source.git.branch", Message: "branch is required"})
	}

	switch cfg.Auth.Type {
	case "none":
	case "token":
		if cfg.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "source.git.auth.token", Message: "token is required for token auth"})
		}
	case "ssh":
		if cfg.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "source.git.auth.ssh_key_path", Message: "ssh_key_path is required for ssh auth"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "source.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q (must be none, token, or ssh)", cfg.Auth.Type),
		})
	}

	if _, err := cron.ParseStandard(cfg.Poll.Schedule); err != nil {
		errs = append(errs, FieldError{Field: "source.git.poll.schedule", Message: fmt.Sprintf("invalid schedule: %v", err)})
	}
	if cfg.Poll.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "source.git.poll.timeout", Message: "timeout must be positive"})
	}
	if cfg.Clone.Depth < 0 {
		errs = append(errs, FieldError{Field: "source.git.clone.depth", Message: "depth must be non-negative"})
	}

	return errs
}

func validateRegistry(cfg *RegistryConfig) []FieldError {
	var errs []FieldError

	if cfg.Reinstall != "reject" && cfg.Reinstall != "swap" {
		errs = append(errs, FieldError{
			Field:   "registry.reinstall",
			Message: fmt.Sprintf("invalid reinstall policy %q (must be reject or swap)", cfg.Reinstall),
		})
	}
	if strings.HasSuffix(cfg.PropertyPrefix, ".") {
		errs = append(errs, FieldError{Field: "registry.property_prefix", Message: "prefix must not end with a dot"})
	}

	return errs
}

func validateHistory(cfg *HistoryConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError

	switch cfg.Driver {
	case "sqlite", "sqlite3":
		if cfg.Path == "" {
			errs = append(errs, FieldError{Field: "history.path", Message: "path is required for sqlite drivers"})
		}
	case "memory":
	default:
		errs = append(errs, FieldError{
			Field:   "history.driver",
			Message: fmt.Sprintf("invalid driver %q (must be sqlite, sqlite3, or memory)", cfg.Driver),
		})
	}

	if cfg.Keep < 0 {
		errs = append(errs, FieldError{Field: "history.keep", Message: "keep must be non-negative"})
	}
	if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
		errs = append(errs, FieldError{Field: "history.prune_schedule", Message: fmt.Sprintf("invalid schedule: %v", err)})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid log level %q (must be debug, info, warn, or error)", cfg.Logging.Level),
		})
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid log format %q (must be json, text, or console)", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with /"})
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (must be always, never, or ratio)", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0.0 and 1.0"})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
		}
	}

	if cfg.Health.Enabled {
		if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
			errs = append(errs, FieldError{Field: "telemetry.health.liveness_path", Message: "path must start with /"})
		}
		if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
			errs = append(errs, FieldError{Field: "telemetry.health.readiness_path", Message: "path must start with /"})
		}
	}

	return errs
}
