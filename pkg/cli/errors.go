package cli

import (
	"errors"
	"fmt"
)

// Exit codes returned by the bulwark command.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
	ExitInvalid = 3
)

// ConfigError represents an error in the service configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// InvalidError reports resilience configuration that failed to compile.
// The details have already been printed; Error only summarises.
type InvalidError struct {
	Errors int
}

func (e *InvalidError) Error() string {
	if e.Errors == 1 {
		return "resilience configuration has 1 error"
	}
	return fmt.Sprintf("resilience configuration has %d errors", e.Errors)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfig
	}
	var invalid *InvalidError
	if errors.As(err, &invalid) {
		return ExitInvalid
	}
	return ExitFailure
}
