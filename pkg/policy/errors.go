package policy

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultScope is the command name used in errors about default-policy fields.
const DefaultScope = "default"

// Sentinel errors matched with errors.Is.
var (
	// ErrNotInitialized indicates a lookup before any snapshot was installed.
	ErrNotInitialized = errors.New("policy registry not initialized")

	// ErrUnknownCommand indicates a lookup for a command that is not configured.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrDuplicateCommand indicates two commands share a name.
	ErrDuplicateCommand = errors.New("duplicate command")

	// ErrInvalidPolicyValue indicates a policy field is out of its domain.
	ErrInvalidPolicyValue = errors.New("invalid policy value")

	// ErrAlreadyInstalled indicates a second install on a registry that rejects re-installation.
	ErrAlreadyInstalled = errors.New("policy registry already installed")
)

// NotInitializedError is returned by lookups made before the first install.
type NotInitializedError struct {
	Command string
}

// Error returns the error message.
func (e *NotInitializedError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("lookup %q: %v", e.Command, ErrNotInitialized)
	}
	return ErrNotInitialized.Error()
}

// Unwrap returns ErrNotInitialized.
func (e *NotInitializedError) Unwrap() error {
	return ErrNotInitialized
}

// UnknownCommandError is returned when a command name is not in the installed snapshot.
type UnknownCommandError struct {
	Command string
}

// Error returns the error message.
func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("%v: %q", ErrUnknownCommand, e.Command)
}

// Unwrap returns ErrUnknownCommand.
func (e *UnknownCommandError) Unwrap() error {
	return ErrUnknownCommand
}

// DuplicateCommandError reports two command specs with the same name.
// Indexes are positions in Config.Commands.
type DuplicateCommandError struct {
	Command     string
	FirstIndex  int
	SecondIndex int
}

// Error returns the error message.
func (e *DuplicateCommandError) Error() string {
	return fmt.Sprintf("%v %q at commands[%d] and commands[%d]", ErrDuplicateCommand, e.Command, e.FirstIndex, e.SecondIndex)
}

// Unwrap returns ErrDuplicateCommand.
func (e *DuplicateCommandError) Unwrap() error {
	return ErrDuplicateCommand
}

// InvalidPolicyValueError reports a single out-of-domain field.
type InvalidPolicyValueError struct {
	// Command is the command name, or DefaultScope for default-policy fields.
	Command string

	// Field is the dotted field path, e.g. "thread_pool.concurrency".
	Field string

	Value   any
	Message string
}

// Error returns the error message.
func (e *InvalidPolicyValueError) Error() string {
	return fmt.Sprintf("%s: %s = %v: %s", e.Command, e.Field, e.Value, e.Message)
}

// Unwrap returns ErrInvalidPolicyValue.
func (e *InvalidPolicyValueError) Unwrap() error {
	return ErrInvalidPolicyValue
}

// AlreadyInstalledError is returned by a second Install when re-installation is rejected.
type AlreadyInstalledError struct {
	// Version is the version of the snapshot that is already installed.
	Version string
}

// Error returns the error message.
func (e *AlreadyInstalledError) Error() string {
	return fmt.Sprintf("%v (installed version %s)", ErrAlreadyInstalled, e.Version)
}

// Unwrap returns ErrAlreadyInstalled.
func (e *AlreadyInstalledError) Unwrap() error {
	return ErrAlreadyInstalled
}

// ErrorList collects every error found during one compilation.
type ErrorList struct {
	Errors []error
}

// Add appends err to the list. Nil errors are ignored.
func (l *ErrorList) Add(err error) {
	if err != nil {
		l.Errors = append(l.Errors, err)
	}
}

// HasErrors reports whether any error was collected.
func (l *ErrorList) HasErrors() bool {
	return len(l.Errors) > 0
}

// Len returns the number of collected errors.
func (l *ErrorList) Len() int {
	return len(l.Errors)
}

// Error returns all messages, one per line after a summary.
func (l *ErrorList) Error() string {
	if len(l.Errors) == 0 {
		return "no errors"
	}
	if len(l.Errors) == 1 {
		return l.Errors[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d policy errors:", len(l.Errors))
	for _, err := range l.Errors {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (l *ErrorList) Unwrap() []error {
	return l.Errors
}

// ToError returns the list as an error, or nil when it is empty.
func (l *ErrorList) ToError() error {
	if !l.HasErrors() {
		return nil
	}
	return l
}
