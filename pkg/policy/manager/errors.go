package manager

import (
	"errors"
	"fmt"
)

var (
	// ErrWatchUnsupported is returned by Watch in inline mode.
	ErrWatchUnsupported = errors.New("watch is not supported in inline mode")

	// ErrWatchRunning is returned when Watch is called twice.
	ErrWatchRunning = errors.New("watch already started")

	// ErrClosed is returned by operations on a closed manager.
	ErrClosed = errors.New("policy manager closed")
)

// Stage names the step of a load that failed.
type Stage string

const (
	StageRead    Stage = "read"
	StageResolve Stage = "resolve"
	StageInstall Stage = "install"
)

// LoadError reports a failed load or reload. The previously installed
// snapshot, if any, is still active when a LoadError is returned.
type LoadError struct {
	// Source is the configuration source mode ("inline", "file", "git").
	Source string

	// Revision is the file path or commit SHA that was read, if known.
	Revision string

	// Stage is the step that failed.
	Stage Stage

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Revision != "" {
		return fmt.Sprintf("%s %s source at %s: %v", e.Stage, e.Source, e.Revision, e.Cause)
	}
	return fmt.Sprintf("%s %s source: %v", e.Stage, e.Source, e.Cause)
}

// Unwrap implements the errors.Unwrap interface for error chain support.
func (e *LoadError) Unwrap() error {
	return e.Cause
}
