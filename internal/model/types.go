// Package model defines the domain types for the disease-launcher CLI.
//
// These types are shared by the preflight checker, the launcher, the docker
// runtime and the CLI output layer. None of them are persisted: checklist
// results live for one invocation, and AppInstance values are rebuilt from
// Docker container labels whenever they are needed.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CheckStatus is the outcome of a single preflight check.
type CheckStatus string

const (
	// CheckPassed means the precondition holds.
	CheckPassed CheckStatus = "passed"

	// CheckFailed means the precondition does not hold. The checklist
	// stops at the first failed check.
	CheckFailed CheckStatus = "failed"

	// CheckSkipped means the check was not applicable to this invocation
	// (e.g. --skip-install, or host-side Python checks under the docker runtime).
	CheckSkipped CheckStatus = "skipped"
)

// String returns the string representation of CheckStatus.
func (s CheckStatus) String() string {
	return string(s)
}

// CheckResult records the outcome of one entry in the startup checklist.
type CheckResult struct {
	// Name is the stable identifier of the check (e.g. "python-version").
	Name string `json:"name"`

	// Status is the outcome of the check.
	Status CheckStatus `json:"status"`

	// Message is the human-readable summary printed to the console.
	Message string `json:"message"`

	// Path is the file the check was about, relative to the base directory.
	// Empty for checks that are not about a file.
	Path string `json:"path,omitempty"`
}

// Passed reports whether every result in the slice passed or was skipped.
func Passed(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == CheckFailed {
			return false
		}
	}
	return true
}

// RuntimeKind selects how the web application is started once all
// preflight checks have passed.
type RuntimeKind string

const (
	// RuntimeLocal runs the application with the host Python interpreter.
	RuntimeLocal RuntimeKind = "local"

	// RuntimeDocker runs the application inside a Python container.
	RuntimeDocker RuntimeKind = "docker"
)

// String returns the string representation of RuntimeKind.
func (r RuntimeKind) String() string {
	return string(r)
}

// IsValid checks whether the RuntimeKind value is one of the known runtimes.
func (r RuntimeKind) IsValid() bool {
	switch r {
	case RuntimeLocal, RuntimeDocker:
		return true
	default:
		return false
	}
}

// ParseRuntimeKind converts a string to a RuntimeKind.
// Returns an error if the string does not match any known runtime.
func ParseRuntimeKind(s string) (RuntimeKind, error) {
	kind := RuntimeKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid runtime: %q (valid: local, docker)", s)
	}
	return kind, nil
}

// AppInstance describes a web application container started by the docker
// runtime. All fields except ContainerID, ContainerName and State are
// reconstructed from container labels.
type AppInstance struct {
	ContainerID   string    `json:"containerId"`
	ContainerName string    `json:"containerName"`
	State         string    `json:"state"`
	BaseDir       string    `json:"baseDir"`
	HostPort      int       `json:"hostPort"`
	Image         string    `json:"image"`
	StartedAt     time.Time `json:"startedAt"`
}

// ShortID returns the first 12 characters of the container ID, the same
// abbreviation the docker CLI uses.
func (a *AppInstance) ShortID() string {
	if len(a.ContainerID) > 12 {
		return a.ContainerID[:12]
	}
	return a.ContainerID
}

// ErrAppImport is returned by application runners when the application
// object could not be imported. The launcher reports it separately from
// errors raised while the server is running.
var ErrAppImport = errors.New("application import failed")

// ExitCode defines the process exit codes of the launcher.
//
// Every failure category maps to ExitGeneralError. A user-initiated
// interrupt is a clean shutdown and exits with ExitSuccess.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully, or the
	// server was stopped by the user.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates a failed check, a failed installation,
	// an import failure or an error while the server was running.
	ExitGeneralError ExitCode = 1
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error

	// Reported is set when the message has already been printed as part
	// of the checklist, so the CLI layer only prints it in JSON mode.
	Reported bool
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// MarkReported sets Reported and returns e.
func (e *CLIError) MarkReported() *CLIError {
	e.Reported = true
	return e
}
