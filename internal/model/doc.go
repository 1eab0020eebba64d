// Package model defines the domain types and value objects for the
// disease-launcher CLI.
//
// This package contains pure data structures with no external dependencies.
// Checklist results (CheckResult), runtime selection (RuntimeKind) and the
// description of app containers started by the docker runtime (AppInstance)
// live here, alongside the exit codes (ExitCode) and the error type
// (CLIError) that carries them up to the process boundary.
package model
