// Package preflight implements the startup checklist that must pass before
// the crop-disease web application is launched.
//
// The checks run in a fixed order and the checklist stops at the first
// failure:
//
//  1. python-version  interpreter is at least the configured minimum (3.7)
//  2. manifest        the requirements file exists
//  3. install         pip install -r <manifest> succeeds
//  4. model           the trained weights file exists
//  5. utils           every utility module exists
//  6. templates       every HTML template exists
//  7. listen-address  the server's host:port can be bound
//
// Each check prints one console line and records a model.CheckResult.
// A failing check returns a *model.CLIError with ExitGeneralError.
package preflight
