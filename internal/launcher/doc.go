// Package launcher ties the startup checklist to the application run.
//
// Launch prints the banner, runs the preflight checklist and, only if
// every check passed, hands over to an App exactly once. The App is the
// only long-running step: a local interpreter process (LocalApp) or a
// container (docker.App). How the run ends decides the exit code:
//
//   - the context was cancelled (SIGINT/SIGTERM): "Server stopped by user", exit 0
//   - the application object could not be imported: "Error importing app", exit 1
//   - anything else failed: "Error running app", exit 1
package launcher
