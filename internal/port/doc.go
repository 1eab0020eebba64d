// Package port checks whether the web server's listen address is free
// before the application is started.
//
// A bind failure inside the application surfaces late, after dependency
// installation and a slow model import. Probing the address up front with
// net.Listen turns it into an ordinary preflight failure. The Scanner can
// also pick the first free port in a range when the configured port is 0.
package port
