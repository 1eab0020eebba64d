// Package docker runs the crop-disease web application inside a container
// through the Docker Engine API.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Container labels recording which project directory, host port and
//     image an application container belongs to (labels are the only state;
//     there is no state file)
//   - Container lifecycle: pull, create, start, stream logs, wait, stop, remove
//   - Discovery of managed containers for the status and stop commands
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
