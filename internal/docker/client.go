package docker

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/docker/docker/client"

	"github.com/shinji-kodama/disease-launcher/internal/model"
)

// defaultPingTimeout bounds the daemon health check run before the
// application container is created. Docker Desktop on macOS runs the
// daemon inside a VM and can take a few seconds to answer the first
// request after waking up, so the limit is looser than a local socket
// would need.
const defaultPingTimeout = 5 * time.Second

// Client wraps the Docker Engine SDK client. It adds socket detection
// across platforms and the daemon health check the docker runtime needs
// before creating an application container.
//
// Usage:
//
//	c, err := docker.NewClient()
//	if err != nil { /* handle */ }
//	defer c.Close()
//	if err := c.Ping(ctx); err != nil { /* Docker not running */ }
type Client struct {
	// inner is the Docker SDK client. It is wrapped rather than embedded
	// so the launcher only depends on the handful of calls it makes,
	// and tests can cover the container logic without a daemon.
	inner *client.Client
}

// NewClient creates a new Docker client with automatic socket detection.
//
// The detection strategy follows this priority order:
//  1. DOCKER_HOST environment variable (if set, used as-is)
//  2. Platform-specific default socket paths:
//     - Linux: /var/run/docker.sock
//     - macOS: /var/run/docker.sock, then ~/.docker/run/docker.sock
//     - Windows: npipe:////./pipe/docker_engine
//
// Returns a *model.CLIError if no Docker socket is found or the client
// cannot be created. NewClient does not contact the daemon; call Ping
// for that.
func NewClient() (*Client, error) {
	// Step 1: an explicit DOCKER_HOST wins, including remote tcp:// and
	// ssh:// hosts. The SDK parses the URI.
	if dockerHost := os.Getenv("DOCKER_HOST"); dockerHost != "" {
		return newClientWithHost(dockerHost)
	}

	// Step 2: look for the local daemon where the platform's Docker
	// installation usually puts it.
	host, err := detectDockerHost()
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			"Docker socket not found; the docker runtime needs a running Docker daemon",
			err,
		)
	}

	return newClientWithHost(host)
}

// newClientWithHost creates a Docker client connected to host.
//
// WithAPIVersionNegotiation makes the client downgrade its API version to
// whatever the daemon supports on the first request. Without it an SDK
// newer than the installed Docker Engine fails every call with "client
// version is too new".
func newClientWithHost(host string) (*Client, error) {
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to create Docker client for host %q", host),
			err,
		)
	}

	return &Client{inner: c}, nil
}

// detectDockerHost returns the Docker host URI for the current platform.
//
// It only checks that a socket (or named pipe) exists. A stale socket
// left behind by a stopped daemon is still returned, and the failure then
// surfaces from Ping with a message that tells the user to start Docker.
// Keeping the two steps apart gives a distinct error for "Docker is not
// installed" and "Docker is not running".
func detectDockerHost() (string, error) {
	switch runtime.GOOS {
	case "linux":
		// Rootless Docker users set DOCKER_HOST themselves, which is
		// handled before detection.
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
		})

	case "darwin":
		// Newer Docker Desktop versions may only create the per-user socket.
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return detectUnixSocket([]string{
				"/var/run/docker.sock",
			})
		}
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
			homeDir + "/.docker/run/docker.sock",
		})

	case "windows":
		// Docker Desktop listens on a named pipe. os.Stat does not work
		// on named pipes, so try a short dial instead.
		pipePath := `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, 1*time.Second)
		if err == nil {
			conn.Close()
			return "npipe://" + pipePath, nil
		}
		return "", fmt.Errorf("Docker named pipe not found at %s: %w", pipePath, err)

	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

// detectUnixSocket returns the Docker host URI for the first existing
// socket in paths. The order of paths is the order of preference: the
// system-wide socket comes first because it is what the docker CLI uses
// by default.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v (is Docker running?)", paths)
}

// Ping verifies that the Docker daemon is reachable, waiting at most
// defaultPingTimeout. The timeout is derived from ctx, so an interrupt
// cancels the check as well.
//
// Returns a *model.CLIError when the daemon does not answer.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return model.WrapCLIError(
			model.ExitGeneralError,
			"Docker daemon is not responding (is Docker running?)",
			err,
		)
	}
	return nil
}

// Close releases all resources held by the Docker client.
// Close is safe to call multiple times.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// Inner returns the underlying Docker SDK client for calls this wrapper
// does not cover. The returned client is owned by c and must not be
// closed separately.
func (c *Client) Inner() *client.Client {
	return c.inner
}
