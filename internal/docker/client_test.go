package docker

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/disease-launcher/internal/model"
)

// TestDetectUnixSocket verifies the first existing socket path wins.
func TestDetectUnixSocket(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.sock")
	second := filepath.Join(dir, "second.sock")
	require.NoError(t, os.WriteFile(second, nil, 0o600))

	host, err := detectUnixSocket([]string{first, second})
	require.NoError(t, err)
	assert.Equal(t, "unix://"+second, host)

	require.NoError(t, os.WriteFile(first, nil, 0o600))
	host, err = detectUnixSocket([]string{first, second})
	require.NoError(t, err)
	assert.Equal(t, "unix://"+first, host)
}

func TestDetectUnixSocket_NoneFound(t *testing.T) {
	_, err := detectUnixSocket([]string{filepath.Join(t.TempDir(), "missing.sock")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Docker socket not found")
}

// TestNewClient_DockerHost verifies DOCKER_HOST is used as-is. Creating a
// client does not contact the daemon.
func TestNewClient_DockerHost(t *testing.T) {
	t.Setenv("DOCKER_HOST", "tcp://127.0.0.1:2375")

	c, err := NewClient()
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "tcp://127.0.0.1:2375", c.Inner().DaemonHost())
}

func TestNewClient_BadHost(t *testing.T) {
	t.Setenv("DOCKER_HOST", "not a url")

	_, err := NewClient()
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitGeneralError, cliErr.Code)
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, (&Client{}).Close())
}
