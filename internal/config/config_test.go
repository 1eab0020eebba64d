package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/disease-launcher/internal/model"
)

// clearEnv makes sure no DISEASE_* variable from the developer's shell
// leaks into a test. t.Setenv restores the previous value afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{EnvPython, EnvHost, EnvPort, EnvDebug, EnvSkipInstall, EnvRuntime, EnvImage} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// TestDefault verifies the built-in layout of the crop-disease project.
func TestDefault(t *testing.T) {
	cfg := Default("/srv/crop")

	assert.Equal(t, "/srv/crop", cfg.BaseDir)
	assert.Equal(t, "disease_requirements.txt", cfg.Manifest)
	assert.Equal(t, "models/plant_disease_model.pth", cfg.ModelFile)
	assert.Equal(t, []string{"utils/model.py", "utils/disease.py"}, cfg.UtilFiles)
	assert.Equal(t, []string{
		"templates/index_disease.html",
		"templates/disease.html",
		"templates/disease_result_simple.html",
	}, cfg.Templates)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 5000, cfg.Port)
	assert.True(t, cfg.Debug, "debug/auto-reload is on by default")
	assert.Equal(t, model.RuntimeLocal, cfg.Runtime)
	assert.NoError(t, cfg.Validate())
}

// TestLoad_NoConfigFile verifies that a project without a config file
// gets the defaults rooted at the absolute base directory.
func TestLoad_NoConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	cfg, path, err := Load(dir, "")
	require.NoError(t, err)

	assert.Empty(t, path)
	assert.Equal(t, dir, cfg.BaseDir)
	assert.Equal(t, DefaultPort, cfg.Port)
}

// TestLoad_MissingBaseDir verifies that a nonexistent base directory is
// reported instead of silently falling back to the working directory.
func TestLoad_MissingBaseDir(t *testing.T) {
	clearEnv(t)
	_, _, err := Load(filepath.Join(t.TempDir(), "nope"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base directory")
}

// TestLoad_YAML verifies that a YAML config file overlays the defaults
// and leaves unspecified fields untouched.
func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "disease-launcher.yaml"), `
python: /opt/py/bin/python
port: 8080
debug: false
templates:
  - templates/index.html
docker:
  image: python:3.12-slim
`)

	cfg, path, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "disease-launcher.yaml"), path)
	assert.Equal(t, "/opt/py/bin/python", cfg.Python)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, []string{"templates/index.html"}, cfg.Templates)
	assert.Equal(t, "python:3.12-slim", cfg.Docker.Image)

	// Untouched fields keep their defaults.
	assert.Equal(t, DefaultManifest, cfg.Manifest)
	assert.Equal(t, []string{"utils/model.py", "utils/disease.py"}, cfg.UtilFiles)
}

// TestLoad_JSONC verifies that comments and trailing commas are accepted
// in JSON config files.
func TestLoad_JSONC(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "disease-launcher.jsonc"), `{
  // run inside a container
  "runtime": "docker",
  "host": "127.0.0.1", /* loopback only */
  "skipInstall": true,
}`)

	cfg, _, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, model.RuntimeDocker, cfg.Runtime)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.True(t, cfg.SkipInstall)
}

// TestLoad_ExplicitPath verifies that --config wins over discovery.
func TestLoad_ExplicitPath(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "disease-launcher.yaml"), "port: 7000\n")
	explicit := filepath.Join(t.TempDir(), "custom.json")
	writeFile(t, explicit, `{"port": 7100}`)

	cfg, path, err := Load(dir, explicit)
	require.NoError(t, err)

	assert.Equal(t, explicit, path)
	assert.Equal(t, 7100, cfg.Port)
}

// TestLoadFile_Errors covers unreadable, malformed and unsupported files.
func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		err := LoadFile(filepath.Join(dir, "missing.yaml"), Default(dir))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		writeFile(t, path, "port: [unterminated\n")
		err := LoadFile(path, Default(dir))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse config file")
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "config.toml")
		writeFile(t, path, "port = 1\n")
		err := LoadFile(path, Default(dir))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported config file extension")
	})
}

// TestFindConfigFile_Priority verifies that YAML is preferred over JSONC
// when both exist.
func TestFindConfigFile_Priority(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, FindConfigFile(dir))

	writeFile(t, filepath.Join(dir, "disease-launcher.jsonc"), "{}")
	assert.Equal(t, filepath.Join(dir, "disease-launcher.jsonc"), FindConfigFile(dir))

	writeFile(t, filepath.Join(dir, "disease-launcher.yaml"), "{}")
	assert.Equal(t, filepath.Join(dir, "disease-launcher.yaml"), FindConfigFile(dir))
}

// TestApplyEnv verifies environment overrides and strict parsing.
func TestApplyEnv(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvPython, "python3.11")
		t.Setenv(EnvHost, "127.0.0.1")
		t.Setenv(EnvPort, "5050")
		t.Setenv(EnvDebug, "false")
		t.Setenv(EnvSkipInstall, "1")
		t.Setenv(EnvRuntime, "DOCKER")
		t.Setenv(EnvImage, "python:3.10")

		cfg := Default(t.TempDir())
		require.NoError(t, ApplyEnv(cfg))

		assert.Equal(t, "python3.11", cfg.Python)
		assert.Equal(t, "127.0.0.1", cfg.Host)
		assert.Equal(t, 5050, cfg.Port)
		assert.False(t, cfg.Debug)
		assert.True(t, cfg.SkipInstall)
		assert.Equal(t, model.RuntimeDocker, cfg.Runtime)
		assert.Equal(t, "python:3.10", cfg.Docker.Image)
	})

	t.Run("malformed port", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvPort, "five-thousand")
		err := ApplyEnv(Default(t.TempDir()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), EnvPort)
	})

	t.Run("malformed bool", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvDebug, "sometimes")
		err := ApplyEnv(Default(t.TempDir()))
		require.Error(t, err)
		assert.Contains(t, err.Error(), EnvDebug)
	})
}

// TestLoad_DotEnv verifies that .env values are applied but never override
// variables already present in the environment.
func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".env"), "DISEASE_PORT=5999\nDISEASE_HOST=10.0.0.5\n")
	t.Setenv(EnvHost, "127.0.0.1")
	// godotenv.Load sets variables with os.Setenv; register cleanup for them.
	t.Cleanup(func() { _ = os.Unsetenv(EnvPort) })

	cfg, _, err := Load(dir, "")
	require.NoError(t, err)

	assert.Equal(t, 5999, cfg.Port, ".env value applies")
	assert.Equal(t, "127.0.0.1", cfg.Host, "existing environment wins over .env")
}

// TestValidate reports every problem at once.
func TestValidate(t *testing.T) {
	cfg := Default("/srv/crop")
	cfg.Port = 70000
	cfg.MinPython = "three"
	cfg.AppModule = "app; import os"
	cfg.AppObject = "app()"
	cfg.Runtime = "podman"
	cfg.UtilFiles = []string{"utils/model.py", " "}

	err := cfg.Validate()
	require.Error(t, err)

	for _, field := range []string{"port", "minPython", "appModule", "appObject", "runtime", "utilFiles[1]"} {
		assert.Contains(t, err.Error(), field)
	}

	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

// TestValidate_DockerImage verifies the image is required only for the
// docker runtime.
func TestValidate_DockerImage(t *testing.T) {
	cfg := Default("/srv/crop")
	cfg.Docker.Image = ""
	assert.NoError(t, cfg.Validate(), "local runtime does not need an image")

	cfg.Runtime = model.RuntimeDocker
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "docker.image")
}

// TestResolve verifies path resolution against the base directory.
func TestResolve(t *testing.T) {
	cfg := Default("/srv/crop")
	assert.Equal(t, filepath.Join("/srv/crop", "models", "plant_disease_model.pth"), cfg.Resolve("models/plant_disease_model.pth"))
	assert.Equal(t, "/opt/weights.pth", cfg.Resolve("/opt/weights.pth"))
}

// TestAddressAndBrowserURL verifies the bind address and the URL shown to
// the user.
func TestAddressAndBrowserURL(t *testing.T) {
	cfg := Default("/srv/crop")
	assert.Equal(t, "0.0.0.0:5000", cfg.Address())
	assert.Equal(t, "http://localhost:5000", cfg.BrowserURL())

	cfg.Host = "192.168.1.20"
	cfg.Port = 8000
	assert.Equal(t, "192.168.1.20:8000", cfg.Address())
	assert.Equal(t, "http://192.168.1.20:8000", cfg.BrowserURL())

	cfg.Host = "::"
	assert.Equal(t, "[::]:8000", cfg.Address())
	assert.Equal(t, "http://localhost:8000", cfg.BrowserURL())
}
