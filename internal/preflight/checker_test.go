package preflight

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/disease-launcher/internal/config"
	"github.com/shinji-kodama/disease-launcher/internal/console"
	"github.com/shinji-kodama/disease-launcher/internal/model"
	"github.com/shinji-kodama/disease-launcher/internal/pyenv"
)

// fakePython records how often the installer was invoked.
type fakePython struct {
	version    pyenv.Version
	versionErr error
	installErr error
	installs   int
	manifest   string
}

func (f *fakePython) Version(ctx context.Context) (pyenv.Version, error) {
	return f.version, f.versionErr
}

func (f *fakePython) InstallRequirements(ctx context.Context, manifest string, stdout, stderr io.Writer) error {
	f.installs++
	f.manifest = manifest
	fmt.Fprintln(stdout, "Successfully installed flask")
	return f.installErr
}

// fakePorts reports a fixed set of busy ports.
type fakePorts struct {
	busy map[int]bool
	free int
	err  error
}

func (f *fakePorts) IsAddrAvailable(host string, port int) bool {
	return !f.busy[port]
}

func (f *fakePorts) FindAvailablePort(host string, startPort, endPort int) (int, error) {
	return f.free, f.err
}

// newProject creates a base directory containing every required file.
func newProject(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default(t.TempDir())

	files := []string{cfg.Manifest, cfg.ModelFile}
	files = append(files, cfg.UtilFiles...)
	files = append(files, cfg.Templates...)
	for _, f := range files {
		path := cfg.Resolve(f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
	return cfg
}

func removeFile(t *testing.T, cfg *config.Config, rel string) {
	t.Helper()
	require.NoError(t, os.Remove(cfg.Resolve(rel)))
}

func newChecker(cfg *config.Config, py *fakePython, out *bytes.Buffer) *Checker {
	return NewChecker(cfg,
		WithPython(py),
		WithPortProber(&fakePorts{}),
		WithPrinter(console.New(out, io.Discard, false, false)),
	)
}

func names(results []model.CheckResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Name)
	}
	return out
}

// TestRun_AllPresent verifies the full checklist passes in order and the
// installer is invoked exactly once with the manifest.
func TestRun_AllPresent(t *testing.T) {
	cfg := newProject(t)
	py := &fakePython{version: pyenv.Version{Major: 3, Minor: 11, Patch: 4}}
	var out bytes.Buffer

	results, err := newChecker(cfg, py, &out).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Order, names(results))
	assert.True(t, model.Passed(results))
	assert.Equal(t, 1, py.installs)
	assert.Equal(t, config.DefaultManifest, py.manifest)

	text := out.String()
	assert.Contains(t, text, "✅ Python version: 3.11.4")
	assert.Contains(t, text, "📦 Installing required packages...")
	assert.Contains(t, text, "Successfully installed flask")
	assert.Contains(t, text, "✅ Dependencies installed successfully")
	assert.Contains(t, text, "✅ Model file found")
	assert.Contains(t, text, "✅ Utility files found")
	assert.Contains(t, text, "✅ Template files found")
}

// TestRun_OldPython verifies an interpreter below the minimum is rejected
// before the installer runs.
func TestRun_OldPython(t *testing.T) {
	cfg := newProject(t)
	py := &fakePython{version: pyenv.Version{Major: 3, Minor: 6, Patch: 15}}
	var out bytes.Buffer

	results, err := newChecker(cfg, py, &out).Run(context.Background())
	require.Error(t, err)

	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Equal(t, model.ExitGeneralError, cliErr.Code)
	assert.True(t, cliErr.Reported, "failure line is already on the console")
	assert.Contains(t, err.Error(), "Python 3.7 or higher is required")
	assert.Contains(t, err.Error(), "3.6.15")

	assert.Equal(t, 0, py.installs, "installer must not run")
	assert.Equal(t, []string{CheckPythonVersion}, names(results))
	assert.Contains(t, out.String(), "❌ Error: Python 3.7 or higher is required")
}

// TestRun_VersionBoundary verifies the minimum itself is accepted.
func TestRun_VersionBoundary(t *testing.T) {
	tests := []struct {
		version pyenv.Version
		ok      bool
	}{
		{pyenv.Version{Major: 3, Minor: 7}, true},
		{pyenv.Version{Major: 3, Minor: 6, Patch: 99}, false},
		{pyenv.Version{Major: 2, Minor: 7, Patch: 18}, false},
		{pyenv.Version{Major: 4}, true},
	}

	for _, tt := range tests {
		t.Run(tt.version.String(), func(t *testing.T) {
			cfg := newProject(t)
			err := newChecker(cfg, &fakePython{version: tt.version}, &bytes.Buffer{}).
				CheckPythonVersion(context.Background())
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

// TestRun_InterpreterErrors covers a missing interpreter and a failing
// version probe.
func TestRun_InterpreterErrors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		cfg := newProject(t)
		c := NewChecker(cfg, WithPythonLookup(func() (Python, error) {
			return nil, errors.New("executable file not found in $PATH")
		}))
		_, err := c.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("probe fails", func(t *testing.T) {
		cfg := newProject(t)
		py := &fakePython{versionErr: errors.New("exit status 1")}
		_, err := newChecker(cfg, py, &bytes.Buffer{}).Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "could not determine Python version")
		assert.Equal(t, 0, py.installs)
	})
}

// TestRun_MissingManifest verifies a missing manifest aborts before the
// installer.
func TestRun_MissingManifest(t *testing.T) {
	cfg := newProject(t)
	removeFile(t, cfg, cfg.Manifest)
	py := &fakePython{version: pyenv.Version{Major: 3, Minor: 11}}
	var out bytes.Buffer

	results, err := newChecker(cfg, py, &out).Run(context.Background())
	require.Error(t, err)

	assert.Contains(t, err.Error(), "disease_requirements.txt not found")
	assert.Equal(t, 0, py.installs)
	assert.Equal(t, []string{CheckPythonVersion, CheckManifest}, names(results))
	assert.Equal(t, model.CheckFailed, results[1].Status)
	assert.Equal(t, cfg.Manifest, results[1].Path)
}

// TestRun_InstallFails verifies an installer failure stops the checklist
// before any file check.
func TestRun_InstallFails(t *testing.T) {
	cfg := newProject(t)
	// Remove the model too: a file check running would change the error.
	removeFile(t, cfg, cfg.ModelFile)
	py := &fakePython{
		version:    pyenv.Version{Major: 3, Minor: 11},
		installErr: errors.New("pip install -r disease_requirements.txt failed: exit status 1"),
	}
	var out bytes.Buffer

	results, err := newChecker(cfg, py, &out).Run(context.Background())
	require.Error(t, err)

	assert.Contains(t, err.Error(), "failed to install dependencies")
	assert.Contains(t, err.Error(), "exit status 1")
	assert.Equal(t, 1, py.installs)
	assert.Equal(t, []string{CheckPythonVersion, CheckManifest, CheckInstall}, names(results))
	assert.NotContains(t, out.String(), "Model file")
}

// TestRun_MissingFileNamed verifies every missing required file aborts the
// checklist with a message naming that file.
func TestRun_MissingFileNamed(t *testing.T) {
	base := config.Default("")
	tests := []struct {
		file    string
		check   string
		message string
	}{
		{base.ModelFile, CheckModel, "Model file not found at models/plant_disease_model.pth"},
		{"utils/model.py", CheckUtils, "Required file not found: utils/model.py"},
		{"utils/disease.py", CheckUtils, "Required file not found: utils/disease.py"},
		{"templates/index_disease.html", CheckTemplates, "Template file not found: templates/index_disease.html"},
		{"templates/disease.html", CheckTemplates, "Template file not found: templates/disease.html"},
		{"templates/disease_result_simple.html", CheckTemplates, "Template file not found: templates/disease_result_simple.html"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			cfg := newProject(t)
			removeFile(t, cfg, tt.file)
			var out bytes.Buffer

			results, err := newChecker(cfg, &fakePython{version: pyenv.Version{Major: 3, Minor: 11}}, &out).
				Run(context.Background())
			require.Error(t, err)

			assert.Contains(t, err.Error(), tt.file)
			assert.Contains(t, err.Error(), tt.message)

			last := results[len(results)-1]
			assert.Equal(t, tt.check, last.Name)
			assert.Equal(t, model.CheckFailed, last.Status)
			assert.Equal(t, tt.file, last.Path)
		})
	}
}

// TestCheckModelFile_Hint verifies the hint pointing at the models directory.
func TestCheckModelFile_Hint(t *testing.T) {
	cfg := newProject(t)
	removeFile(t, cfg, cfg.ModelFile)
	var out bytes.Buffer

	err := newChecker(cfg, &fakePython{}, &out).CheckModelFile()
	require.Error(t, err)
	assert.Contains(t, out.String(), "Please ensure the model file is in the models/ directory")
}

// TestRun_SkipInstall verifies --skip-install records a skipped entry and
// never calls the installer.
func TestRun_SkipInstall(t *testing.T) {
	cfg := newProject(t)
	cfg.SkipInstall = true
	py := &fakePython{version: pyenv.Version{Major: 3, Minor: 11}}
	var out bytes.Buffer

	results, err := newChecker(cfg, py, &out).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, py.installs)
	assert.Equal(t, model.CheckSkipped, results[2].Status)
	assert.Contains(t, out.String(), "Dependency installation skipped")
}

// TestRun_DockerRuntime verifies the host interpreter is never consulted
// when the application runs in a container.
func TestRun_DockerRuntime(t *testing.T) {
	cfg := newProject(t)
	cfg.Runtime = model.RuntimeDocker
	lookups := 0
	c := NewChecker(cfg,
		WithPythonLookup(func() (Python, error) {
			lookups++
			return nil, errors.New("no python on this host")
		}),
		WithPortProber(&fakePorts{}),
	)

	results, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, lookups)
	assert.Equal(t, model.CheckSkipped, results[0].Status)
	assert.Equal(t, model.CheckSkipped, results[2].Status)
	assert.True(t, model.Passed(results))
}

// TestCheckListenAddress covers busy ports and automatic selection.
func TestCheckListenAddress(t *testing.T) {
	t.Run("busy", func(t *testing.T) {
		cfg := newProject(t)
		c := NewChecker(cfg, WithPortProber(&fakePorts{busy: map[int]bool{5000: true}}))
		err := c.CheckListenAddress()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "0.0.0.0:5000 is already in use")
	})

	t.Run("free", func(t *testing.T) {
		cfg := newProject(t)
		c := NewChecker(cfg, WithPortProber(&fakePorts{}))
		assert.NoError(t, c.CheckListenAddress())
		assert.Equal(t, 5000, cfg.Port)
	})

	t.Run("automatic", func(t *testing.T) {
		cfg := newProject(t)
		cfg.Port = 0
		c := NewChecker(cfg, WithPortProber(&fakePorts{free: 5003}))
		require.NoError(t, c.CheckListenAddress())
		assert.Equal(t, 5003, cfg.Port, "selected port is written back to the config")
	})

	t.Run("automatic exhausted", func(t *testing.T) {
		cfg := newProject(t)
		cfg.Port = 0
		c := NewChecker(cfg, WithPortProber(&fakePorts{err: errors.New("no available tcp port")}))
		err := c.CheckListenAddress()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no free port")
	})
}

// TestResults_Copy verifies callers cannot mutate the recorded results.
func TestResults_Copy(t *testing.T) {
	cfg := newProject(t)
	c := newChecker(cfg, &fakePython{version: pyenv.Version{Major: 3, Minor: 11}}, &bytes.Buffer{})
	_, err := c.Run(context.Background())
	require.NoError(t, err)

	got := c.Results()
	got[0].Name = "mutated"
	assert.Equal(t, CheckPythonVersion, c.Results()[0].Name)
}
