package pyenv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shinji-kodama/disease-launcher/internal/model"
)

// stopGracePeriod is how long Serve waits for the server to exit after
// sending it an interrupt before the process is killed.
const stopGracePeriod = 10 * time.Second

// versionProgram prints sys.version_info as "major.minor.micro". It is
// used instead of "python --version" because Python 2 writes that to
// stderr and appends "+" to development builds.
const versionProgram = `import sys; print("%d.%d.%d" % sys.version_info[:3])`

// Interpreter is a resolved Python executable bound to a project directory.
// Every command runs with the project directory as its working directory.
type Interpreter struct {
	// Path is the absolute path of the executable.
	Path string

	// Dir is the project base directory.
	Dir string
}

// Find resolves name to an executable. Bare names ("python3") are looked
// up on PATH; names containing a path separator are resolved relative to
// dir when they are not absolute.
func Find(name, dir string) (*Interpreter, error) {
	candidate := name
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(dir, candidate)
		}
	}

	path, err := exec.LookPath(candidate)
	if err != nil {
		return nil, fmt.Errorf("python interpreter %q not found: %w", name, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve interpreter path %q: %w", path, err)
	}

	return &Interpreter{Path: abs, Dir: dir}, nil
}

// Version returns the interpreter's version.
func (i *Interpreter) Version(ctx context.Context) (Version, error) {
	out, err := i.output(ctx, "-c", versionProgram)
	if err != nil {
		return Version{}, err
	}
	return ParseVersion(out)
}

// InstallRequirements runs "python -m pip install -r manifest" in the
// project directory, streaming pip's output to stdout and stderr.
func (i *Interpreter) InstallRequirements(ctx context.Context, manifest string, stdout, stderr io.Writer) error {
	// #nosec G204: the executable is the configured interpreter and the
	// manifest path comes from the launcher configuration.
	cmd := exec.CommandContext(ctx, i.Path, "-m", "pip", "install", "-r", manifest)
	cmd.Dir = i.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pip install -r %s failed: %w", manifest, err)
	}
	return nil
}

// Serve imports the application object described by spec and runs its
// server until it exits or ctx is cancelled.
//
// On cancellation the server's process group receives an interrupt and,
// after stopGracePeriod, is killed; anything left in the group is killed
// before Serve returns ctx.Err(). An import
// failure returns an error wrapping model.ErrAppImport with the last line
// the bootstrap wrote to stderr.
func (i *Interpreter) Serve(ctx context.Context, spec AppSpec, stdout, stderr io.Writer) error {
	script, err := os.CreateTemp("", "disease-launcher-bootstrap-*.py")
	if err != nil {
		return fmt.Errorf("failed to create bootstrap program: %w", err)
	}
	defer func() { _ = os.Remove(script.Name()) }()

	if _, err := script.WriteString(BootstrapProgram(spec)); err != nil {
		_ = script.Close()
		return fmt.Errorf("failed to write bootstrap program: %w", err)
	}
	if err := script.Close(); err != nil {
		return fmt.Errorf("failed to write bootstrap program: %w", err)
	}

	tail := &tailBuffer{limit: 4096}

	// #nosec G204: see InstallRequirements.
	cmd := exec.CommandContext(ctx, i.Path, script.Name())
	cmd.Dir = i.Dir
	cmd.Env = append(os.Environ(), "PYTHONUNBUFFERED=1")
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, tail)

	// Give the server and its reloader child a chance to shut down
	// cleanly, the same way a Ctrl+C in the terminal would.
	startInProcessGroup(cmd)
	cmd.Cancel = func() error {
		if err := interruptProcessGroup(cmd.Process); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
	cmd.WaitDelay = stopGracePeriod

	err = cmd.Run()
	if ctx.Err() != nil {
		// The reloader child may outlive the leader and keep the port.
		_ = killProcessGroup(cmd.Process)
		return ctx.Err()
	}
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == ImportFailureExitCode {
		detail := tail.LastLine()
		if detail == "" {
			detail = fmt.Sprintf("cannot import %s from %s", spec.Object, spec.Module)
		}
		return fmt.Errorf("%w: %s", model.ErrAppImport, detail)
	}
	return fmt.Errorf("application server exited: %w", err)
}

// output runs the interpreter with args and returns its trimmed stdout.
// stderr is folded into the error on failure.
func (i *Interpreter) output(ctx context.Context, args ...string) (string, error) {
	// #nosec G204: see InstallRequirements.
	cmd := exec.CommandContext(ctx, i.Path, args...)
	cmd.Dir = i.Dir

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s %s failed: %s: %w", filepath.Base(i.Path), strings.Join(args, " "), msg, err)
		}
		return "", fmt.Errorf("%s %s failed: %w", filepath.Base(i.Path), strings.Join(args, " "), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

// LastLine returns the last non-empty line written.
func (t *tailBuffer) LastLine() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	lines := bytes.Split(bytes.TrimRight(t.buf, "\r\n"), []byte("\n"))
	for j := len(lines) - 1; j >= 0; j-- {
		if line := strings.TrimSpace(string(lines[j])); line != "" {
			return line
		}
	}
	return ""
}
