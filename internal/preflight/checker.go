package preflight

import (
	"context"
	"io"

	"github.com/shinji-kodama/disease-launcher/internal/config"
	"github.com/shinji-kodama/disease-launcher/internal/console"
	"github.com/shinji-kodama/disease-launcher/internal/model"
	"github.com/shinji-kodama/disease-launcher/internal/port"
	"github.com/shinji-kodama/disease-launcher/internal/pyenv"
)

// Check names, in execution order.
const (
	CheckPythonVersion = "python-version"
	CheckManifest      = "manifest"
	CheckInstall       = "install"
	CheckModel         = "model"
	CheckUtils         = "utils"
	CheckTemplates     = "templates"
	CheckListenAddress = "listen-address"
)

// Order lists the check names in the order Run executes them.
var Order = []string{
	CheckPythonVersion,
	CheckManifest,
	CheckInstall,
	CheckModel,
	CheckUtils,
	CheckTemplates,
	CheckListenAddress,
}

// Automatic port selection range used when the configured port is 0.
const (
	autoPortStart = 5000
	autoPortEnd   = 5100
)

// Python is the part of *pyenv.Interpreter the checklist uses.
type Python interface {
	Version(ctx context.Context) (pyenv.Version, error)
	InstallRequirements(ctx context.Context, manifest string, stdout, stderr io.Writer) error
}

// PortProber is the part of *port.Scanner the checklist uses.
type PortProber interface {
	IsAddrAvailable(host string, port int) bool
	FindAvailablePort(host string, startPort, endPort int) (int, error)
}

// Checker runs the startup checklist against one configuration.
//
// The listen-address check may rewrite cfg.Port when it is 0, so the
// launcher must read the port from the same *config.Config afterwards.
type Checker struct {
	cfg     *config.Config
	lookup  func() (Python, error)
	python  Python
	ports   PortProber
	out     *console.Printer
	results []model.CheckResult
}

// Option configures a Checker.
type Option func(*Checker)

// WithPythonLookup replaces the interpreter lookup. The default resolves
// cfg.Python with pyenv.Find.
func WithPythonLookup(lookup func() (Python, error)) Option {
	return func(c *Checker) { c.lookup = lookup }
}

// WithPython uses p as the interpreter.
func WithPython(p Python) Option {
	return WithPythonLookup(func() (Python, error) { return p, nil })
}

// WithPortProber replaces the port scanner.
func WithPortProber(p PortProber) Option {
	return func(c *Checker) { c.ports = p }
}

// WithPrinter sets the console output. Without it the checklist is silent.
func WithPrinter(p *console.Printer) Option {
	return func(c *Checker) { c.out = p }
}

// NewChecker creates a Checker for cfg.
func NewChecker(cfg *config.Config, opts ...Option) *Checker {
	c := &Checker{
		cfg:   cfg,
		ports: port.NewScanner(),
	}
	c.lookup = func() (Python, error) {
		interp, err := pyenv.Find(cfg.Python, cfg.BaseDir)
		if err != nil {
			return nil, err
		}
		return interp, nil
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the checklist in order and stops at the first failure.
// It returns the results recorded so far and the failing check's error.
func (c *Checker) Run(ctx context.Context) ([]model.CheckResult, error) {
	c.results = nil

	steps := []func(context.Context) error{
		c.CheckPythonVersion,
		func(context.Context) error { return c.CheckManifest() },
		c.InstallRequirements,
		func(context.Context) error { return c.CheckModelFile() },
		func(context.Context) error { return c.CheckUtilFiles() },
		func(context.Context) error { return c.CheckTemplates() },
		func(context.Context) error { return c.CheckListenAddress() },
	}

	for _, step := range steps {
		if err := step(ctx); err != nil {
			return c.Results(), err
		}
	}
	return c.Results(), nil
}

// Results returns a copy of the results recorded by the last Run.
func (c *Checker) Results() []model.CheckResult {
	out := make([]model.CheckResult, len(c.results))
	copy(out, c.results)
	return out
}

func (c *Checker) pass(name, path, format string, args ...any) {
	c.out.Success(format, args...)
	c.record(name, model.CheckPassed, path, format, args...)
}

func (c *Checker) skip(name, format string, args ...any) {
	c.out.Skipped(format, args...)
	c.record(name, model.CheckSkipped, "", format, args...)
}

// fail prints the failure line, records it and returns the CLIError the
// launcher exits with.
func (c *Checker) fail(name, path string, cause error, format string, args ...any) error {
	c.out.Failure("Error: "+format, args...)
	r := c.record(name, model.CheckFailed, path, format, args...)
	return model.WrapCLIError(model.ExitGeneralError, r.Message, cause).MarkReported()
}

func (c *Checker) record(name string, status model.CheckStatus, path, format string, args ...any) model.CheckResult {
	r := model.CheckResult{
		Name:    name,
		Status:  status,
		Message: sprintf(format, args...),
		Path:    path,
	}
	c.results = append(c.results, r)
	return r
}
