package preflight

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/shinji-kodama/disease-launcher/internal/model"
)

// CheckPythonVersion verifies the interpreter meets the minimum version.
// Under the docker runtime the interpreter is the one in the image, so
// the check is skipped on the host.
func (c *Checker) CheckPythonVersion(ctx context.Context) error {
	if c.cfg.Runtime == model.RuntimeDocker {
		c.skip(CheckPythonVersion, "Python version is provided by image %s", c.cfg.Docker.Image)
		return nil
	}

	python, err := c.lookup()
	if err != nil {
		return c.fail(CheckPythonVersion, "", err, "Python interpreter %q not found", c.cfg.Python)
	}
	c.python = python

	minimum, err := c.cfg.MinVersion()
	if err != nil {
		return c.fail(CheckPythonVersion, "", err, "invalid minimum Python version %q", c.cfg.MinPython)
	}

	current, err := python.Version(ctx)
	if err != nil {
		return c.fail(CheckPythonVersion, "", err, "could not determine Python version")
	}
	c.out.Verbosef("interpreter %s reports version %s", c.cfg.Python, current)

	if !current.AtLeast(minimum) {
		return c.fail(CheckPythonVersion, "", nil,
			"Python %s or higher is required (current version: %s)", c.cfg.MinPython, current)
	}

	c.pass(CheckPythonVersion, "", "Python version: %s", current)
	return nil
}

// CheckManifest verifies the requirements file exists.
func (c *Checker) CheckManifest() error {
	if !exists(c.cfg.Resolve(c.cfg.Manifest)) {
		return c.fail(CheckManifest, c.cfg.Manifest, nil, "%s not found", c.cfg.Manifest)
	}
	c.pass(CheckManifest, c.cfg.Manifest, "Requirements file found: %s", c.cfg.Manifest)
	return nil
}

// InstallRequirements runs the package installer against the manifest.
// It is skipped with --skip-install, and under the docker runtime where
// the installation happens inside the container.
func (c *Checker) InstallRequirements(ctx context.Context) error {
	switch {
	case c.cfg.SkipInstall:
		c.skip(CheckInstall, "Dependency installation skipped")
		return nil
	case c.cfg.Runtime == model.RuntimeDocker:
		c.skip(CheckInstall, "Dependencies will be installed inside the container")
		return nil
	}

	if c.python == nil {
		python, err := c.lookup()
		if err != nil {
			return c.fail(CheckInstall, c.cfg.Manifest, err, "Python interpreter %q not found", c.cfg.Python)
		}
		c.python = python
	}

	c.out.Line("📦 Installing required packages...")
	if err := c.python.InstallRequirements(ctx, c.cfg.Manifest, c.out.Stdout(), c.out.Stderr()); err != nil {
		return c.fail(CheckInstall, c.cfg.Manifest, err, "failed to install dependencies from %s", c.cfg.Manifest)
	}

	c.pass(CheckInstall, c.cfg.Manifest, "Dependencies installed successfully")
	return nil
}

// CheckModelFile verifies the trained weights file exists.
func (c *Checker) CheckModelFile() error {
	if !exists(c.cfg.Resolve(c.cfg.ModelFile)) {
		err := c.fail(CheckModel, c.cfg.ModelFile, nil, "Model file not found at %s", c.cfg.ModelFile)
		c.out.Line("Please ensure the model file is in the %s/ directory", path.Dir(c.cfg.ModelFile))
		return err
	}
	c.pass(CheckModel, c.cfg.ModelFile, "Model file found")
	return nil
}

// CheckUtilFiles verifies every utility module exists, stopping at the
// first missing one.
func (c *Checker) CheckUtilFiles() error {
	for _, f := range c.cfg.UtilFiles {
		if !exists(c.cfg.Resolve(f)) {
			return c.fail(CheckUtils, f, nil, "Required file not found: %s", f)
		}
	}
	c.pass(CheckUtils, "", "Utility files found")
	return nil
}

// CheckTemplates verifies every template exists, stopping at the first
// missing one.
func (c *Checker) CheckTemplates() error {
	for _, f := range c.cfg.Templates {
		if !exists(c.cfg.Resolve(f)) {
			return c.fail(CheckTemplates, f, nil, "Template file not found: %s", f)
		}
	}
	c.pass(CheckTemplates, "", "Template files found")
	return nil
}

// CheckListenAddress verifies the server can bind its address. Port 0
// picks the first free port in 5000-5100 and stores it in the config.
func (c *Checker) CheckListenAddress() error {
	if c.cfg.Port == 0 {
		p, err := c.ports.FindAvailablePort(c.cfg.Host, autoPortStart, autoPortEnd)
		if err != nil {
			return c.fail(CheckListenAddress, "", err, "no free port on %s in %d-%d", c.cfg.Host, autoPortStart, autoPortEnd)
		}
		c.cfg.Port = p
		c.pass(CheckListenAddress, "", "Listen address %s selected", c.cfg.Address())
		return nil
	}

	if !c.ports.IsAddrAvailable(c.cfg.Host, c.cfg.Port) {
		return c.fail(CheckListenAddress, "", nil, "Address %s is already in use", c.cfg.Address())
	}
	c.pass(CheckListenAddress, "", "Listen address %s is free", c.cfg.Address())
	return nil
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
