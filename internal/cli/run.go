// Package cli: run.go implements the launch performed by the root command
// and the configuration flags it shares with "check".
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/disease-launcher/internal/config"
	"github.com/shinji-kodama/disease-launcher/internal/docker"
	"github.com/shinji-kodama/disease-launcher/internal/launcher"
	"github.com/shinji-kodama/disease-launcher/internal/model"
	"github.com/shinji-kodama/disease-launcher/internal/preflight"
)

// runFlags holds the flags that override the loaded configuration. A flag
// only overrides the config when it was given on the command line.
type runFlags struct {
	python      string
	host        string
	port        int
	debug       bool
	skipInstall bool
	runtime     string
	image       string
	detach      bool
	name        string
}

// register adds the flags to cmd. launch adds the flags that only affect
// the application run.
func (f *runFlags) register(cmd *cobra.Command, launch bool) {
	fs := cmd.Flags()
	fs.StringVar(&f.python, "python", config.DefaultPython, "Python interpreter (name on PATH or path)")
	fs.StringVar(&f.host, "host", config.DefaultHost, "Address the web server listens on")
	fs.IntVar(&f.port, "port", config.DefaultPort, "Port the web server listens on (0 = first free port in 5000-5100)")
	fs.BoolVar(&f.skipInstall, "skip-install", false, "Do not run pip install before launching")
	fs.StringVar(&f.runtime, "runtime", string(model.RuntimeLocal), "Where to run the application: local, docker")
	fs.StringVar(&f.image, "image", config.DefaultImage, "Python image for the docker runtime")

	if launch {
		fs.BoolVar(&f.debug, "debug", true, "Run the server with debug mode and auto-reload")
		fs.BoolVar(&f.detach, "detach", false, "Docker runtime: return once the container is started")
		fs.StringVar(&f.name, "name", "", "Docker runtime: container name (default: generated)")
	}
}

// loadConfig loads the configuration for the --dir project, applies the
// flags that were set explicitly and validates the result.
func loadConfig(cmd *cobra.Command, f *runFlags) (*config.Config, error) {
	cfg, path, err := config.Load(baseDir, configPath)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to load configuration", err)
	}
	if path != "" {
		VerboseLog("Loaded config file %s", path)
	}

	fs := cmd.Flags()
	if fs.Changed("python") {
		cfg.Python = f.python
	}
	if fs.Changed("host") {
		cfg.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Port = f.port
	}
	if fs.Changed("skip-install") {
		cfg.SkipInstall = f.skipInstall
	}
	if fs.Changed("runtime") {
		kind, err := model.ParseRuntimeKind(f.runtime)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError, "invalid --runtime", err)
		}
		cfg.Runtime = kind
	}
	if fs.Changed("image") {
		cfg.Docker.Image = f.image
	}
	if fs.Changed("debug") {
		cfg.Debug = f.debug
	}
	if fs.Changed("detach") {
		cfg.Docker.Detach = f.detach
	}
	if fs.Changed("name") {
		cfg.Docker.ContainerName = f.name
	}

	if err := cfg.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "invalid configuration", err)
	}

	VerboseLog("Project directory: %s", cfg.BaseDir)
	VerboseLog("Runtime: %s, listen address: %s", cfg.Runtime, cfg.Address())
	return cfg, nil
}

// runLaunch checks the project and runs the application until it exits
// or ctx is cancelled.
func runLaunch(ctx context.Context, cmd *cobra.Command, f *runFlags) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	// The launch is interactive; --json only changes the error format.
	out := newPrinter(cmd, false)

	app, closeApp, err := newApp(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer closeApp()

	checker := preflight.NewChecker(cfg, preflight.WithPrinter(out))
	return launcher.New(cfg, checker, app, out).Launch(ctx)
}

// newApp returns the application runner for cfg.Runtime and a function
// releasing its resources.
func newApp(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (launcher.App, func(), error) {
	if cfg.Runtime != model.RuntimeDocker {
		return &launcher.LocalApp{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}, func() {}, nil
	}

	cli, err := connectDocker(ctx)
	if err != nil {
		return nil, nil, err
	}

	app := &docker.App{Client: cli, Out: newPrinter(cmd, false)}
	return app, func() { _ = cli.Close() }, nil
}
