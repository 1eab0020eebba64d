package launcher

import (
	"context"
	"io"

	"github.com/shinji-kodama/disease-launcher/internal/config"
	"github.com/shinji-kodama/disease-launcher/internal/pyenv"
)

// LocalApp runs the application with the host interpreter.
type LocalApp struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run resolves cfg.Python and serves cfg.AppModule.cfg.AppObject on
// cfg.Host:cfg.Port from the base directory.
func (a *LocalApp) Run(ctx context.Context, cfg *config.Config) error {
	interp, err := pyenv.Find(cfg.Python, cfg.BaseDir)
	if err != nil {
		return err
	}
	return interp.Serve(ctx, AppSpec(cfg), a.Stdout, a.Stderr)
}

// AppSpec builds the bootstrap parameters from cfg.
func AppSpec(cfg *config.Config) pyenv.AppSpec {
	return pyenv.AppSpec{
		Module: cfg.AppModule,
		Object: cfg.AppObject,
		Host:   cfg.Host,
		Port:   cfg.Port,
		Debug:  cfg.Debug,
	}
}
