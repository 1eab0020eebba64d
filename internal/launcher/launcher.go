package launcher

import (
	"context"
	"errors"

	"github.com/shinji-kodama/disease-launcher/internal/config"
	"github.com/shinji-kodama/disease-launcher/internal/console"
	"github.com/shinji-kodama/disease-launcher/internal/model"
)

// Title is printed at the top of every launch.
const Title = "🌱 Crop Disease Detection System"

// App runs the web application until it exits or ctx is cancelled.
// cfg is passed at run time because the checklist may pick the port.
type App interface {
	Run(ctx context.Context, cfg *config.Config) error
}

// Checklist is the startup checklist; *preflight.Checker satisfies it.
type Checklist interface {
	Run(ctx context.Context) ([]model.CheckResult, error)
}

// Launcher runs the checklist and then the application.
type Launcher struct {
	cfg    *config.Config
	checks Checklist
	app    App
	out    *console.Printer
}

// New creates a Launcher.
func New(cfg *config.Config, checks Checklist, app App, out *console.Printer) *Launcher {
	return &Launcher{cfg: cfg, checks: checks, app: app, out: out}
}

// Launch runs the checklist and, if it passes, the application.
// A nil return means exit status 0.
func (l *Launcher) Launch(ctx context.Context) error {
	l.out.Banner(Title)

	// An interrupt during pip install still counts as a user stop, whether
	// or not the installer reported it as a failure.
	if _, err := l.checks.Run(ctx); err != nil {
		if ctx.Err() != nil {
			l.stopped()
			return nil
		}
		return err
	}
	if ctx.Err() != nil {
		l.stopped()
		return nil
	}

	l.out.Blank()
	l.out.Line("🚀 Starting Crop Disease Detection System...")
	l.out.Line("📱 Open your browser and go to: %s", l.cfg.BrowserURL())
	if l.cfg.Runtime == model.RuntimeDocker && l.cfg.Docker.Detach {
		l.out.Line("⏹️  Run 'disease-launcher stop' to stop the server")
	} else {
		l.out.Line("⏹️  Press Ctrl+C to stop the server")
	}
	l.out.Rule()

	err := l.app.Run(ctx, l.cfg)
	switch {
	case ctx.Err() != nil:
		l.stopped()
		return nil
	case err == nil:
		return nil
	case errors.Is(err, model.ErrAppImport):
		l.out.Failure("Error importing app: %v", err)
		return model.WrapCLIError(model.ExitGeneralError, "Error importing app", err).MarkReported()
	default:
		l.out.Failure("Error running app: %v", err)
		return model.WrapCLIError(model.ExitGeneralError, "Error running app", err).MarkReported()
	}
}

func (l *Launcher) stopped() {
	l.out.Blank()
	l.out.Line("👋 Server stopped by user")
}
