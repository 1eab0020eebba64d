package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/shinji-kodama/disease-launcher/internal/config"
	"github.com/shinji-kodama/disease-launcher/internal/console"
	"github.com/shinji-kodama/disease-launcher/internal/model"
	"github.com/shinji-kodama/disease-launcher/internal/pyenv"
)

// cleanupTimeout bounds stop and remove calls made after the run context
// has been cancelled.
const cleanupTimeout = 30 * time.Second

// App runs the web application in a container. It satisfies
// launcher.App.
type App struct {
	Client *Client
	Out    *console.Printer

	// Now is the clock used for the started-at label. Defaults to time.Now.
	Now func() time.Time
}

// Run pulls the image if needed, creates and starts the container and,
// unless cfg.Docker.Detach is set, streams its logs until it exits or ctx
// is cancelled. On cancellation the container is stopped and removed and
// ctx.Err() is returned.
func (a *App) Run(ctx context.Context, cfg *config.Config) error {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}

	ccfg, hcfg, err := BuildContainerConfig(cfg, now())
	if err != nil {
		return err
	}

	if err := a.ensureImage(ctx, cfg.Docker.Image); err != nil {
		return err
	}

	name := ContainerName(cfg.Docker.ContainerName)
	created, err := a.Client.Inner().ContainerCreate(ctx, ccfg, hcfg, nil, nil, name)
	if err != nil {
		return fmt.Errorf("failed to create container %q: %w", name, err)
	}
	id := created.ID
	a.Out.Verbosef("created container %s (%s)", name, shortID(id))

	if err := a.Client.Inner().ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		a.cleanup(id, false)
		return fmt.Errorf("failed to start container %q: %w", name, err)
	}

	if cfg.Docker.Detach {
		a.Out.Success("Container %s (%s) started", name, shortID(id))
		return nil
	}

	return a.follow(ctx, id)
}

// follow streams the container's output and waits for it to exit.
func (a *App) follow(ctx context.Context, id string) error {
	statusCh, errCh := a.Client.Inner().ContainerWait(ctx, id, container.WaitConditionNotRunning)

	logs, err := a.Client.Inner().ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err == nil {
		go func() {
			defer logs.Close()
			_, _ = stdcopy.StdCopy(a.Out.Stdout(), a.Out.Stderr(), logs)
		}()
	} else {
		a.Out.Verbosef("log streaming unavailable: %v", err)
	}

	select {
	case <-ctx.Done():
		a.cleanup(id, true)
		return ctx.Err()

	case err := <-errCh:
		if ctx.Err() != nil {
			a.cleanup(id, true)
			return ctx.Err()
		}
		a.cleanup(id, false)
		return fmt.Errorf("failed waiting for container: %w", err)

	case status := <-statusCh:
		a.cleanup(id, false)
		return exitError(status)
	}
}

// exitError maps the container's exit status to the error the launcher
// reports.
func exitError(status container.WaitResponse) error {
	if status.Error != nil && status.Error.Message != "" {
		return fmt.Errorf("application container failed: %s", status.Error.Message)
	}
	switch status.StatusCode {
	case 0:
		return nil
	case pyenv.ImportFailureExitCode:
		return fmt.Errorf("%w: see container output above", model.ErrAppImport)
	default:
		return fmt.Errorf("application container exited with status %d", status.StatusCode)
	}
}

// cleanup removes the container, stopping it first when stop is set. It
// runs on a fresh context because the run context may already be done.
func (a *App) cleanup(id string, stop bool) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if stop {
		if err := StopInstance(ctx, a.Client, id); err != nil {
			a.Out.Verbosef("%v", err)
		}
	}
	if err := RemoveInstance(ctx, a.Client, id, true); err != nil {
		a.Out.Verbosef("%v", err)
	}
}

// ensureImage pulls ref unless it is already present locally.
func (a *App) ensureImage(ctx context.Context, ref string) error {
	_, err := a.Client.Inner().ImageInspect(ctx, ref)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to inspect image %q: %w", ref, err)
	}

	a.Out.Line("📥 Pulling image %s...", ref)
	rc, err := a.Client.Inner().ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %q: %w", ref, err)
	}
	defer rc.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, rc); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("failed to pull image %q: %w", ref, err)
	}
	return nil
}

func shortID(id string) string {
	return (&model.AppInstance{ContainerID: id}).ShortID()
}
