// container.go builds and manages application containers.
//
// An application container runs a stock Python image with the project
// directory bind-mounted at ContainerWorkDir. Its command installs the
// requirements, writes the bootstrap program that imports the web
// application and then execs it, so the container lives exactly as long as
// the web server.
package docker

import (
	"context"
	"fmt"
	"net"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"

	"github.com/shinji-kodama/disease-launcher/internal/config"
	"github.com/shinji-kodama/disease-launcher/internal/model"
	"github.com/shinji-kodama/disease-launcher/internal/pyenv"
)

// ContainerWorkDir is where the project directory is mounted.
const ContainerWorkDir = "/app"

// Environment variables consumed by the container command.
const (
	envBootstrap = "DISEASE_BOOTSTRAP"
	envManifest  = "DISEASE_MANIFEST"
)

// containerBootstrapPath is where the bootstrap program is written inside
// the container. The debug reloader re-executes it, so it must be a file.
const containerBootstrapPath = "/tmp/disease_bootstrap.py"

// stopTimeoutSeconds is how long Docker waits after SIGTERM before killing
// the container.
const stopTimeoutSeconds = 10

// containerNamePrefix prefixes generated container names.
const containerNamePrefix = "disease-launcher-"

// ContainerName returns explicit if set, otherwise a generated name with a
// short random suffix.
func ContainerName(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return containerNamePrefix + uuid.NewString()[:8]
}

// BuildContainerConfig returns the create parameters for an application
// container serving cfg. It is a pure function so the result can be
// verified without a Docker daemon.
//
// The server inside the container always binds 0.0.0.0 on cfg.Port; the
// host side of the port mapping uses cfg.Host.
func BuildContainerConfig(cfg *config.Config, startedAt time.Time) (*container.Config, *container.HostConfig, error) {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, nil, fmt.Errorf("invalid port %d: a container needs a fixed host port", cfg.Port)
	}
	port, err := nat.NewPort("tcp", strconv.Itoa(cfg.Port))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid port %d: %w", cfg.Port, err)
	}

	manifest, err := containerPath(cfg, cfg.Manifest)
	if err != nil {
		return nil, nil, err
	}

	spec := pyenv.AppSpec{
		Module: cfg.AppModule,
		Object: cfg.AppObject,
		Host:   "0.0.0.0",
		Port:   cfg.Port,
		Debug:  cfg.Debug,
	}

	labels := BuildLabels(&model.AppInstance{
		BaseDir:   cfg.BaseDir,
		HostPort:  cfg.Port,
		Image:     cfg.Docker.Image,
		StartedAt: startedAt,
	})

	ccfg := &container.Config{
		Image:      cfg.Docker.Image,
		WorkingDir: ContainerWorkDir,
		Cmd:        []string{"sh", "-c", containerCommand(cfg.SkipInstall)},
		Env: []string{
			envBootstrap + "=" + pyenv.BootstrapProgram(spec),
			envManifest + "=" + manifest,
			"PYTHONUNBUFFERED=1",
		},
		Labels:       labels,
		ExposedPorts: nat.PortSet{port: struct{}{}},
	}

	hcfg := &container.HostConfig{
		Binds: []string{cfg.BaseDir + ":" + ContainerWorkDir},
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{
				HostIP:   bindHostIP(cfg.Host),
				HostPort: strconv.Itoa(cfg.Port),
			}},
		},
	}

	return ccfg, hcfg, nil
}

// containerCommand is the shell command run by the container. The program
// and manifest come from the environment so no quoting is needed.
func containerCommand(skipInstall bool) string {
	steps := make([]string, 0, 3)
	if !skipInstall {
		steps = append(steps, `pip install --no-cache-dir -r "$`+envManifest+`"`)
	}
	steps = append(steps,
		`printf '%s' "$`+envBootstrap+`" > `+containerBootstrapPath,
		"exec python "+containerBootstrapPath,
	)
	return strings.Join(steps, " && ")
}

// containerPath maps a project path to its location inside the container.
// Paths outside the project directory are not mounted and are rejected.
func containerPath(cfg *config.Config, p string) (string, error) {
	rel, err := filepath.Rel(cfg.BaseDir, cfg.Resolve(p))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the project directory %s and is not visible in the container", p, cfg.BaseDir)
	}
	return path.Join(ContainerWorkDir, filepath.ToSlash(rel)), nil
}

// bindHostIP returns the host IP for the port binding. Wildcard hosts bind
// every interface.
func bindHostIP(host string) string {
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		return ""
	}
	return host
}

// summaryToInstance converts a container listing entry to an AppInstance.
// Docker returns names with a leading "/", which is stripped.
func summaryToInstance(c container.Summary) (*model.AppInstance, error) {
	inst, err := ParseLabels(c.Labels)
	if err != nil {
		return nil, err
	}
	inst.ContainerID = c.ID
	if len(c.Names) > 0 {
		inst.ContainerName = strings.TrimPrefix(c.Names[0], "/")
	}
	inst.State = string(c.State)
	return inst, nil
}

// ListAppInstances returns every application container, running or not.
// A non-empty baseDir restricts the result to that project directory.
// Containers with unreadable labels are skipped.
func ListAppInstances(ctx context.Context, cli *Client, baseDir string) ([]model.AppInstance, error) {
	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: ManagedFilter(baseDir),
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "failed to list Docker containers", err)
	}

	result := make([]model.AppInstance, 0, len(containers))
	for _, c := range containers {
		inst, err := summaryToInstance(c)
		if err != nil {
			continue
		}
		result = append(result, *inst)
	}
	return result, nil
}

// SelectInstances returns the instances matching target by container name
// or ID prefix. An empty target selects every running instance.
func SelectInstances(instances []model.AppInstance, target string) []model.AppInstance {
	var out []model.AppInstance
	for _, inst := range instances {
		switch {
		case target == "":
			if inst.State == "running" {
				out = append(out, inst)
			}
		case inst.ContainerName == target, strings.HasPrefix(inst.ContainerID, target):
			out = append(out, inst)
		}
	}
	return out
}

// StopInstance stops a container, giving the web server stopTimeoutSeconds
// to exit after SIGTERM.
func StopInstance(ctx context.Context, cli *Client, containerID string) error {
	timeout := stopTimeoutSeconds
	err := cli.Inner().ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout})
	if err != nil {
		return model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to stop container %q", containerID),
			err,
		)
	}
	return nil
}

// RemoveInstance removes a container. With force a running container is
// killed first.
func RemoveInstance(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: force,
	})
	if err != nil {
		return model.WrapCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}
