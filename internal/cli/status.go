// Package cli: status.go implements the "disease-launcher status" command.
//
// The status command lists application containers started with the docker
// runtime by querying Docker for the "disease.managed-by=disease-launcher"
// label. By default only containers of the --dir project are shown.
package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/disease-launcher/internal/docker"
	"github.com/shinji-kodama/disease-launcher/internal/model"
)

// NewStatusCommand creates the "status" cobra command.
func NewStatusCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List application containers started with the docker runtime",
		Long: `List application containers started with --runtime docker.

Each container is shown with its name, state, URL, start time and project
directory.

Examples:
  disease-launcher status
  disease-launcher status --all --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd.OutOrStdout(), all)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Show containers of every project directory")
	return cmd
}

// projectFilter returns the base directory containers are filtered by,
// or "" when every project is wanted.
func projectFilter(all bool) (string, error) {
	if all {
		return "", nil
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError,
			fmt.Sprintf("failed to resolve project directory %q", baseDir), err)
	}
	return abs, nil
}

// connectDocker creates a Docker client and verifies the daemon responds.
func connectDocker(ctx context.Context) (*docker.Client, error) {
	cli, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx); err != nil {
		_ = cli.Close()
		return nil, err
	}
	VerboseLog("Connected to Docker daemon")
	return cli, nil
}

// listInstances lists the managed containers sorted by name.
func listInstances(ctx context.Context, cli *docker.Client, all bool) ([]model.AppInstance, error) {
	project, err := projectFilter(all)
	if err != nil {
		return nil, err
	}

	instances, err := docker.ListAppInstances(ctx, cli, project)
	if err != nil {
		return nil, err
	}
	VerboseLog("Found %d application containers", len(instances))

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].ContainerName < instances[j].ContainerName
	})
	return instances, nil
}

func runStatus(ctx context.Context, w io.Writer, all bool) error {
	cli, err := connectDocker(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	instances, err := listInstances(ctx, cli, all)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return writeJSON(w, statusReport{Containers: instances})
	}
	writeStatusTable(w, instances)
	return nil
}

// statusReport is the JSON output of the status command.
type statusReport struct {
	Containers []model.AppInstance `json:"containers"`
}

// writeStatusTable writes the instances as a text table:
//
//	NAME                        STATE     URL                     STARTED           PROJECT
//	disease-launcher-1a2b3c4d   running   http://localhost:5000   2026-10-19 08:00  /srv/crop
func writeStatusTable(w io.Writer, instances []model.AppInstance) {
	if len(instances) == 0 {
		fmt.Fprintln(w, "No application containers found.")
		return
	}

	fmt.Fprintf(w, "%-28s %-9s %-23s %-17s %s\n", "NAME", "STATE", "URL", "STARTED", "PROJECT")
	for _, inst := range instances {
		fmt.Fprintf(w, "%-28s %-9s %-23s %-17s %s\n",
			inst.ContainerName,
			inst.State,
			FormatURL(inst.HostPort),
			inst.StartedAt.Local().Format("2006-01-02 15:04"),
			inst.BaseDir,
		)
	}
}

// FormatURL returns the browser URL for a published port, or "-" when no
// port is known.
func FormatURL(hostPort int) string {
	if hostPort <= 0 {
		return "-"
	}
	return fmt.Sprintf("http://localhost:%d", hostPort)
}

// FormatUptime returns how long an instance has been running, rounded to
// seconds.
func FormatUptime(since, now time.Time) string {
	if since.IsZero() || now.Before(since) {
		return "-"
	}
	return now.Sub(since).Truncate(time.Second).String()
}
