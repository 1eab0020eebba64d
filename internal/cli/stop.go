// Package cli: stop.go implements the "disease-launcher stop" command.
//
// The stop command stops application containers started with
// "--runtime docker --detach". Without a name it stops every running
// container of the --dir project. With --remove the containers are also
// removed.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/disease-launcher/internal/docker"
	"github.com/shinji-kodama/disease-launcher/internal/model"
)

// stopFlags holds the flag values for the stop command.
type stopFlags struct {
	remove bool
	all    bool
}

// NewStopCommand creates the "stop" cobra command.
func NewStopCommand() *cobra.Command {
	flags := &stopFlags{}

	cmd := &cobra.Command{
		Use:   "stop [name|id]",
		Short: "Stop application containers",
		Long: `Stop application containers started with the docker runtime.

Without an argument every running container of the project directory is
stopped. A container name or ID prefix selects a single container.

Examples:
  disease-launcher stop
  disease-launcher stop disease-launcher-1a2b3c4d --remove`,

		Args: cobra.MaximumNArgs(1),

		RunE: func(cmd *cobra.Command, args []string) error {
			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			return runStop(cmd.Context(), cmd.OutOrStdout(), target, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.remove, "remove", false, "Remove the containers after stopping them")
	cmd.Flags().BoolVar(&flags.all, "all", false, "Consider containers of every project directory")
	return cmd
}

// stopResult is the JSON output of the stop command.
type stopResult struct {
	Action     string   `json:"action"`
	Containers []string `json:"containers"`
}

func runStop(ctx context.Context, w io.Writer, target string, flags *stopFlags) error {
	cli, err := connectDocker(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	// A named target is looked up across projects so that a name copied
	// from "status --all" works from any directory.
	instances, err := listInstances(ctx, cli, flags.all || target != "")
	if err != nil {
		return err
	}

	selected := docker.SelectInstances(instances, target)
	if len(selected) == 0 {
		if target != "" {
			return model.NewCLIError(model.ExitGeneralError,
				fmt.Sprintf("no application container named %q", target))
		}
		return model.NewCLIError(model.ExitGeneralError, "no running application containers found")
	}

	result := stopResult{Action: "stopped", Containers: make([]string, 0, len(selected))}
	verb := "Stopped"
	if flags.remove {
		result.Action = "removed"
		verb = "Removed"
	}

	now := time.Now()
	for _, inst := range selected {
		if inst.State == "running" {
			VerboseLog("Stopping container %s (%s)...", inst.ContainerName, inst.ShortID())
			if err := docker.StopInstance(ctx, cli, inst.ContainerID); err != nil {
				return err
			}
		}
		if flags.remove {
			VerboseLog("Removing container %s...", inst.ContainerName)
			if err := docker.RemoveInstance(ctx, cli, inst.ContainerID, false); err != nil {
				return err
			}
		}
		result.Containers = append(result.Containers, inst.ContainerName)

		if !IsJSONOutput() {
			fmt.Fprintf(w, "✅ %s %s (port %d, up %s)\n",
				verb, inst.ContainerName, inst.HostPort, FormatUptime(inst.StartedAt, now))
		}
	}

	if IsJSONOutput() {
		return writeJSON(w, result)
	}
	return nil
}

