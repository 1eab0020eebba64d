package docker

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/filters"

	"github.com/shinji-kodama/disease-launcher/internal/model"
)

// Label keys persisted on every application container. They share the
// "disease." prefix so they never collide with labels set by other tools.
const (
	LabelPrefix = "disease."

	// LabelManagedBy identifies containers started by disease-launcher.
	// Value: always ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelBaseDir is the absolute host path of the project directory
	// mounted into the container.
	LabelBaseDir = LabelPrefix + "base-dir"

	// LabelHostPort is the host port the web server is published on.
	LabelHostPort = LabelPrefix + "host-port"

	// LabelStartedAt is the RFC3339 start timestamp.
	LabelStartedAt = LabelPrefix + "started-at"

	// LabelImage is the Python image the container was created from.
	LabelImage = LabelPrefix + "image"
)

// ManagedByValue is the value of LabelManagedBy.
const ManagedByValue = "disease-launcher"

// BuildLabels constructs the label map for an application container.
// ContainerID, ContainerName and State are runtime properties and are not
// stored.
func BuildLabels(inst *model.AppInstance) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelBaseDir:   inst.BaseDir,
		LabelHostPort:  strconv.Itoa(inst.HostPort),
		LabelStartedAt: inst.StartedAt.UTC().Format(time.RFC3339),
		LabelImage:     inst.Image,
	}
}

// ParseLabels reconstructs an AppInstance from container labels. It is the
// inverse of BuildLabels. All missing labels are reported at once.
func ParseLabels(labels map[string]string) (*model.AppInstance, error) {
	requiredKeys := []string{
		LabelManagedBy,
		LabelBaseDir,
		LabelHostPort,
		LabelStartedAt,
		LabelImage,
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	hostPort, err := strconv.Atoi(labels[LabelHostPort])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelHostPort, err)
	}

	startedAt, err := time.Parse(time.RFC3339, labels[LabelStartedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelStartedAt, err)
	}

	return &model.AppInstance{
		BaseDir:   labels[LabelBaseDir],
		HostPort:  hostPort,
		Image:     labels[LabelImage],
		StartedAt: startedAt,
	}, nil
}

// ManagedFilter returns the Docker API filter matching application
// containers. A non-empty baseDir narrows it to one project directory.
func ManagedFilter(baseDir string) filters.Args {
	args := filters.NewArgs(
		filters.Arg("label", LabelManagedBy+"="+ManagedByValue),
	)
	if baseDir != "" {
		args.Add("label", LabelBaseDir+"="+baseDir)
	}
	return args
}
