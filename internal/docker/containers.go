package docker

import (
	"context"
	"fmt"
	"io"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog/log"
)

// Health is the engine-level health of a container, queried live on every
// call and never cached.
type Health string

const (
	// HealthAbsent means no container with that name exists.
	HealthAbsent Health = "absent"
	// HealthStopped means the container exists but is not running.
	HealthStopped Health = "stopped"
	// HealthStarting means the image healthcheck has not settled yet.
	HealthStarting Health = "starting"
	// HealthHealthy means the image healthcheck passes.
	HealthHealthy Health = "healthy"
	// HealthUnhealthy means the image healthcheck fails.
	HealthUnhealthy Health = "unhealthy"
	// HealthRunning means the container runs but defines no healthcheck;
	// the running process is the only positive signal available.
	HealthRunning Health = "running"
)

// Container is the subset of engine container state the orchestrator uses.
type Container struct {
	ID     string
	Name   string
	Image  string
	Status string
	Ports  []int // published host ports
	Labels map[string]string
}

func publishedPorts(ports []container.Port) []int {
	var out []int
	for _, p := range ports {
		if p.PublicPort > 0 {
			out = append(out, int(p.PublicPort))
		}
	}
	return out
}

// ListManaged lists every container carrying the managed label, running or
// not.
func (c *Client) ListManaged(ctx context.Context) ([]Container, error) {
	args := filters.NewArgs(filters.Arg("label", ManagedLabel+"=true"))
	containers, err := c.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("failed to list managed containers: %w", err)
	}

	var result []Container
	for _, ctr := range containers {
		name := ""
		if len(ctr.Names) > 0 {
			name = strings.TrimPrefix(ctr.Names[0], "/")
		}
		result = append(result, Container{
			ID:     ctr.ID,
			Name:   name,
			Image:  ctr.Image,
			Status: ctr.Status,
			Ports:  publishedPorts(ctr.Ports),
			Labels: ctr.Labels,
		})
	}
	return result, nil
}

// HealthStatus reports the engine-level health of the named container.
func (c *Client) HealthStatus(ctx context.Context, name string) (Health, error) {
	resp, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return HealthAbsent, nil
		}
		return HealthAbsent, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}

	return healthFromState(resp.State), nil
}

// healthFromState maps the engine's container state onto the coarser health
// signal the lifecycle controller acts on.
func healthFromState(state *container.State) Health {
	if state == nil || !state.Running {
		return HealthStopped
	}
	if state.Health == nil {
		return HealthRunning
	}
	switch state.Health.Status {
	case container.Starting:
		return HealthStarting
	case container.Healthy:
		return HealthHealthy
	case container.Unhealthy:
		return HealthUnhealthy
	default:
		return HealthRunning
	}
}

// RemoveContainer force-removes a container. A missing container is treated
// as already removed.
func (c *Client) RemoveContainer(ctx context.Context, nameOrID string) error {
	err := c.cli.ContainerRemove(ctx, nameOrID, container.RemoveOptions{Force: true})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			log.Debug().Str("container", nameOrID).Msg("Container not found, already removed")
			return nil
		}
		return fmt.Errorf("failed to remove container %s: %w", nameOrID, err)
	}

	log.Info().Str("container", nameOrID).Msg("Container removed")
	return nil
}

// ContainerLogs returns the log stream of a container.
func (c *Client) ContainerLogs(ctx context.Context, nameOrID string, follow bool, tail string) (io.ReadCloser, error) {
	logs, err := c.cli.ContainerLogs(ctx, nameOrID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     follow,
		Tail:       tail,
		Timestamps: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get logs for container %s: %w", nameOrID, err)
	}
	return logs, nil
}

// ImagePresent reports whether an image is available locally. It never
// pulls.
func (c *Client) ImagePresent(ctx context.Context, imageRef string) (bool, error) {
	_, err := c.cli.ImageInspect(ctx, imageRef)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect image %s: %w", imageRef, err)
	}
	return true, nil
}

// RunSpec describes a standalone container run straight from a local image.
type RunSpec struct {
	Name    string
	Image   string
	Port    int // published as host:container on the same number
	Network string
}

// RunContainer creates and starts a standalone container on the shared
// network with the managed label set.
func (c *Client) RunContainer(ctx context.Context, spec RunSpec) error {
	containerPort := nat.Port(fmt.Sprintf("%d/tcp", spec.Port))

	containerConfig := &container.Config{
		Image: spec.Image,
		ExposedPorts: nat.PortSet{
			containerPort: struct{}{},
		},
		Labels: map[string]string{
			ManagedLabel: "true",
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			containerPort: []nat.PortBinding{
				{HostIP: "0.0.0.0", HostPort: fmt.Sprintf("%d", spec.Port)},
			},
		},
	}

	var networkConfig *network.NetworkingConfig
	if spec.Network != "" {
		networkConfig = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				spec.Network: {},
			},
		}
	}

	resp, err := c.cli.ContainerCreate(ctx, containerConfig, hostConfig, networkConfig, nil, spec.Name)
	if err != nil {
		return fmt.Errorf("failed to create container %s: %w", spec.Name, err)
	}

	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %s: %w", spec.Name, err)
	}

	log.Info().Str("container", spec.Name).Str("image", spec.Image).Int("port", spec.Port).Msg("Container started")
	return nil
}
