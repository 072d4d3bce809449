package docker

import (
	"context"
	"fmt"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/network"
	"github.com/rs/zerolog/log"
)

// NetworkInfo describes a network and the containers attached to it.
type NetworkInfo struct {
	ID         string
	Name       string
	Driver     string
	Containers []AttachedContainer
}

// AttachedContainer is one endpoint of an inspected network.
type AttachedContainer struct {
	Name string
	IPv4 string
}

// NetworkExists checks whether a network with the given name exists.
func (c *Client) NetworkExists(ctx context.Context, name string) (bool, error) {
	_, err := c.cli.NetworkInspect(ctx, name, network.InspectOptions{})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect network %s: %w", name, err)
	}
	return true, nil
}

// CreateNetwork creates a bridge network carrying the managed label.
func (c *Client) CreateNetwork(ctx context.Context, name string) error {
	_, err := c.cli.NetworkCreate(ctx, name, network.CreateOptions{
		Driver: "bridge",
		Labels: map[string]string{
			ManagedLabel: "true",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create network %s: %w", name, err)
	}

	log.Info().Str("network", name).Msg("Network created")
	return nil
}

// RemoveNetwork deletes a network. A missing network is treated as already
// removed.
func (c *Client) RemoveNetwork(ctx context.Context, name string) error {
	err := c.cli.NetworkRemove(ctx, name)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			log.Debug().Str("network", name).Msg("Network not found, already removed")
			return nil
		}
		return fmt.Errorf("failed to remove network %s: %w", name, err)
	}

	log.Info().Str("network", name).Msg("Network removed")
	return nil
}

// InspectNetwork returns the network and its attached containers. Fails
// when the network does not exist.
func (c *Client) InspectNetwork(ctx context.Context, name string) (*NetworkInfo, error) {
	resp, err := c.cli.NetworkInspect(ctx, name, network.InspectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to inspect network %s: %w", name, err)
	}

	info := &NetworkInfo{
		ID:     resp.ID,
		Name:   resp.Name,
		Driver: resp.Driver,
	}
	for _, endpoint := range resp.Containers {
		info.Containers = append(info.Containers, AttachedContainer{
			Name: endpoint.Name,
			IPv4: endpoint.IPv4Address,
		})
	}
	return info, nil
}

// DisconnectFromNetwork detaches a container from a network.
func (c *Client) DisconnectFromNetwork(ctx context.Context, networkName, containerName string) error {
	err := c.cli.NetworkDisconnect(ctx, networkName, containerName, true)
	if err != nil {
		return fmt.Errorf("failed to disconnect %s from network %s: %w", containerName, networkName, err)
	}

	log.Debug().Str("container", containerName).Str("network", networkName).Msg("Container disconnected from network")
	return nil
}
