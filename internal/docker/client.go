// Package docker wraps the engine API client with the narrow surface the
// orchestrator needs: container lookup and removal, engine health status,
// standalone container runs, and shared-network management.
package docker

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
)

// ManagedLabel marks every container and network this tool owns.
const ManagedLabel = "aipm.managed"

// Client is a thin wrapper around the Docker API client.
type Client struct {
	cli *client.Client
}

// NewClient creates a Docker client from the environment (DOCKER_HOST and
// friends) with API version negotiation.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return &Client{cli: cli}, nil
}

// Ping checks that the engine daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.cli.Ping(ctx); err != nil {
		return fmt.Errorf("Docker ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.cli.Close()
}
