// Package network manages the single shared bridge network every workflow
// service attaches to.
package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/aipm-toolkit/aipmctl/internal/docker"
)

// ErrNetworkAbsent is returned by Inspect when the shared network does not
// exist.
var ErrNetworkAbsent = errors.New("shared network does not exist")

// Engine is the subset of the Docker client the manager needs.
type Engine interface {
	NetworkExists(ctx context.Context, name string) (bool, error)
	CreateNetwork(ctx context.Context, name string) error
	RemoveNetwork(ctx context.Context, name string) error
	InspectNetwork(ctx context.Context, name string) (*docker.NetworkInfo, error)
	DisconnectFromNetwork(ctx context.Context, networkName, containerName string) error
}

// Manager guards the singleton network invariant: at most one network with
// the reserved name exists at any time.
type Manager struct {
	engine Engine
	name   string
}

func NewManager(engine Engine, name string) *Manager {
	return &Manager{engine: engine, name: name}
}

// Name returns the reserved network name.
func (m *Manager) Name() string {
	return m.name
}

// Ensure idempotently guarantees the network exists. Creation failure is
// fatal to the calling orchestration step.
func (m *Manager) Ensure(ctx context.Context) error {
	exists, err := m.engine.NetworkExists(ctx, m.name)
	if err != nil {
		return fmt.Errorf("failed to check network %s: %w", m.name, err)
	}
	if exists {
		log.Debug().Str("network", m.name).Msg("Network already exists")
		return nil
	}
	return m.engine.CreateNetwork(ctx, m.name)
}

// Remove disconnects every attached container, then deletes the network.
// A missing network is success, not an error. Individual disconnect
// failures are logged and skipped.
func (m *Manager) Remove(ctx context.Context) error {
	exists, err := m.engine.NetworkExists(ctx, m.name)
	if err != nil {
		return fmt.Errorf("failed to check network %s: %w", m.name, err)
	}
	if !exists {
		return nil
	}

	info, err := m.engine.InspectNetwork(ctx, m.name)
	if err != nil {
		return fmt.Errorf("failed to inspect network %s: %w", m.name, err)
	}
	for _, ctr := range info.Containers {
		if err := m.engine.DisconnectFromNetwork(ctx, m.name, ctr.Name); err != nil {
			log.Warn().Err(err).Str("container", ctr.Name).Msg("Failed to disconnect container, skipping")
		}
	}

	return m.engine.RemoveNetwork(ctx, m.name)
}

// Inspect lists the containers attached to the network. Fails loudly when
// the network is absent.
func (m *Manager) Inspect(ctx context.Context) (*docker.NetworkInfo, error) {
	exists, err := m.engine.NetworkExists(ctx, m.name)
	if err != nil {
		return nil, fmt.Errorf("failed to check network %s: %w", m.name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNetworkAbsent, m.name)
	}
	return m.engine.InspectNetwork(ctx, m.name)
}
