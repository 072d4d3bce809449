// Package orchestrator sequences network setup, port clearing, container
// startup and dual health verification for the workflow service fleet.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aipm-toolkit/aipmctl/internal/config"
	"github.com/aipm-toolkit/aipmctl/internal/docker"
	"github.com/aipm-toolkit/aipmctl/internal/ports"
	"github.com/aipm-toolkit/aipmctl/internal/registry"
)

var (
	// ErrUnknownService is returned when a name is not in the registry.
	ErrUnknownService = errors.New("unknown service")
	// ErrImageAbsent is returned when a standalone service's image is not
	// available locally. On a best-effort start the service is skipped.
	ErrImageAbsent = errors.New("image not present locally")
)

// Engine is the container engine surface the orchestrator depends on.
type Engine interface {
	Ping(ctx context.Context) error
	HealthStatus(ctx context.Context, name string) (docker.Health, error)
	ListManaged(ctx context.Context) ([]docker.Container, error)
	RemoveContainer(ctx context.Context, nameOrID string) error
	ImagePresent(ctx context.Context, imageRef string) (bool, error)
	RunContainer(ctx context.Context, spec docker.RunSpec) error
}

// Composer brings compose-defined services up and down.
type Composer interface {
	Up(ctx context.Context, file, project string) error
	Down(ctx context.Context, file, project string) error
}

// PortResolver clears port conflicts ahead of a start attempt.
type PortResolver interface {
	Resolve(ctx context.Context, port int) (ports.Status, error)
}

// NetworkManager guards the shared bridge network.
type NetworkManager interface {
	Name() string
	Ensure(ctx context.Context) error
	Remove(ctx context.Context) error
	Inspect(ctx context.Context) (*docker.NetworkInfo, error)
}

// Prober performs one application-level readiness check.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// HTTPProber probes with a plain GET; any 2xx/3xx counts as ready.
type HTTPProber struct {
	Client *http.Client
}

func NewHTTPProber() *HTTPProber {
	return &HTTPProber{Client: &http.Client{Timeout: 5 * time.Second}}
}

func (p *HTTPProber) Probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	return nil
}

// Orchestrator wires the registry, engine, compose executor, port resolver
// and network manager into the start/stop/status command semantics.
type Orchestrator struct {
	engine   Engine
	composer Composer
	resolver PortResolver
	netmgr   NetworkManager
	prober   Prober
	reg      *registry.Registry
	cfg      *config.Config
}

func New(engine Engine, composer Composer, resolver PortResolver, netmgr NetworkManager,
	prober Prober, reg *registry.Registry, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		composer: composer,
		resolver: resolver,
		netmgr:   netmgr,
		prober:   prober,
		reg:      reg,
		cfg:      cfg,
	}
}

// containerName is the engine-level name of a service's primary container.
// Compose files must set container_name to match.
func (o *Orchestrator) containerName(svc registry.Service) string {
	return o.cfg.Compose.ProjectPrefix + "-" + svc.Name
}

// projectName namespaces a service's compose project.
func (o *Orchestrator) projectName(svc registry.Service) string {
	return o.cfg.Compose.ProjectPrefix + "-" + svc.Name
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
