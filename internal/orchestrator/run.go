package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/aipm-toolkit/aipmctl/internal/docker"
	"github.com/aipm-toolkit/aipmctl/internal/registry"
)

// Summary is the outcome of a multi-service run. One service exhausting its
// retries never aborts its siblings; both sets are reported together.
type Summary struct {
	Ready   []Result
	Failed  []Result
	Skipped []Result
}

// Ok reports whether every attempted service came up.
func (s *Summary) Ok() bool {
	return len(s.Failed) == 0
}

func (s *Summary) add(result Result) {
	switch {
	case result.Skipped:
		s.Skipped = append(s.Skipped, result)
	case result.Err != nil:
		s.Failed = append(s.Failed, result)
	default:
		s.Ready = append(s.Ready, result)
	}
}

// setup verifies the engine is reachable and the shared network exists.
// Failures here are fatal: nothing downstream can succeed without them.
func (o *Orchestrator) setup(ctx context.Context) error {
	if err := o.engine.Ping(ctx); err != nil {
		return fmt.Errorf("container engine unreachable: %w", err)
	}
	return o.netmgr.Ensure(ctx)
}

// StartEssential starts the essential tier, plus a best-effort attempt at
// standalone services of other tiers whose image is already local.
func (o *Orchestrator) StartEssential(ctx context.Context) (*Summary, error) {
	if err := o.setup(ctx); err != nil {
		return nil, err
	}

	services := o.reg.ByTier(registry.TierEssential)
	for _, svc := range o.reg.All() {
		if svc.Tier != registry.TierEssential && svc.Standalone() {
			services = append(services, svc)
		}
	}
	return o.startMany(ctx, services, true), nil
}

// StartAll starts every known service, essential tier first.
func (o *Orchestrator) StartAll(ctx context.Context) (*Summary, error) {
	if err := o.setup(ctx); err != nil {
		return nil, err
	}
	return o.startMany(ctx, o.reg.All(), true), nil
}

// StartOne starts a single named service regardless of tier. A standalone
// service with no local image is an explicit error here, not a skip.
func (o *Orchestrator) StartOne(ctx context.Context, name string) (*Summary, error) {
	svc, ok := o.reg.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s (known: %v)", ErrUnknownService, name, o.reg.Names())
	}
	if err := o.setup(ctx); err != nil {
		return nil, err
	}
	return o.startMany(ctx, []registry.Service{svc}, false), nil
}

// startMany starts services sequentially in the given order. bestEffort
// turns a standalone service's missing image into a silent skip.
func (o *Orchestrator) startMany(ctx context.Context, services []registry.Service, bestEffort bool) *Summary {
	summary := &Summary{}
	for _, svc := range services {
		if ctx.Err() != nil {
			break
		}

		result := o.StartService(ctx, svc)
		if bestEffort && errors.Is(result.Err, ErrImageAbsent) {
			log.Debug().Str("service", svc.Name).Msg("Image not present locally, skipping")
			result.Err = nil
			result.Skipped = true
		}
		summary.add(result)
	}
	return summary
}

// Stop tears down every known service and any leftover managed container,
// regardless of current state. Idempotent: stopping a stopped fleet
// succeeds.
func (o *Orchestrator) Stop(ctx context.Context) error {
	if err := o.engine.Ping(ctx); err != nil {
		return fmt.Errorf("container engine unreachable: %w", err)
	}

	for _, svc := range o.reg.All() {
		o.teardown(ctx, svc)
	}

	// Sweep anything carrying our label that the per-service teardown
	// missed (renamed services, removed registry entries).
	leftovers, err := o.engine.ListManaged(ctx)
	if err != nil {
		return err
	}
	for _, ctr := range leftovers {
		if err := o.engine.RemoveContainer(ctx, ctr.ID); err != nil {
			log.Warn().Err(err).Str("container", ctr.Name).Msg("Failed to remove leftover container")
		}
	}
	return nil
}

// Restart is stop, a fixed pause, then a fresh essential-tier start.
func (o *Orchestrator) Restart(ctx context.Context) (*Summary, error) {
	if err := o.Stop(ctx); err != nil {
		return nil, err
	}
	if err := sleep(ctx, o.cfg.Retry.Backoff); err != nil {
		return nil, err
	}
	return o.StartEssential(ctx)
}

// Cleanup is stop plus removal of the shared network: full teardown to bare
// state. Idempotent.
func (o *Orchestrator) Cleanup(ctx context.Context) error {
	if err := o.Stop(ctx); err != nil {
		return err
	}
	return o.netmgr.Remove(ctx)
}

// ServiceStatus is one row of the status report.
type ServiceStatus struct {
	Service          registry.Service
	ContainerPresent bool
	Health           docker.Health
}

// StatusReport is the read-only state of the fleet.
type StatusReport struct {
	NetworkPresent bool
	NetworkName    string
	Services       []ServiceStatus
}

// Status reports network presence, container presence and engine health for
// every known service without mutating anything.
func (o *Orchestrator) Status(ctx context.Context) (*StatusReport, error) {
	if err := o.engine.Ping(ctx); err != nil {
		return nil, fmt.Errorf("container engine unreachable: %w", err)
	}

	report := &StatusReport{NetworkName: o.netmgr.Name()}
	if _, err := o.netmgr.Inspect(ctx); err == nil {
		report.NetworkPresent = true
	}

	for _, svc := range o.reg.All() {
		health, err := o.engine.HealthStatus(ctx, o.containerName(svc))
		if err != nil {
			return nil, err
		}
		report.Services = append(report.Services, ServiceStatus{
			Service:          svc,
			ContainerPresent: health != docker.HealthAbsent,
			Health:           health,
		})
	}
	return report, nil
}
