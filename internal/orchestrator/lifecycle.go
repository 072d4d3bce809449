package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aipm-toolkit/aipmctl/internal/docker"
	"github.com/aipm-toolkit/aipmctl/internal/ports"
	"github.com/aipm-toolkit/aipmctl/internal/registry"
)

// Result is the outcome of one service's start.
type Result struct {
	Service  registry.Service
	Attempts int
	URL      string
	Err      error
	Skipped  bool
}

func (r Result) Ready() bool {
	return r.Err == nil && !r.Skipped
}

// StartService runs the full start cycle for one service: port clearing,
// bring-up, engine health wait, HTTP readiness wait, with full teardown and
// backoff between failed attempts, bounded by the configured attempt count.
func (o *Orchestrator) StartService(ctx context.Context, svc registry.Service) Result {
	result := Result{Service: svc}

	for attempt := 1; attempt <= o.cfg.Retry.Attempts; attempt++ {
		result.Attempts = attempt

		err := o.startOnce(ctx, svc)
		if err == nil {
			result.URL = svc.URL()
			log.Info().Str("service", svc.Name).Str("url", result.URL).
				Int("attempt", attempt).Msg("Service ready")
			return result
		}

		if errors.Is(err, ErrImageAbsent) || errors.Is(err, context.Canceled) {
			result.Err = err
			return result
		}

		log.Warn().Err(err).Str("service", svc.Name).
			Int("attempt", attempt).Int("max_attempts", o.cfg.Retry.Attempts).
			Msg("Start attempt failed, tearing down")
		result.Err = err

		o.teardown(ctx, svc)

		if attempt < o.cfg.Retry.Attempts {
			if err := sleep(ctx, o.cfg.Retry.Backoff); err != nil {
				result.Err = err
				return result
			}
		}
	}

	log.Error().Str("service", svc.Name).Int("attempts", result.Attempts).
		Msg("Service failed to start, giving up")
	return result
}

// startOnce is a single start cycle without retries.
func (o *Orchestrator) startOnce(ctx context.Context, svc registry.Service) error {
	// Clear the port. A managed holder is removed here (our own stale
	// container); an external holder was already handled by policy.
	status, err := o.resolver.Resolve(ctx, svc.Port)
	if err != nil {
		return err
	}
	if status.State == ports.Managed && status.Container != o.containerName(svc) {
		if err := o.engine.RemoveContainer(ctx, status.Container); err != nil {
			return err
		}
	}

	// Bring containers up, bounded by the engine timeout.
	upCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout.Engine)
	defer cancel()
	if err := o.bringUp(upCtx, svc); err != nil {
		return err
	}

	// Engine-level health: what the image's own healthcheck observes.
	if err := o.waitEngineHealthy(ctx, svc); err != nil {
		return err
	}

	// Application-level readiness: the HTTP contract callers depend on.
	// A container can be "healthy" per the engine while the app inside is
	// still initializing, so this check is independent.
	return o.waitHTTPReady(ctx, svc)
}

func (o *Orchestrator) bringUp(ctx context.Context, svc registry.Service) error {
	if !svc.Standalone() {
		return o.composer.Up(ctx, svc.ComposeFile, o.projectName(svc))
	}

	present, err := o.engine.ImagePresent(ctx, svc.Image)
	if err != nil {
		return err
	}
	if !present {
		return fmt.Errorf("%w: %s", ErrImageAbsent, svc.Image)
	}

	// Replace any previous instance; a stale container would collide on
	// name and port.
	if err := o.engine.RemoveContainer(ctx, o.containerName(svc)); err != nil {
		return err
	}
	return o.engine.RunContainer(ctx, docker.RunSpec{
		Name:    o.containerName(svc),
		Image:   svc.Image,
		Port:    svc.Port,
		Network: o.netmgr.Name(),
	})
}

// waitEngineHealthy polls the engine health status until it settles or the
// engine timeout elapses.
func (o *Orchestrator) waitEngineHealthy(ctx context.Context, svc registry.Service) error {
	name := o.containerName(svc)
	deadline := time.Now().Add(o.cfg.Timeout.Engine)

	for {
		health, err := o.engine.HealthStatus(ctx, name)
		if err != nil {
			return err
		}

		switch health {
		case docker.HealthHealthy:
			return nil
		case docker.HealthRunning:
			// No healthcheck defined; a running process is the only
			// positive signal available.
			return nil
		case docker.HealthUnhealthy:
			return fmt.Errorf("container %s reported unhealthy", name)
		case docker.HealthAbsent, docker.HealthStopped:
			return fmt.Errorf("container %s is not running (%s)", name, health)
		case docker.HealthStarting:
			// keep polling
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("container %s still starting after %s", name, o.cfg.Timeout.Engine)
		}
		if err := sleep(ctx, o.cfg.Timeout.Poll); err != nil {
			return err
		}
	}
}

// waitHTTPReady polls the service's health endpoint until it answers or the
// HTTP window elapses. The window is deliberately shorter than, and
// independent of, the engine health wait.
func (o *Orchestrator) waitHTTPReady(ctx context.Context, svc registry.Service) error {
	url := svc.URL() + svc.HealthPath
	deadline := time.Now().Add(o.cfg.Timeout.HTTP)

	var lastErr error
	for {
		lastErr = o.prober.Probe(ctx, url)
		if lastErr == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("service %s not answering on %s after %s: %w",
				svc.Name, url, o.cfg.Timeout.HTTP, lastErr)
		}
		if err := sleep(ctx, o.cfg.Timeout.Poll); err != nil {
			return err
		}
	}
}

// teardown removes a service's containers completely, not just stops them,
// so a retry starts from a clean slate. Failures are logged, not returned:
// the retry's bring-up is the recovery path either way.
func (o *Orchestrator) teardown(ctx context.Context, svc registry.Service) {
	if svc.Standalone() {
		if err := o.engine.RemoveContainer(ctx, o.containerName(svc)); err != nil {
			log.Warn().Err(err).Str("service", svc.Name).Msg("Teardown failed")
		}
		return
	}
	if err := o.composer.Down(ctx, svc.ComposeFile, o.projectName(svc)); err != nil {
		log.Warn().Err(err).Str("service", svc.Name).Msg("Teardown failed")
	}
}
