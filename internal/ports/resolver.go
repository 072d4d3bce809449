// Package ports detects and resolves conflicts on the host ports the
// workflow services publish.
package ports

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aipm-toolkit/aipmctl/internal/config"
	"github.com/aipm-toolkit/aipmctl/internal/docker"
)

// State classifies who holds a port.
type State int

const (
	// Free means nothing is listening.
	Free State = iota
	// Managed means one of our own containers publishes the port; the
	// lifecycle controller resolves that through its teardown path.
	Managed
	// External means an unrelated process is listening.
	External
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Managed:
		return "managed"
	case External:
		return "external"
	}
	return "unknown"
}

// Status is the outcome of a port check or resolution.
type Status struct {
	Port      int
	State     State
	Container string // managed container holding the port, when State == Managed
	PIDs      []int  // external listeners, when State == External
	Cleared   bool   // external listener terminated under the kill policy
}

// Engine is the container lookup surface the resolver needs.
type Engine interface {
	ListManaged(ctx context.Context) ([]docker.Container, error)
}

// Resolver classifies port occupancy and applies the configured conflict
// policy. Probing, PID lookup and termination are injectable for tests.
type Resolver struct {
	engine Engine
	policy config.PortConflictPolicy

	listening func(port int) bool
	findPIDs  func(ctx context.Context, port int) ([]int, error)
	terminate func(pid int) error
}

func NewResolver(engine Engine, policy config.PortConflictPolicy) *Resolver {
	return &Resolver{
		engine:    engine,
		policy:    policy,
		listening: dialProbe,
		findPIDs:  lsofPIDs,
		terminate: terminateProcess,
	}
}

// Check determines who, if anyone, is listening on the port. It never
// mutates anything.
func (r *Resolver) Check(ctx context.Context, port int) (Status, error) {
	status := Status{Port: port, State: Free}
	if !r.listening(port) {
		return status, nil
	}

	managed, err := r.engine.ListManaged(ctx)
	if err != nil {
		return status, fmt.Errorf("failed to list managed containers: %w", err)
	}
	for _, ctr := range managed {
		for _, p := range ctr.Ports {
			if p == port {
				status.State = Managed
				status.Container = ctr.Name
				return status, nil
			}
		}
	}

	status.State = External
	pids, err := r.findPIDs(ctx, port)
	if err != nil {
		// The PID is diagnostic only; the conflict stands either way.
		log.Debug().Err(err).Int("port", port).Msg("Could not identify the listening process")
	}
	status.PIDs = pids
	return status, nil
}

// Resolve applies the conflict policy. Managed conflicts are left to the
// lifecycle controller's teardown path. External conflicts are terminated
// only under the kill policy; under the fail policy (the default) they are
// reported and the caller proceeds, letting the engine's bind error be the
// clearer diagnostic.
func (r *Resolver) Resolve(ctx context.Context, port int) (Status, error) {
	status, err := r.Check(ctx, port)
	if err != nil {
		return status, err
	}

	switch status.State {
	case Free:
		return status, nil

	case Managed:
		log.Debug().Int("port", port).Str("container", status.Container).
			Msg("Port held by a managed container, deferring to teardown")
		return status, nil

	case External:
		if r.policy != config.PortConflictKill {
			log.Warn().Int("port", port).Ints("pids", status.PIDs).
				Msg("Port held by an unrelated process, not killing (ports.on_conflict=fail)")
			return status, nil
		}
		cleared := true
		for _, pid := range status.PIDs {
			if err := r.terminate(pid); err != nil {
				log.Warn().Err(err).Int("pid", pid).Int("port", port).
					Msg("Failed to terminate process, start attempt will surface the bind error")
				cleared = false
			}
		}
		status.Cleared = cleared && len(status.PIDs) > 0
		return status, nil
	}

	return status, nil
}

// dialProbe reports whether something accepts TCP connections on the port.
func dialProbe(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 250*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// lsofPIDs finds the PIDs listening on a TCP port.
func lsofPIDs(ctx context.Context, port int) ([]int, error) {
	out, err := exec.CommandContext(ctx, "lsof", "-ti", fmt.Sprintf("tcp:%d", port), "-sTCP:LISTEN").Output()
	if err != nil {
		return nil, fmt.Errorf("lsof failed for port %d: %w", port, err)
	}

	var pids []int
	for _, line := range strings.Fields(strings.TrimSpace(string(out))) {
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// terminateProcess sends SIGTERM, waits a grace period, then SIGKILLs if
// the process is still alive.
func terminateProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("SIGTERM to pid %d failed: %w", pid, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := proc.Signal(syscall.Signal(0)); err != nil {
			return nil // gone
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := proc.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("SIGKILL to pid %d failed: %w", pid, err)
	}
	return nil
}
