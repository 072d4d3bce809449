package ports

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aipm-toolkit/aipmctl/internal/config"
	"github.com/aipm-toolkit/aipmctl/internal/docker"
)

type fakeEngine struct {
	managed []docker.Container
	err     error
}

func (f *fakeEngine) ListManaged(context.Context) ([]docker.Container, error) {
	return f.managed, f.err
}

func newTestResolver(engine Engine, policy config.PortConflictPolicy, listening bool, pids []int) (*Resolver, *[]int) {
	killed := &[]int{}
	r := NewResolver(engine, policy)
	r.listening = func(int) bool { return listening }
	r.findPIDs = func(context.Context, int) ([]int, error) { return pids, nil }
	r.terminate = func(pid int) error {
		*killed = append(*killed, pid)
		return nil
	}
	return r, killed
}

func TestCheck_FreePort(t *testing.T) {
	r, _ := newTestResolver(&fakeEngine{}, config.PortConflictFail, false, nil)

	status, err := r.Check(context.Background(), 5678)
	require.NoError(t, err)
	assert.Equal(t, Free, status.State)
}

func TestCheck_ManagedContainerHoldsPort(t *testing.T) {
	engine := &fakeEngine{managed: []docker.Container{
		{Name: "aipm-n8n", Ports: []int{5678}},
	}}
	r, _ := newTestResolver(engine, config.PortConflictFail, true, nil)

	status, err := r.Check(context.Background(), 5678)
	require.NoError(t, err)
	assert.Equal(t, Managed, status.State)
	assert.Equal(t, "aipm-n8n", status.Container)
}

func TestCheck_ExternalProcess(t *testing.T) {
	r, _ := newTestResolver(&fakeEngine{}, config.PortConflictFail, true, []int{4242})

	status, err := r.Check(context.Background(), 5678)
	require.NoError(t, err)
	assert.Equal(t, External, status.State)
	assert.Equal(t, []int{4242}, status.PIDs)
}

func TestCheck_EngineErrorPropagates(t *testing.T) {
	engine := &fakeEngine{err: errors.New("daemon down")}
	r, _ := newTestResolver(engine, config.PortConflictFail, true, nil)

	_, err := r.Check(context.Background(), 5678)
	require.Error(t, err)
}

func TestResolve_FailPolicyNeverKills(t *testing.T) {
	r, killed := newTestResolver(&fakeEngine{}, config.PortConflictFail, true, []int{4242})

	status, err := r.Resolve(context.Background(), 5678)
	require.NoError(t, err)
	assert.Equal(t, External, status.State)
	assert.False(t, status.Cleared)
	assert.Empty(t, *killed, "fail policy must not terminate anything")
}

func TestResolve_KillPolicyTerminatesExternal(t *testing.T) {
	r, killed := newTestResolver(&fakeEngine{}, config.PortConflictKill, true, []int{4242, 4243})

	status, err := r.Resolve(context.Background(), 5678)
	require.NoError(t, err)
	assert.True(t, status.Cleared)
	assert.Equal(t, []int{4242, 4243}, *killed)
}

func TestResolve_KillPolicySparesManagedContainers(t *testing.T) {
	engine := &fakeEngine{managed: []docker.Container{
		{Name: "aipm-tooljet", Ports: []int{8082}},
	}}
	r, killed := newTestResolver(engine, config.PortConflictKill, true, nil)

	status, err := r.Resolve(context.Background(), 8082)
	require.NoError(t, err)
	assert.Equal(t, Managed, status.State)
	assert.Empty(t, *killed, "managed containers are resolved by teardown, never killed")
}

func TestResolve_TerminationFailureIsNotFatal(t *testing.T) {
	r, _ := newTestResolver(&fakeEngine{}, config.PortConflictKill, true, []int{4242})
	r.terminate = func(int) error { return errors.New("operation not permitted") }

	status, err := r.Resolve(context.Background(), 5678)
	require.NoError(t, err, "the caller proceeds and lets the bind error surface")
	assert.False(t, status.Cleared)
}

func TestDialProbe_DetectsListener(t *testing.T) {
	// Real probe against a real listener on an ephemeral port.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port

	assert.True(t, dialProbe(port))
	require.NoError(t, ln.Close())
	assert.False(t, dialProbe(port))
}
