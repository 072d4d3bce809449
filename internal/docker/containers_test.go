package docker

import (
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
)

func TestHealthFromState(t *testing.T) {
	tests := []struct {
		name  string
		state *container.State
		want  Health
	}{
		{
			name:  "nil state",
			state: nil,
			want:  HealthStopped,
		},
		{
			name:  "exited container",
			state: &container.State{Running: false, Status: "exited"},
			want:  HealthStopped,
		},
		{
			name:  "running without healthcheck",
			state: &container.State{Running: true},
			want:  HealthRunning,
		},
		{
			name:  "healthcheck starting",
			state: &container.State{Running: true, Health: &container.Health{Status: container.Starting}},
			want:  HealthStarting,
		},
		{
			name:  "healthcheck healthy",
			state: &container.State{Running: true, Health: &container.Health{Status: container.Healthy}},
			want:  HealthHealthy,
		},
		{
			name:  "healthcheck unhealthy",
			state: &container.State{Running: true, Health: &container.Health{Status: container.Unhealthy}},
			want:  HealthUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, healthFromState(tt.state))
		})
	}
}

func TestPublishedPorts(t *testing.T) {
	ports := publishedPorts([]container.Port{
		{PrivatePort: 5678, PublicPort: 5678},
		{PrivatePort: 9229}, // not published
		{PrivatePort: 80, PublicPort: 8082},
	})
	assert.Equal(t, []int{5678, 8082}, ports)
}
