package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_TierPartition(t *testing.T) {
	reg := Default()

	essential := reg.ByTier(TierEssential)
	require.Len(t, essential, 2)
	assert.Equal(t, "n8n", essential[0].Name)
	assert.Equal(t, "tooljet", essential[1].Name)

	advanced := reg.ByTier(TierAdvanced)
	require.Len(t, advanced, 2)

	optional := reg.ByTier(TierOptional)
	require.Len(t, optional, 1)
	assert.Equal(t, "penpot", optional[0].Name)
}

func TestDefault_AllOrderedByTier(t *testing.T) {
	all := Default().All()

	prev := TierEssential
	for _, svc := range all {
		assert.GreaterOrEqual(t, int(svc.Tier), int(prev),
			"service %s out of tier order", svc.Name)
		prev = svc.Tier
	}
	// Essential services come first regardless of table position.
	assert.Equal(t, "n8n", all[0].Name)
}

func TestGet(t *testing.T) {
	reg := Default()

	svc, ok := reg.Get("tooljet")
	require.True(t, ok)
	assert.Equal(t, 8082, svc.Port)
	assert.Equal(t, "/api/health", svc.HealthPath)
	assert.False(t, svc.Standalone())

	_, ok = reg.Get("nope")
	assert.False(t, ok)
}

func TestStandaloneService(t *testing.T) {
	svc, ok := Default().Get("langflow")
	require.True(t, ok)
	assert.True(t, svc.Standalone())
	assert.Equal(t, "langflowai/langflow", svc.Image)
	assert.Empty(t, svc.ComposeFile)
}

func TestServiceURL(t *testing.T) {
	svc := Service{Name: "n8n", Port: 5678}
	assert.Equal(t, "http://localhost:5678", svc.URL())
}

func TestLoad_MissingOverlayUsesDefaults(t *testing.T) {
	reg, err := Load(filepath.Join(t.TempDir(), "services.yaml"))
	require.NoError(t, err)
	assert.Len(t, reg.All(), len(Default().All()))
}

func TestLoad_OverlayReplacesAndAppends(t *testing.T) {
	overlay := `
services:
  - name: n8n
    compose_file: docker-compose.n8n.yml
    port: 15678
    health_path: /healthz
    tier: essential
  - name: nocodb
    compose_file: docker-compose.nocodb.yml
    port: 8084
    health_path: /api/v1/health
    tier: optional
`
	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte(overlay), 0644))

	reg, err := Load(path)
	require.NoError(t, err)

	n8n, ok := reg.Get("n8n")
	require.True(t, ok)
	assert.Equal(t, 15678, n8n.Port, "overlay should replace the built-in entry")

	nocodb, ok := reg.Get("nocodb")
	require.True(t, ok)
	assert.Equal(t, TierOptional, nocodb.Tier)
	assert.Len(t, reg.All(), len(Default().All())+1)
}

func TestLoad_BadOverlayTier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services:\n  - name: x\n    port: 1\n    tier: mega\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tier")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		services []Service
		wantErr  string
	}{
		{
			name: "duplicate names",
			services: []Service{
				{Name: "a", ComposeFile: "a.yml", Port: 1000, Tier: TierEssential},
				{Name: "a", ComposeFile: "b.yml", Port: 1001, Tier: TierEssential},
			},
			wantErr: "duplicate service name",
		},
		{
			name: "duplicate ports",
			services: []Service{
				{Name: "a", ComposeFile: "a.yml", Port: 1000},
				{Name: "b", ComposeFile: "b.yml", Port: 1000},
			},
			wantErr: "already used",
		},
		{
			name:     "port out of range",
			services: []Service{{Name: "a", ComposeFile: "a.yml", Port: 70000}},
			wantErr:  "invalid port",
		},
		{
			name:     "no compose file and no image",
			services: []Service{{Name: "a", Port: 1000}},
			wantErr:  "compose_file or an image",
		},
		{
			name:     "compose file and image together",
			services: []Service{{Name: "a", ComposeFile: "a.yml", Image: "img", Port: 1000}},
			wantErr:  "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.services)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseTier(t *testing.T) {
	for _, name := range []string{"essential", "advanced", "optional"} {
		tier, err := ParseTier(name)
		require.NoError(t, err)
		assert.Equal(t, name, tier.String())
	}
	_, err := ParseTier("critical")
	assert.Error(t, err)
}
