package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "aipm-network", cfg.Network.Name)
	assert.Equal(t, "workflows", cfg.Compose.Dir)
	assert.Equal(t, "aipm", cfg.Compose.ProjectPrefix)
	assert.Equal(t, 120*time.Second, cfg.Timeout.Engine)
	assert.Equal(t, 30*time.Second, cfg.Timeout.HTTP)
	assert.Equal(t, time.Second, cfg.Timeout.Poll)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 5*time.Second, cfg.Retry.Backoff)
	assert.Equal(t, PortConflictFail, cfg.Ports.OnConflict)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromFile(t *testing.T) {
	configContent := `
network:
  name: workbench-net
compose:
  dir: /opt/aipm/workflows
  project_prefix: wb
timeouts:
  engine: 60s
  http: 10s
retry:
  attempts: 5
  backoff: 2s
ports:
  on_conflict: kill
log:
  level: debug
`
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "aipmctl.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	viper.Reset()
	viper.SetConfigFile(configFile)
	require.NoError(t, viper.ReadInConfig())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "workbench-net", cfg.Network.Name)
	assert.Equal(t, "/opt/aipm/workflows", cfg.Compose.Dir)
	assert.Equal(t, "wb", cfg.Compose.ProjectPrefix)
	assert.Equal(t, 60*time.Second, cfg.Timeout.Engine)
	assert.Equal(t, 10*time.Second, cfg.Timeout.HTTP)
	assert.Equal(t, 5, cfg.Retry.Attempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.Backoff)
	assert.Equal(t, PortConflictKill, cfg.Ports.OnConflict)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, time.Second, cfg.Timeout.Poll)
}

func TestLoad_InvalidConflictPolicy(t *testing.T) {
	viper.Reset()
	viper.Set("ports.on_conflict", "shrug")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ports.on_conflict")
}

func TestLoad_InvalidRetryAttempts(t *testing.T) {
	viper.Reset()
	viper.Set("retry.attempts", 0)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry.attempts")
}

func TestServicesPath(t *testing.T) {
	cfg := &Config{Compose: ComposeConfig{Dir: "/opt/workflows", ServicesFile: "services.yaml"}}
	assert.Equal(t, filepath.Join("/opt/workflows", "services.yaml"), cfg.ServicesPath())

	cfg.Compose.ServicesFile = "/etc/aipm/services.yaml"
	assert.Equal(t, "/etc/aipm/services.yaml", cfg.ServicesPath())

	cfg.Compose.ServicesFile = ""
	assert.Empty(t, cfg.ServicesPath())
}

func TestComposePath(t *testing.T) {
	tempDir := t.TempDir()
	file := filepath.Join(tempDir, "docker-compose.n8n.yml")
	require.NoError(t, os.WriteFile(file, []byte("services: {}\n"), 0644))

	cfg := &Config{Compose: ComposeConfig{Dir: tempDir}}

	path, err := cfg.ComposePath("docker-compose.n8n.yml")
	require.NoError(t, err)
	assert.Equal(t, file, path)

	_, err = cfg.ComposePath("docker-compose.missing.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
