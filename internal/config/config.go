package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// PortConflictPolicy decides what happens when an unrelated process holds a
// service's port.
type PortConflictPolicy string

const (
	// PortConflictFail reports the conflict and lets the start attempt
	// surface the bind error. Nothing is killed.
	PortConflictFail PortConflictPolicy = "fail"
	// PortConflictKill terminates the occupying process (SIGTERM, then
	// SIGKILL after a grace period).
	PortConflictKill PortConflictPolicy = "kill"
)

type Config struct {
	Network NetworkConfig
	Compose ComposeConfig
	Timeout TimeoutConfig
	Retry   RetryConfig
	Ports   PortsConfig
	Log     LogConfig
}

type NetworkConfig struct {
	// Name of the shared bridge network all services attach to. Treated
	// as a singleton: at most one network with this name exists.
	Name string
}

type ComposeConfig struct {
	// Dir holds the per-service compose files and the optional .env.
	Dir string
	// ProjectPrefix namespaces compose projects and container names so
	// managed containers are distinguishable from everything else.
	ProjectPrefix string
	// ServicesFile is an optional YAML overlay extending the built-in
	// service table.
	ServicesFile string
}

type TimeoutConfig struct {
	// Engine bounds compose up plus the engine-level health wait.
	Engine time.Duration
	// HTTP bounds the application-level readiness probe, independent of
	// the engine health status.
	HTTP time.Duration
	// Poll is the interval between health rechecks.
	Poll time.Duration
}

type RetryConfig struct {
	// Attempts is the total number of start cycles per service.
	Attempts int
	// Backoff is the pause between failed cycles.
	Backoff time.Duration
}

type PortsConfig struct {
	OnConflict PortConflictPolicy
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults() {
	viper.SetDefault("network.name", "aipm-network")
	viper.SetDefault("compose.dir", "workflows")
	viper.SetDefault("compose.project_prefix", "aipm")
	viper.SetDefault("compose.services_file", "services.yaml")
	viper.SetDefault("timeouts.engine", "120s")
	viper.SetDefault("timeouts.http", "30s")
	viper.SetDefault("timeouts.poll", "1s")
	viper.SetDefault("retry.attempts", 3)
	viper.SetDefault("retry.backoff", "5s")
	viper.SetDefault("ports.on_conflict", string(PortConflictFail))
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
}

// Load reads the configuration from viper (file, env, defaults) and
// validates it.
func Load() (*Config, error) {
	setDefaults()

	cfg := &Config{
		Network: NetworkConfig{
			Name: viper.GetString("network.name"),
		},
		Compose: ComposeConfig{
			Dir:           viper.GetString("compose.dir"),
			ProjectPrefix: viper.GetString("compose.project_prefix"),
			ServicesFile:  viper.GetString("compose.services_file"),
		},
		Timeout: TimeoutConfig{
			Engine: viper.GetDuration("timeouts.engine"),
			HTTP:   viper.GetDuration("timeouts.http"),
			Poll:   viper.GetDuration("timeouts.poll"),
		},
		Retry: RetryConfig{
			Attempts: viper.GetInt("retry.attempts"),
			Backoff:  viper.GetDuration("retry.backoff"),
		},
		Ports: PortsConfig{
			OnConflict: PortConflictPolicy(viper.GetString("ports.on_conflict")),
		},
		Log: LogConfig{
			Level:  viper.GetString("log.level"),
			Format: viper.GetString("log.format"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Network.Name == "" {
		return fmt.Errorf("network.name must not be empty")
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	if c.Timeout.Engine <= 0 || c.Timeout.HTTP <= 0 || c.Timeout.Poll <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	switch c.Ports.OnConflict {
	case PortConflictFail, PortConflictKill:
	default:
		return fmt.Errorf("ports.on_conflict must be %q or %q, got %q",
			PortConflictFail, PortConflictKill, c.Ports.OnConflict)
	}
	return nil
}

// ServicesPath resolves the service overlay file relative to the compose dir.
// Returns "" when no overlay is configured.
func (c *Config) ServicesPath() string {
	if c.Compose.ServicesFile == "" {
		return ""
	}
	if filepath.IsAbs(c.Compose.ServicesFile) {
		return c.Compose.ServicesFile
	}
	return filepath.Join(c.Compose.Dir, c.Compose.ServicesFile)
}

// ComposePath resolves a service compose file relative to the compose dir
// and checks it exists.
func (c *Config) ComposePath(file string) (string, error) {
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.Compose.Dir, file)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("compose file %s not found: %w", path, err)
	}
	return path, nil
}
