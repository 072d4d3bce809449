package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aipm-toolkit/aipmctl/internal/compose"
	"github.com/aipm-toolkit/aipmctl/internal/config"
	"github.com/aipm-toolkit/aipmctl/internal/docker"
	"github.com/aipm-toolkit/aipmctl/internal/network"
	"github.com/aipm-toolkit/aipmctl/internal/orchestrator"
	"github.com/aipm-toolkit/aipmctl/internal/ports"
	"github.com/aipm-toolkit/aipmctl/internal/registry"
)

var (
	cfgFile string

	// Build metadata, injected by the linker via main.
	BuildVersion = "dev"
	BuildCommit  = "none"
	BuildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "aipmctl",
	Short: "aipmctl - local workflow stack orchestrator",
	Long: `aipmctl brings the toolkit's Docker-hosted workflow services (n8n,
ToolJet, Typebot, Langflow, Penpot) up and down on a shared network, with
health verification and bounded retries.`,
	SilenceUsage: true,
}

// Execute runs the CLI with build metadata from the linker.
func Execute(version, commit, date string) {
	if version != "" {
		BuildVersion = version
	}
	if commit != "" {
		BuildCommit = commit
	}
	if date != "" {
		BuildDate = date
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./aipmctl.yaml)")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("aipmctl")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if userConfigDir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(filepath.Join(userConfigDir, "aipmctl"))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(homeDir, ".aipmctl"))
		}
	}

	viper.SetEnvPrefix("AIPMCTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debug().Str("file", viper.ConfigFileUsed()).Msg("Using config file")
	} else if cfgFile != "" {
		// An explicitly named config file must exist.
		fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// app bundles everything a command needs.
type app struct {
	cfg      *config.Config
	reg      *registry.Registry
	client   *docker.Client
	netmgr   *network.Manager
	resolver *ports.Resolver
	orch     *orchestrator.Orchestrator
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(cfg)

	reg, err := registry.Load(cfg.ServicesPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load service registry: %w", err)
	}

	client, err := docker.NewClient()
	if err != nil {
		return nil, err
	}

	netmgr := network.NewManager(client, cfg.Network.Name)
	resolver := ports.NewResolver(client, cfg.Ports.OnConflict)
	composer := compose.NewExecutor(cfg.Compose.Dir)
	prober := orchestrator.NewHTTPProber()

	return &app{
		cfg:      cfg,
		reg:      reg,
		client:   client,
		netmgr:   netmgr,
		resolver: resolver,
		orch:     orchestrator.New(client, composer, resolver, netmgr, prober, reg, cfg),
	}, nil
}

func (a *app) close() {
	if a.client != nil {
		a.client.Close()
	}
}

// signalContext cancels on Ctrl-C or SIGTERM. An interrupted run leaves
// already-started containers in place; there is no compensating rollback.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// withRunLock serializes mutating orchestration runs against the same
// engine via an advisory file lock. Concurrent invocations queue rather
// than race over container and network names.
func withRunLock(fn func() error) error {
	lock := flock.New(filepath.Join(os.TempDir(), "aipmctl.lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	defer lock.Unlock()
	return fn()
}
