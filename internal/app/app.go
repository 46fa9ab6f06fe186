package app

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"ghascaler/internal/config"
	"ghascaler/internal/executor"
	"ghascaler/internal/fleet"
	"ghascaler/internal/github"
	"ghascaler/internal/plan"
	"ghascaler/internal/provision"
	"ghascaler/internal/scaler"
	"ghascaler/internal/server"
	"ghascaler/internal/sshexec"
	"ghascaler/pkg/logging"
)

// Options control the bootstrap.
type Options struct {
	// ConfigPath overrides the default configuration file location.
	ConfigPath string

	// Debug forces debug-level logging regardless of the configured level.
	Debug bool
}

// Application holds the assembled components.
type Application struct {
	cfg    *config.Config
	scaler *scaler.Scaler
	server *server.Server
}

// NewApplication performs the bootstrap sequence: logging, configuration,
// then component assembly. It fails on configuration errors; everything
// past that point is runtime behavior.
func NewApplication(opts Options) (*Application, error) {
	// Logging comes up at the default level before the configuration is
	// read, so loader output is not lost; once the file is parsed the
	// logger is re-initialized with the configured level.
	bootLevel := logging.LevelInfo
	if opts.Debug {
		bootLevel = logging.LevelDebug
	}
	logging.Init(bootLevel, os.Stdout)

	path := opts.ConfigPath
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("resolving default config path: %w", err)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := logging.ParseLevel(cfg.LogLevel)
	if opts.Debug {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stdout)

	logging.Info("Bootstrap", "Loaded configuration from %s (%d machines, provisioning enabled: %t)",
		path, len(cfg.Machines), cfg.Provisioning.Enabled)
	logging.Debug("Bootstrap", "GitHub configuration: %s", cfg.GitHub)
	logging.Debug("Bootstrap", "Server configuration: %s", cfg.Server)

	source, err := github.NewClient(cfg.GitHub)
	if err != nil {
		return nil, fmt.Errorf("building GitHub client: %w", err)
	}

	tracker := fleet.NewTracker(cfg.Machines, cfg.Scaler.MaxActionRetries)
	remote := sshexec.NewClient(cfg.GitHub)
	provider := newProvider(cfg.Provisioning)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := scaler.NewMetrics(registry)

	exec := executor.New(tracker, remote, provider, metrics, executor.Config{
		ActionTimeout:     cfg.Scaler.ActionTimeoutDuration(),
		MaxRetries:        cfg.Scaler.MaxActionRetries,
		InitialBackoff:    cfg.Scaler.InitialBackoffDuration(),
		MaxBackoff:        cfg.Scaler.MaxBackoffDuration(),
		ProvisionTemplate: cfg.Provisioning.Template,
		ProvisionedBounds: provisionedBounds(&cfg),
	})

	sc := scaler.New(cfg.Scaler, source, tracker, exec, metrics, plan.Policy{
		ProvisioningEnabled: cfg.Provisioning.Enabled,
	})
	srv := server.New(cfg.Server, tracker, sc, registry, cfg.GitHub.Runners.NamePrefix)

	return &Application{cfg: &cfg, scaler: sc, server: srv}, nil
}

// Config returns the loaded configuration, for the check command.
func (a *Application) Config() *config.Config {
	return a.cfg
}

// Run drives the loop and the HTTP server until ctx is cancelled or one
// of them fails; the failure of either tears down the other.
func (a *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.scaler.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return a.server.Run(gctx)
	})
	return g.Wait()
}

// newProvider selects the provisioning provider. Until a cloud backend
// ships, enabled provisioning still resolves to Disabled and fails every
// action loudly rather than silently.
func newProvider(cfg config.ProvisioningConfig) provision.Provider {
	return provision.Disabled{}
}

// provisionedBounds derives the runner bounds applied to dynamically
// provisioned machines from the machine defaults.
func provisionedBounds(cfg *config.Config) config.RunnerBounds {
	if cfg.Defaults != nil && cfg.Defaults.Runners != nil {
		return *cfg.Defaults.Runners
	}
	return config.RunnerBounds{}
}
