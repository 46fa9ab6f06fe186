package config

import "time"

const (
	// DefaultRunnerNamePrefix is the registration name prefix for runner
	// containers when github.runners.name_prefix is unset.
	DefaultRunnerNamePrefix = "runner"

	// DefaultRunnerScope is the only supported runner registration scope.
	DefaultRunnerScope = "repo"

	// DefaultMinRunners and DefaultMaxRunners bound a machine's runner
	// count when the machine (and machine_defaults) leave them unset.
	DefaultMinRunners = 1
	DefaultMaxRunners = 16

	// DefaultIdleTimeout is the grace period before an empty dynamic
	// machine becomes eligible for decommissioning.
	DefaultIdleTimeout = time.Minute

	// DefaultSSHPort is used when a machine omits ssh.port.
	DefaultSSHPort = 22

	// DefaultInterval is the timer-triggered reconciliation cadence.
	DefaultInterval = 30 * time.Second

	// DefaultActionTimeout bounds one remote operation.
	DefaultActionTimeout = 2 * time.Minute

	// DefaultMaxActionRetries is the per-action attempt budget.
	DefaultMaxActionRetries = 3

	// DefaultInitialBackoff and DefaultMaxBackoff shape retry backoff.
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = time.Minute

	// DefaultGlobalMaxRunners caps the fleet-wide runner count when the
	// configuration does not set one.
	DefaultGlobalMaxRunners = 64

	// DefaultServerHost and DefaultServerPort locate the HTTP surface.
	DefaultServerHost = "localhost"
	DefaultServerPort = 8090
)

// GetDefaultConfig returns the default configuration. Loading starts from
// this value so an empty file yields a runnable (if useless) configuration
// that validation then rejects for having no machines.
func GetDefaultConfig() Config {
	return Config{
		LogLevel: "info",
		GitHub: GitHubConfig{
			Runners: RunnerConfig{
				NamePrefix: DefaultRunnerNamePrefix,
				Scope:      DefaultRunnerScope,
			},
		},
		Scaler: ScalerConfig{
			GlobalMinRunners: 0,
			GlobalMaxRunners: DefaultGlobalMaxRunners,
			MaxActionRetries: DefaultMaxActionRetries,
		},
		Server: ServerConfig{
			Host: DefaultServerHost,
			Port: DefaultServerPort,
		},
	}
}
