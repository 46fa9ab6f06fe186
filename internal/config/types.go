package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration structure for ghascaler.
type Config struct {
	LogLevel     string             `yaml:"log_level"`
	GitHub       GitHubConfig       `yaml:"github"`
	Scaler       ScalerConfig       `yaml:"scaler"`
	Server       ServerConfig       `yaml:"server"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
	Defaults     *MachineDefaults   `yaml:"machine_defaults"`
	Machines     []MachineConfig    `yaml:"machines"`
}

// GitHubConfig describes how to reach the GitHub Actions API and how
// runner registrations are named and scoped.
type GitHubConfig struct {
	PersonalAccessToken string       `yaml:"personal_access_token"`
	APIEndpoint         string       `yaml:"api_endpoint,omitempty"`
	Runners             RunnerConfig `yaml:"runners"`
}

// String redacts the personal access token. Configuration values are
// routinely logged at startup; the token must never appear in full.
func (c GitHubConfig) String() string {
	token := "[REDACTED]"
	if len(c.PersonalAccessToken) >= 8 {
		token = c.PersonalAccessToken[:8] + "..."
	}
	return fmt.Sprintf("GitHubConfig{personal_access_token: %s, runners: %+v}", token, c.Runners)
}

// RunnerConfig controls how runner containers register against GitHub.
type RunnerConfig struct {
	NamePrefix string `yaml:"name_prefix"`
	Scope      string `yaml:"scope"`
	RepoURL    string `yaml:"repo_url"`
}

// ScalerConfig holds the reconciliation policy knobs. Durations are
// configured as strings ("30s", "2m") and validated at load time; the
// typed accessors below assume a validated configuration.
type ScalerConfig struct {
	// Interval between timer-triggered reconciliation cycles.
	Interval string `yaml:"interval"`

	// GlobalMinRunners and GlobalMaxRunners clamp the demand planner output.
	GlobalMinRunners int `yaml:"global_min_runners"`
	GlobalMaxRunners int `yaml:"global_max_runners"`

	// ActionTimeout bounds a single remote operation (SSH command, cloud
	// API call). A call exceeding it is aborted and counts as a failure.
	ActionTimeout string `yaml:"action_timeout"`

	// MaxActionRetries is the attempt budget per action before the target
	// entity is transitioned to its error state.
	MaxActionRetries int `yaml:"max_action_retries"`

	// InitialBackoff and MaxBackoff shape the exponential retry backoff.
	InitialBackoff string `yaml:"initial_backoff"`
	MaxBackoff     string `yaml:"max_backoff"`
}

// IntervalDuration returns the parsed reconciliation interval.
func (c ScalerConfig) IntervalDuration() time.Duration {
	return parseDurationOr(c.Interval, DefaultInterval)
}

// ActionTimeoutDuration returns the parsed per-action timeout.
func (c ScalerConfig) ActionTimeoutDuration() time.Duration {
	return parseDurationOr(c.ActionTimeout, DefaultActionTimeout)
}

// InitialBackoffDuration returns the parsed initial retry backoff.
func (c ScalerConfig) InitialBackoffDuration() time.Duration {
	return parseDurationOr(c.InitialBackoff, DefaultInitialBackoff)
}

// MaxBackoffDuration returns the parsed maximum retry backoff.
func (c ScalerConfig) MaxBackoffDuration() time.Duration {
	return parseDurationOr(c.MaxBackoff, DefaultMaxBackoff)
}

// parseDurationOr parses s, falling back to def for empty or (post-
// validation unreachable) malformed values.
func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// ServerConfig configures the HTTP surface (status API, metrics, webhook).
type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// String redacts the webhook secret.
func (c ServerConfig) String() string {
	secret := "None"
	if c.WebhookSecret != "" {
		secret = "[REDACTED]"
	}
	return fmt.Sprintf("ServerConfig{host: %s, port: %d, webhook_secret: %s}", c.Host, c.Port, secret)
}

// ProvisioningConfig enables dynamic machine provisioning. Template is an
// opaque bag passed through to the provisioning provider; the core never
// interprets it.
type ProvisioningConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Template map[string]any `yaml:"template,omitempty"`
}

// MachineDefaults is merged field-by-field into every machine entry that
// leaves the corresponding field unset.
type MachineDefaults struct {
	SSH     *SSHConfig    `yaml:"ssh"`
	Runners *RunnerBounds `yaml:"runners"`
}

// MachineConfig describes one statically configured machine.
type MachineConfig struct {
	ID      string        `yaml:"id"`
	SSH     *SSHConfig    `yaml:"ssh"`
	Runners *RunnerBounds `yaml:"runners"`
}

// SSHConfig is the connection descriptor for a machine. Credentials are
// opaque to the reconciliation core; only the sshexec collaborator reads
// them.
type SSHConfig struct {
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`
	Fingerprint          string `yaml:"fingerprint,omitempty"`
	Username             string `yaml:"username"`
	Password             string `yaml:"password,omitempty"`
	PrivateKey           string `yaml:"private_key,omitempty"`
	PrivateKeyPassphrase string `yaml:"private_key_passphrase,omitempty"`
}

// String redacts password and key material.
func (c SSHConfig) String() string {
	password := "None"
	if c.Password != "" {
		password = "[REDACTED]"
	}
	key := "None"
	if c.PrivateKey != "" {
		if len(c.PrivateKey) >= 16 {
			key = c.PrivateKey[:16] + "..."
		} else {
			key = "[REDACTED]"
		}
	}
	passphrase := "None"
	if c.PrivateKeyPassphrase != "" {
		passphrase = "[REDACTED]"
	}
	return fmt.Sprintf("SSHConfig{host: %s, port: %d, fingerprint: %s, username: %s, password: %s, private_key: %s, private_key_passphrase: %s}",
		c.Host, c.Port, c.Fingerprint, c.Username, password, key, passphrase)
}

// RunnerBounds holds the per-machine runner policy. Pointer fields
// distinguish "unset, inherit from machine_defaults" from explicit zero.
type RunnerBounds struct {
	Min *int `yaml:"min"`
	Max *int `yaml:"max"`

	// IdleTimeout is how long a machine must sit at target zero with no
	// runners before it becomes eligible for decommissioning (dynamic
	// machines only).
	IdleTimeout *string `yaml:"idle_timeout"`
}

// IdleTimeoutDuration returns the parsed idle timeout.
func (b RunnerBounds) IdleTimeoutDuration() time.Duration {
	if b.IdleTimeout == nil {
		return DefaultIdleTimeout
	}
	return parseDurationOr(*b.IdleTimeout, DefaultIdleTimeout)
}

// MinRunners returns the effective minimum runner count.
func (b RunnerBounds) MinRunners() int {
	if b.Min == nil {
		return DefaultMinRunners
	}
	return *b.Min
}

// MaxRunners returns the effective maximum runner count.
func (b RunnerBounds) MaxRunners() int {
	if b.Max == nil {
		return DefaultMaxRunners
	}
	return *b.Max
}
