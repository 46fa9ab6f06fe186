package config

import (
	"bytes"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"

	"ghascaler/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = "ghascaler"
	configFileName = "config.yaml"
)

// DefaultConfigPath returns the default configuration file location
// (~/.config/ghascaler/config.yaml on most systems).
func DefaultConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(base, userConfigDir, configFileName), nil
}

// Load reads, resolves, and validates the configuration file at path.
// It never returns a partially valid configuration: any read, parse,
// variable resolution, or validation failure aborts the load.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &ReadError{Path: path, Cause: err}
	}

	config := GetDefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	// Unknown fields are load-time errors: a misspelled key silently
	// falling back to a default is worse than a hard failure.
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return Config{}, &ParseError{Path: path, Cause: err}
	}

	resolver := NewResolver(filepath.Dir(path))
	if err := resolveConfig(&config, resolver); err != nil {
		return Config{}, err
	}

	mergeMachineDefaults(&config)
	if err := assignMachineIDs(&config); err != nil {
		return Config{}, err
	}
	sort.Slice(config.Machines, func(i, j int) bool {
		return config.Machines[i].ID < config.Machines[j].ID
	})

	if err := Validate(config); err != nil {
		return Config{}, err
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s (%d machines)", path, len(config.Machines))
	return config, nil
}

// resolveConfig expands variable references in every string field that may
// carry one. Resolution is field-by-field so file contents never get
// re-parsed as YAML.
func resolveConfig(c *Config, r *Resolver) error {
	fields := []*string{
		&c.GitHub.PersonalAccessToken,
		&c.GitHub.APIEndpoint,
		&c.GitHub.Runners.NamePrefix,
		&c.GitHub.Runners.Scope,
		&c.GitHub.Runners.RepoURL,
		&c.Server.WebhookSecret,
	}
	for i := range c.Machines {
		m := &c.Machines[i]
		fields = append(fields, &m.ID)
		if m.SSH != nil {
			fields = append(fields, sshFields(m.SSH)...)
		}
	}
	if c.Defaults != nil && c.Defaults.SSH != nil {
		fields = append(fields, sshFields(c.Defaults.SSH)...)
	}

	for _, f := range fields {
		resolved, err := r.Resolve(*f)
		if err != nil {
			return err
		}
		*f = resolved
	}
	return nil
}

func sshFields(s *SSHConfig) []*string {
	return []*string{
		&s.Host,
		&s.Fingerprint,
		&s.Username,
		&s.Password,
		&s.PrivateKey,
		&s.PrivateKeyPassphrase,
	}
}

// mergeMachineDefaults folds the machine_defaults section into each machine
// entry, field by field, and applies the built-in fallbacks (SSH port 22,
// current OS user, runner bounds, idle timeout).
func mergeMachineDefaults(c *Config) {
	var defSSH *SSHConfig
	var defRunners *RunnerBounds
	if c.Defaults != nil {
		defSSH = c.Defaults.SSH
		defRunners = c.Defaults.Runners
	}

	for i := range c.Machines {
		m := &c.Machines[i]
		m.SSH = mergeSSH(defSSH, m.SSH)
		m.Runners = mergeRunnerBounds(defRunners, m.Runners)
	}
}

func mergeSSH(defaults, m *SSHConfig) *SSHConfig {
	out := &SSHConfig{}
	if m != nil {
		*out = *m
	}
	if defaults != nil {
		if out.Host == "" {
			out.Host = defaults.Host
		}
		if out.Port == 0 {
			out.Port = defaults.Port
		}
		if out.Fingerprint == "" {
			out.Fingerprint = defaults.Fingerprint
		}
		if out.Username == "" {
			out.Username = defaults.Username
		}
		if out.Password == "" {
			out.Password = defaults.Password
		}
		if out.PrivateKey == "" {
			out.PrivateKey = defaults.PrivateKey
		}
		if out.PrivateKeyPassphrase == "" {
			out.PrivateKeyPassphrase = defaults.PrivateKeyPassphrase
		}
	}
	if out.Port == 0 {
		out.Port = DefaultSSHPort
	}
	if out.Username == "" {
		out.Username = currentUsername()
	}
	return out
}

func mergeRunnerBounds(defaults, m *RunnerBounds) *RunnerBounds {
	out := &RunnerBounds{}
	if m != nil {
		*out = *m
	}
	if defaults != nil {
		if out.Min == nil {
			out.Min = defaults.Min
		}
		if out.Max == nil {
			out.Max = defaults.Max
		}
		if out.IdleTimeout == nil {
			out.IdleTimeout = defaults.IdleTimeout
		}
	}
	if out.Min == nil {
		min := DefaultMinRunners
		out.Min = &min
	}
	if out.Max == nil {
		// The default ceiling never undercuts an explicit minimum.
		max := DefaultMaxRunners
		if *out.Min > max {
			max = *out.Min
		}
		out.Max = &max
	}
	if out.IdleTimeout == nil {
		timeout := DefaultIdleTimeout.String()
		out.IdleTimeout = &timeout
	}
	return out
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

// assignMachineIDs generates 'machine-N' ids for entries without an
// explicit one, skipping collisions with explicit ids. Duplicate explicit
// ids are rejected here rather than in Validate so generation never has to
// reason about a broken id set.
func assignMachineIDs(c *Config) error {
	seen := make(map[string]bool, len(c.Machines))
	for _, m := range c.Machines {
		if m.ID == "" {
			continue
		}
		if seen[m.ID] {
			return ValidationError{
				Field:   "machines.id",
				Message: fmt.Sprintf("duplicate machine ID '%s'", m.ID),
			}
		}
		seen[m.ID] = true
	}

	nextID := 1
	for i := range c.Machines {
		if c.Machines[i].ID != "" {
			continue
		}
		for {
			id := fmt.Sprintf("machine-%d", nextID)
			if !seen[id] {
				seen[id] = true
				c.Machines[i].ID = id
				break
			}
			nextID++
		}
	}
	return nil
}
