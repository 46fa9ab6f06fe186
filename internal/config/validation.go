package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks a resolved configuration against the rules the rest of
// the system depends on. The reconciliation core refuses to plan against
// bounds it has not validated, so every bound and duration is checked
// here, at load time, once.
func Validate(c Config) error {
	var errs ValidationErrors

	validateGitHub(c.GitHub, &errs)
	validateScaler(c.Scaler, &errs)
	validateServer(c.Server, &errs)
	validateMachines(c, &errs)

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateGitHub(c GitHubConfig, errs *ValidationErrors) {
	if c.PersonalAccessToken == "" {
		errs.Add("github.personal_access_token",
			"an empty or missing value; a GitHub personal access token must start with 'ghp_'")
	} else if !strings.HasPrefix(c.PersonalAccessToken, "ghp_") {
		errs.Add("github.personal_access_token",
			"an invalid value; a GitHub personal access token must start with 'ghp_'")
	}

	if c.Runners.NamePrefix == "" {
		errs.Add("github.runners.name_prefix", "an empty value")
	}

	if c.Runners.Scope != DefaultRunnerScope {
		errs.Add("github.runners.scope",
			fmt.Sprintf("an unsupported value '%s'; 'repo' is the only supported value at the moment", c.Runners.Scope))
	}

	switch {
	case c.Runners.RepoURL == "":
		errs.Add("github.runners.repo_url", "an empty or missing URL")
	case !strings.HasPrefix(c.Runners.RepoURL, "http://") && !strings.HasPrefix(c.Runners.RepoURL, "https://"):
		errs.Add("github.runners.repo_url", fmt.Sprintf("an invalid URL '%s'", c.Runners.RepoURL))
	}
}

func validateScaler(c ScalerConfig, errs *ValidationErrors) {
	if c.GlobalMinRunners < 0 {
		errs.Add("scaler.global_min_runners", "must not be negative")
	}
	if c.GlobalMaxRunners < c.GlobalMinRunners {
		errs.Add("scaler.global_max_runners",
			fmt.Sprintf("must be >= global_min_runners (%d < %d)", c.GlobalMaxRunners, c.GlobalMinRunners))
	}
	if c.MaxActionRetries < 1 {
		errs.Add("scaler.max_action_retries", "must be at least 1")
	}

	validateDuration("scaler.interval", c.Interval, errs)
	validateDuration("scaler.action_timeout", c.ActionTimeout, errs)
	validateDuration("scaler.initial_backoff", c.InitialBackoff, errs)
	validateDuration("scaler.max_backoff", c.MaxBackoff, errs)
}

func validateServer(c ServerConfig, errs *ValidationErrors) {
	if c.Port < 0 || c.Port > 65535 {
		errs.Add("server.port", fmt.Sprintf("invalid port %d", c.Port))
	}
}

func validateMachines(c Config, errs *ValidationErrors) {
	if len(c.Machines) == 0 && !c.Provisioning.Enabled {
		errs.Add("machines",
			"there must be at least one machine in the configuration unless dynamic provisioning is enabled")
	}

	for _, m := range c.Machines {
		field := fmt.Sprintf("machines[%s]", m.ID)

		if m.SSH == nil || m.SSH.Host == "" {
			errs.Add(field+".ssh.host", "an empty or missing host")
		}
		if m.SSH != nil && m.SSH.Password == "" && m.SSH.PrivateKey == "" {
			errs.Add(field+".ssh", "either a password or a private key is required")
		}

		// Bounds are merged before validation, so nil here is impossible
		// for a loaded config; guard anyway for hand-built ones.
		if m.Runners == nil {
			errs.Add(field+".runners", "missing runner bounds")
			continue
		}
		min, max := m.Runners.MinRunners(), m.Runners.MaxRunners()
		if min < 0 {
			errs.Add(field+".runners.min", "must not be negative")
		}
		if max < min {
			errs.Add(field+".runners.max", fmt.Sprintf("must be >= min (%d < %d)", max, min))
		}
		if m.Runners.IdleTimeout != nil {
			validateDuration(field+".runners.idle_timeout", *m.Runners.IdleTimeout, errs)
		}
	}
}

func validateDuration(field, value string, errs *ValidationErrors) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		errs.Add(field, fmt.Sprintf("invalid duration '%s'", value))
		return
	}
	if d <= 0 {
		errs.Add(field, "must be positive")
	}
}
