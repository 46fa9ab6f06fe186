package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghascaler/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.InitForTests()
	os.Exit(m.Run())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validConfig = `
github:
  personal_access_token: ghp_0123456789abcdef
  runners:
    name_prefix: ci
    scope: repo
    repo_url: https://github.com/acme/widgets
machine_defaults:
  ssh:
    username: deploy
    password: hunter2
  runners:
    min: 0
    max: 4
machines:
  - ssh:
      host: build-01.example.com
  - id: heavy
    ssh:
      host: build-02.example.com
      port: 2222
    runners:
      min: 2
      max: 8
      idle_timeout: 5m
`

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	require.Len(t, cfg.Machines, 2)

	// Machines come back sorted by id; "heavy" sorts before "machine-1".
	heavy := cfg.Machines[0]
	assert.Equal(t, "heavy", heavy.ID)
	assert.Equal(t, "build-02.example.com", heavy.SSH.Host)
	assert.Equal(t, 2222, heavy.SSH.Port)
	assert.Equal(t, "deploy", heavy.SSH.Username)
	assert.Equal(t, "hunter2", heavy.SSH.Password)
	assert.Equal(t, 2, heavy.Runners.MinRunners())
	assert.Equal(t, 8, heavy.Runners.MaxRunners())
	assert.Equal(t, 5*time.Minute, heavy.Runners.IdleTimeoutDuration())

	generated := cfg.Machines[1]
	assert.Equal(t, "machine-1", generated.ID)
	assert.Equal(t, "build-01.example.com", generated.SSH.Host)
	assert.Equal(t, DefaultSSHPort, generated.SSH.Port)
	assert.Equal(t, 0, generated.Runners.MinRunners())
	assert.Equal(t, 4, generated.Runners.MaxRunners())
	assert.Equal(t, DefaultIdleTimeout, generated.Runners.IdleTimeoutDuration())
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultInterval, cfg.Scaler.IntervalDuration())
	assert.Equal(t, DefaultActionTimeout, cfg.Scaler.ActionTimeoutDuration())
	assert.Equal(t, DefaultMaxActionRetries, cfg.Scaler.MaxActionRetries)
	assert.Equal(t, DefaultGlobalMaxRunners, cfg.Scaler.GlobalMaxRunners)
	assert.Equal(t, DefaultServerHost, cfg.Server.Host)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.False(t, cfg.Provisioning.Enabled)
}

func TestLoad_EnvResolution(t *testing.T) {
	t.Setenv("GHASCALER_TEST_PAT", "ghp_fromenvironment")

	content := `
github:
  personal_access_token: ${GHASCALER_TEST_PAT}
  runners:
    name_prefix: ci
    scope: repo
    repo_url: https://github.com/acme/widgets
machines:
  - ssh:
      host: build-01
      username: deploy
      password: hunter2
`
	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)
	assert.Equal(t, "ghp_fromenvironment", cfg.GitHub.PersonalAccessToken)
}

func TestLoad_FileResolutionRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pat"), []byte("ghp_fromfile\n"), 0o600))

	content := `
github:
  personal_access_token: ${file:pat}
  runners:
    name_prefix: ci
    scope: repo
    repo_url: https://github.com/acme/widgets
machines:
  - ssh:
      host: build-01
      username: deploy
      password: hunter2
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ghp_fromfile", cfg.GitHub.PersonalAccessToken)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	var readErr *ReadError
	assert.ErrorAs(t, err, &readErr)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	content := `
github:
  personal_access_token: ghp_0123456789abcdef
  runers:
    name_prefix: ci
`
	_, err := Load(writeConfig(t, content))
	require.Error(t, err)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestLoad_DuplicateMachineIDsRejected(t *testing.T) {
	content := validConfig + `
  - id: heavy
    ssh:
      host: build-03.example.com
`
	_, err := Load(writeConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate machine ID 'heavy'")
}

func TestAssignMachineIDs_SkipsExplicitCollisions(t *testing.T) {
	c := Config{Machines: []MachineConfig{
		{ID: "machine-1"},
		{},
		{},
	}}
	require.NoError(t, assignMachineIDs(&c))

	assert.Equal(t, "machine-1", c.Machines[0].ID)
	assert.Equal(t, "machine-2", c.Machines[1].ID)
	assert.Equal(t, "machine-3", c.Machines[2].ID)
}

func TestMergeRunnerBounds_MaxNeverUndercutsExplicitMin(t *testing.T) {
	min := 32
	out := mergeRunnerBounds(nil, &RunnerBounds{Min: &min})

	assert.Equal(t, 32, out.MinRunners())
	assert.Equal(t, 32, out.MaxRunners())
}

func TestMergeSSH_MachineOverridesDefaults(t *testing.T) {
	defaults := &SSHConfig{Host: "default-host", Username: "default-user", Password: "default-pass", Port: 2200}
	machine := &SSHConfig{Host: "explicit-host", Username: "explicit-user"}

	out := mergeSSH(defaults, machine)
	assert.Equal(t, "explicit-host", out.Host)
	assert.Equal(t, "explicit-user", out.Username)
	assert.Equal(t, "default-pass", out.Password)
	assert.Equal(t, 2200, out.Port)
}
