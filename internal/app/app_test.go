package app

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghascaler/pkg/logging"
)

const testConfig = `
log_level: error
github:
  personal_access_token: ghp_0123456789abcdef
  runners:
    name_prefix: ci
    scope: repo
    repo_url: https://github.com/acme/widgets
machines:
  - ssh:
      host: build-01.example.com
      username: deploy
      password: hunter2
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewApplication_AssemblesComponents(t *testing.T) {
	defer logging.InitForTests()

	application, err := NewApplication(Options{ConfigPath: writeConfig(t, testConfig)})
	require.NoError(t, err)
	require.NotNil(t, application.Config())
	assert.Len(t, application.Config().Machines, 1)
	assert.Equal(t, "machine-1", application.Config().Machines[0].ID)
}

func TestNewApplication_LogsConfigurationLoad(t *testing.T) {
	defer logging.InitForTests()
	path := writeConfig(t, testConfig)

	// Logging must be up before the configuration is read, so the
	// loader's own line reaches stdout instead of a nil logger. The
	// configured level only takes over after the file is parsed.
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	_, appErr := NewApplication(Options{ConfigPath: path})
	require.NoError(t, w.Close())
	os.Stdout = orig

	out, readErr := io.ReadAll(r)
	require.NoError(t, readErr)
	require.NoError(t, appErr)
	assert.Contains(t, string(out), "Loaded configuration")
}

func TestNewApplication_BadConfigPath(t *testing.T) {
	defer logging.InitForTests()

	_, err := NewApplication(Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
}
