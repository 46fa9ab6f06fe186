package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_PlainStringsPassThrough(t *testing.T) {
	r := NewResolver(t.TempDir())

	for _, input := range []string{"", "plain", "no variables here", "a$b"} {
		got, err := r.Resolve(input)
		require.NoError(t, err)
		assert.Equal(t, input, got)
	}
}

func TestResolver_EnvVariable(t *testing.T) {
	t.Setenv("GHASCALER_TEST_TOKEN", "ghp_secret")

	r := NewResolver(t.TempDir())
	got, err := r.Resolve("${GHASCALER_TEST_TOKEN}")
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", got)
}

func TestResolver_EnvVariableInsideLargerString(t *testing.T) {
	t.Setenv("GHASCALER_TEST_HOST", "build-01")

	r := NewResolver(t.TempDir())
	got, err := r.Resolve("${GHASCALER_TEST_HOST}.example.com")
	require.NoError(t, err)
	assert.Equal(t, "build-01.example.com", got)
}

func TestResolver_UnsetEnvVariableFails(t *testing.T) {
	r := NewResolver(t.TempDir())

	_, err := r.Resolve("${GHASCALER_TEST_DEFINITELY_UNSET}")
	require.Error(t, err)

	var unresolved *UnresolvedVariableError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "env", unresolved.Kind)
	assert.Equal(t, "GHASCALER_TEST_DEFINITELY_UNSET", unresolved.Name)
}

func TestResolver_EscapedDollar(t *testing.T) {
	r := NewResolver(t.TempDir())

	got, err := r.Resolve("pa$$word")
	require.NoError(t, err)
	assert.Equal(t, "pa$word", got)
}

func TestResolver_FileVariable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "token"), []byte("ghp_fromfile\n"), 0o600))

	r := NewResolver(dir)
	got, err := r.Resolve("${file:token}")
	require.NoError(t, err)
	// Trailing newline is trimmed so key files splice into one-line values.
	assert.Equal(t, "ghp_fromfile", got)
}

func TestResolver_FileVariableInSubdirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "secrets"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secrets", "key"), []byte("KEYDATA"), 0o600))

	r := NewResolver(dir)
	got, err := r.Resolve("${file:secrets/key}")
	require.NoError(t, err)
	assert.Equal(t, "KEYDATA", got)
}

func TestResolver_MissingFileFails(t *testing.T) {
	r := NewResolver(t.TempDir())

	_, err := r.Resolve("${file:does-not-exist}")
	require.Error(t, err)

	var unresolved *UnresolvedVariableError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "file", unresolved.Kind)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestResolver_MultipleReferences(t *testing.T) {
	t.Setenv("GHASCALER_TEST_USER", "ci")
	t.Setenv("GHASCALER_TEST_DOMAIN", "example.com")

	r := NewResolver(t.TempDir())
	got, err := r.Resolve("${GHASCALER_TEST_USER}@${GHASCALER_TEST_DOMAIN}")
	require.NoError(t, err)
	assert.Equal(t, "ci@example.com", got)
}

func TestResolver_FirstErrorWins(t *testing.T) {
	t.Setenv("GHASCALER_TEST_SET", "ok")

	r := NewResolver(t.TempDir())
	_, err := r.Resolve("${GHASCALER_TEST_UNSET_A}-${GHASCALER_TEST_SET}")
	require.Error(t, err)

	var unresolved *UnresolvedVariableError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "GHASCALER_TEST_UNSET_A", unresolved.Name)
}
