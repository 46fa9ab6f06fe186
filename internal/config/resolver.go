package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// variablePattern matches '$$' (escaped dollar), '${NAME}' (environment
// variable), and '${file:path}' (file relative to the config directory).
var variablePattern = regexp.MustCompile(`(\$\$)|\$\{(file:)?([^}]+)}`)

// Resolver expands variable references inside configuration string values.
// File references are resolved relative to the directory containing the
// configuration file, so a config can ship alongside its secret files.
type Resolver struct {
	configDir string
}

// NewResolver creates a Resolver rooted at the given configuration
// directory.
func NewResolver(configDir string) *Resolver {
	if configDir == "" {
		configDir = "."
	}
	return &Resolver{configDir: configDir}
}

// Resolve expands all variable references in input. The first resolution
// failure wins; later references are left untouched in that case.
func (r *Resolver) Resolve(input string) (string, error) {
	var firstErr error

	resolved := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		if match == "$$" {
			return "$"
		}

		groups := variablePattern.FindStringSubmatch(match)
		name := groups[3]
		if groups[2] != "" {
			content, err := r.resolveFile(name)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			return content
		}

		value, err := r.resolveEnv(name)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return resolved, nil
}

// resolveEnv looks up an environment variable, failing on unset names so
// a typo surfaces at load time instead of as an empty credential later.
func (r *Resolver) resolveEnv(name string) (string, error) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", &UnresolvedVariableError{
			Kind:  "env",
			Name:  name,
			Cause: fmt.Errorf("environment variable is not set"),
		}
	}
	return value, nil
}

// resolveFile reads a file relative to the config directory. Trailing
// whitespace is trimmed so key files with a final newline splice cleanly
// into single-line values.
func (r *Resolver) resolveFile(path string) (string, error) {
	fullPath := filepath.Join(r.configDir, path)
	content, err := os.ReadFile(fullPath)
	if err != nil {
		return "", &UnresolvedVariableError{Kind: "file", Name: path, Cause: err}
	}
	return strings.TrimRight(string(content), " \t\r\n"), nil
}
