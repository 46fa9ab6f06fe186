package config

import (
	"fmt"
	"strings"
)

// ReadError indicates the configuration file could not be read.
type ReadError struct {
	Path  string
	Cause error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read configuration file %s: %v", e.Path, e.Cause)
}

func (e *ReadError) Unwrap() error { return e.Cause }

// ParseError indicates the configuration file is not valid YAML.
type ParseError struct {
	Path  string
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse configuration file %s: %v", e.Path, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// UnresolvedVariableError indicates a ${NAME} or ${file:path} reference
// in the configuration could not be resolved.
type UnresolvedVariableError struct {
	// Kind is "env" or "file".
	Kind  string
	Name  string
	Cause error
}

func (e *UnresolvedVariableError) Error() string {
	switch e.Kind {
	case "file":
		return fmt.Sprintf("failed to resolve file variable '${file:%s}': %v", e.Name, e.Cause)
	default:
		return fmt.Sprintf("failed to resolve environment variable '${%s}': %v", e.Name, e.Cause)
	}
}

func (e *UnresolvedVariableError) Unwrap() error { return e.Cause }

// ValidationError represents a validation failure with field context.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors.
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors.
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add appends a new validation error.
func (ve *ValidationErrors) Add(field, message string) {
	*ve = append(*ve, ValidationError{Field: field, Message: message})
}
