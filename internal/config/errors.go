package config

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by configuration operations.
var (
	// ErrFileNotFound indicates the configuration file doesn't exist.
	ErrFileNotFound = errors.New("config file not found")

	// ErrTypeMismatch indicates a value has the wrong type for its setting.
	ErrTypeMismatch = errors.New("type mismatch")
)

// TypeError is returned when a configuration value cannot be converted to
// the type of its setting.
type TypeError struct {
	// Path is the setting path, like "supervisor.grace_period".
	Path string
	// Expected is the expected type name.
	Expected string
	// Value is the offending value.
	Value any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type error for %s: expected %s, got %T (%v)", e.Path, e.Expected, e.Value, e.Value)
}

// Is implements error matching for TypeError.
func (e *TypeError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// ValidationError holds details about a configuration validation failure.
type ValidationError struct {
	Field   string
	Message string
	Context string
}

func (e ValidationError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (in %s)", e.Field, e.Message, e.Context)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, "  - "+e.Error())
	}
	return fmt.Sprintf("validation failed with %d error(s):\n%s", len(errs), strings.Join(msgs, "\n"))
}

// HasErrors returns true if there are any validation errors.
func (errs ValidationErrors) HasErrors() bool {
	return len(errs) > 0
}
