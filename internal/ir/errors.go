package ir

import (
	"errors"
	"fmt"
)

// ConfigError represents a configuration problem detected at load or
// configure time. Configuration errors fail fast and are never retried.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Field names the offending scenario field or engine option.
	Field string

	// Message is a human-readable description.
	Message string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeMalformedScenario indicates the scenario document cannot be used at all.
	ErrCodeMalformedScenario ConfigErrorCode = "MALFORMED_SCENARIO"

	// ErrCodeMissingOption indicates a required engine option is absent.
	ErrCodeMissingOption ConfigErrorCode = "MISSING_OPTION"

	// ErrCodeInvalidOption indicates an engine option has the wrong type or range.
	ErrCodeInvalidOption ConfigErrorCode = "INVALID_OPTION"

	// ErrCodeUnknownEngine indicates an unrecognised capture engine kind.
	ErrCodeUnknownEngine ConfigErrorCode = "UNKNOWN_ENGINE"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConfigError returns true if err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ConfigErrorCodeOf returns the code of a wrapped ConfigError, or "" if none.
func ConfigErrorCodeOf(err error) ConfigErrorCode {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// NewMalformedScenarioError creates a ConfigError for an unusable scenario.
func NewMalformedScenarioError(field, format string, args ...any) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMalformedScenario,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewMissingOptionError creates a ConfigError for an absent required option.
func NewMissingOptionError(option string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingOption,
		Field:   option,
		Message: "required option is missing",
	}
}

// NewInvalidOptionError creates a ConfigError for a badly typed or out of range option.
func NewInvalidOptionError(option, format string, args ...any) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidOption,
		Field:   option,
		Message: fmt.Sprintf(format, args...),
	}
}
