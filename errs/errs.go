// Package errs defines the two error kinds shared by the generator packages.
//
// Configuration problems (bad dimensions, kernel parameters, initial count)
// are reported as *ConfigError and match ErrConfig. Violations of the
// tracker's internal invariants match ErrInvalidState and indicate a logic
// fault rather than bad input.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is matched by every *ConfigError.
	ErrConfig = errors.New("invalid configuration")
	// ErrInvalidState marks an operation attempted against the wrong cell state.
	ErrInvalidState = errors.New("invalid state")
)

// ConfigError describes a rejected configuration value.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Is reports whether target is ErrConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// Config returns a *ConfigError for field.
func Config(field string, value any, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// InvalidState returns an error wrapping ErrInvalidState.
func InvalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
