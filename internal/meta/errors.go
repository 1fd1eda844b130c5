package meta

import (
	"errors"
	"fmt"
)

// ConfigError reports a malformed or inconsistent configuration value.
type ConfigError struct {
	// Key is the fully qualified property key, or the setting name for
	// values supplied through the API.
	Key string

	// Value is the offending raw value.
	Value string

	// Reason is a human-readable description.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s=%q: %s", e.Key, e.Value, e.Reason)
}

// IsConfigError returns true if the error is a ConfigError.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
