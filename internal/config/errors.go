package config

import (
	"errors"
	"fmt"
)

// InvalidError reports a configuration value that failed validation.
type InvalidError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid config %s=%q: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidError) Unwrap() error {
	return e.Err
}

// IsInvalid returns true if err is or wraps an *InvalidError.
func IsInvalid(err error) bool {
	var ie *InvalidError
	return errors.As(err, &ie)
}
