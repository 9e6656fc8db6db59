package model

import "fmt"

// ConfigurationError reports a missing, unreadable or malformed reference tree,
// or a bad setting detected before a classification run starts.
type ConfigurationError struct {
	Op  string // What was being configured (e.g. "load tree")
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("configuration: %s: %s", e.Op, e.Msg)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ValidationError reports bad input to a classification run
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

// NewConfigurationError builds a ConfigurationError
func NewConfigurationError(op, msg string, err error) *ConfigurationError {
	return &ConfigurationError{Op: op, Msg: msg, Err: err}
}

// NewValidationError builds a ValidationError
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
