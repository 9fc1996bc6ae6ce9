package types

import "fmt"

// FormatError is returned when an input's structure can't be understood at
// all, e.g. an interval export with no recognizable columns or no valid rows.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("format error: %s: %v", e.Reason, e.Err)
	}
	return "format error: " + e.Reason
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// ValidationError is returned when a numeric input is out of range or
// contradicts another input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConfigurationError is returned when a field that is only required by some
// other setting is missing.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing %s: %s", e.Field, e.Reason)
}

// Invalid is shorthand for building a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
