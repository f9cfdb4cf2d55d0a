package config

import (
	"errors"
	"fmt"
)

// LoadError indicates a configuration document could not be loaded: the file
// is unreadable, a requested material overlay is missing, or the document is
// not a mapping at the top level. Load errors are fatal and never retried.
type LoadError struct {
	Path string
	Msg  string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *LoadError) Unwrap() error { return e.Err }

// ValidationError indicates the merged configuration violates the schema:
// an unknown key, a type mismatch, or a constraint violation. The message
// names the offending field path and the constraint. Validation errors are
// fatal and never retried.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config validation failed: %s: %s", e.Field, e.Msg)
	}
	return fmt.Sprintf("config validation failed: %s", e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is a configuration load failure.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// IsValidationError reports whether err is a schema/constraint violation.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsFatal reports whether err belongs to the configuration error taxonomy
// (both kinds exit the process with a non-zero code).
func IsFatal(err error) bool {
	return IsLoadError(err) || IsValidationError(err)
}
