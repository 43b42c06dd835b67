package repository

import (
	"errors"
	"fmt"
)

// ValidationError reports a record that failed its schema on a write
// path. It marks bad input, never an infrastructure problem, and is not
// retryable.
type ValidationError struct {
	Collection string
	Err        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for collection %s: %v", e.Collection, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError is raised only by the OrFail read variants. The plain
// variants signal absence through their boolean return instead.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("record not found in collection %s with id %s", e.Collection, e.ID)
	}
	return fmt.Sprintf("record not found in collection %s", e.Collection)
}

// ConfigurationError reports an operation invoked in a mode the
// repository does not support, e.g. Restore without soft delete. It is a
// programming error class.
type ConfigurationError struct {
	Operation string
	Message   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Operation, e.Message)
}

// PersistenceError wraps a document store failure with collection and
// operation context. The repository performs no retry; callers decide.
type PersistenceError struct {
	Collection string
	Operation  string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error in %s.%s: %v", e.Collection, e.Operation, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is a schema validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFoundError reports whether err is a NotFoundError.
func IsNotFoundError(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsPersistenceError reports whether err is a wrapped store failure.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
