package core

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports malformed or out-of-range parameters, detected
// before any fetch is issued. It carries every violated constraint, not
// just the first.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

// NewValidationError builds a single-violation error.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Violations: []string{fmt.Sprintf(format, args...)}}
}

// APIError wraps a fetch collaborator failure, naming the operation that
// issued the fetch. API errors abort the whole operation; no partial
// results are returned.
type APIError struct {
	Op  string
	Err error
}

func (e *APIError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError wraps err with the failing operation name.
func NewAPIError(op string, err error) *APIError {
	return &APIError{Op: op, Err: err}
}

// ErrBudgetExhausted is returned by the retry manager when the total
// wall-clock budget for a tool invocation runs out.
var ErrBudgetExhausted = errors.New("operation timed out: retry budget exhausted")

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
