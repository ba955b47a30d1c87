package repositories

import "fmt"

// CounterErrorCode enumerates failure reasons for counter operations.
type CounterErrorCode string

const (
	// CounterErrorUnknown represents an unspecified failure.
	CounterErrorUnknown CounterErrorCode = "counter_unknown"
	// CounterErrorInvalidInput indicates the caller supplied invalid arguments.
	CounterErrorInvalidInput CounterErrorCode = "counter_invalid_input"
	// CounterErrorExhausted indicates the counter cannot be incremented further due to a configured max value.
	CounterErrorExhausted CounterErrorCode = "counter_exhausted"
)

// CounterError wraps counter-specific failures with machine readable codes.
type CounterError struct {
	Op      string
	Code    CounterErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CounterError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *CounterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewCounterError constructs a typed counter error.
func NewCounterError(code CounterErrorCode, message string, err error) *CounterError {
	if message == "" {
		message = string(code)
	}
	return &CounterError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// StoreError is a backend-agnostic RepositoryError used by in-process stores.
type StoreError struct {
	Op          string
	Message     string
	NotFound    bool
	Conflict    bool
	Unavailable bool
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// IsNotFound reports whether the error represents a missing record.
func (e *StoreError) IsNotFound() bool {
	return e != nil && e.NotFound
}

// IsConflict reports whether the error represents a conflicting update.
func (e *StoreError) IsConflict() bool {
	return e != nil && e.Conflict
}

// IsUnavailable reports whether the error represents a transient backend outage.
func (e *StoreError) IsUnavailable() bool {
	return e != nil && e.Unavailable
}

// NewNotFoundError reports a missing record for the given operation.
func NewNotFoundError(op, message string) *StoreError {
	return &StoreError{Op: op, Message: message, NotFound: true}
}

// NewConflictError reports a duplicate insert or stale optimistic write.
func NewConflictError(op, message string) *StoreError {
	return &StoreError{Op: op, Message: message, Conflict: true}
}
