package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatParse       ErrorCategory = "parse"       // Malformed workflow document
	ErrCatValidation  ErrorCategory = "validation"  // Invalid input to an operation
	ErrCatExecution   ErrorCategory = "execution"   // Task side effect failed
	ErrCatPersistence ErrorCategory = "persistence" // Store I/O or serialization failure
	ErrCatTimeout     ErrorCategory = "timeout"     // Operation timed out
	ErrCatNotFound    ErrorCategory = "not_found"   // Resource not found
	ErrCatInternal    ErrorCategory = "internal"    // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrParse creates a workflow document error.
func ErrParse(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatParse,
		Code:     code,
		Message:  message,
	}
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatValidation,
		Code:      code,
		Message:   message,
		Retryable: false,
	}
}

// ErrExecution creates an execution error.
func ErrExecution(code, message string) *DomainError {
	return &DomainError{
		Category:  ErrCatExecution,
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// ErrPersistence creates a store error.
func ErrPersistence(op string, cause error) *DomainError {
	return &DomainError{
		Category:  ErrCatPersistence,
		Code:      CodeStoreFailed,
		Message:   op,
		Retryable: true,
		Cause:     cause,
	}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{
		Category:  ErrCatTimeout,
		Code:      "TIMEOUT",
		Message:   message,
		Retryable: true,
	}
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) *DomainError {
	return &DomainError{
		Category:  ErrCatNotFound,
		Code:      "NOT_FOUND",
		Message:   fmt.Sprintf("%s not found: %s", resource, id),
		Retryable: false,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Retryable
	}
	return false
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// GetCode extracts the error code, or "" for non-domain errors.
func GetCode(err error) string {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Code
	}
	return ""
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	CodeTaskNotFound      = "TASK_NOT_FOUND"
	CodeExecutionNotFound = "EXECUTION_NOT_FOUND"
	CodeInvalidState      = "INVALID_STATE"
	CodeStoreFailed       = "STORE_FAILED"

	// Parse error codes
	CodeMalformedJSON   = "MALFORMED_JSON"
	CodeMalformedYAML   = "MALFORMED_YAML"
	CodeMissingField    = "MISSING_FIELD"
	CodeInvalidField    = "INVALID_FIELD"
	CodeUnknownFunction = "UNKNOWN_FUNCTION"
	CodeDuplicateTaskID = "DUPLICATE_TASK_ID"

	// Validation error codes
	CodeInputTypeMismatch = "INPUT_TYPE_MISMATCH"
	CodeInputRequired     = "INPUT_REQUIRED"
	CodeNotWaiting        = "TASK_NOT_WAITING"
	CodeAlreadyFulfilled  = "INPUT_ALREADY_FULFILLED"

	// Execution error codes
	CodeCommandFailed  = "COMMAND_FAILED"
	CodeAgentFailed    = "AGENT_FAILED"
	CodeUnknownHandler = "UNKNOWN_HANDLER"
	CodeUnknownCustom  = "UNKNOWN_CUSTOM_FUNCTION"
	CodeInterrupted    = "INTERRUPTED"
)
