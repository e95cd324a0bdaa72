// Package errors provides the typed application error used across the
// engine so callers can distinguish fatal, degraded, and deferred outcomes
// without string-matching error messages.
package errors

import "fmt"

// ErrorType classifies an AppError per the error policy table in §7 of the
// engine specification.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeAuth       ErrorType = "AUTH"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"
	ErrorTypeCapacity   ErrorType = "CAPACITY"
	ErrorTypeDependency ErrorType = "DEPENDENCY"
	ErrorTypeIntegrity  ErrorType = "INTEGRITY"
	ErrorTypeSemantic   ErrorType = "SEMANTIC"
	ErrorTypeInternal   ErrorType = "INTERNAL"
)

// AppError is the engine's canonical error type.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	// Retryable marks dependency-transient errors the caller may retry
	// after the indicated delay (§7 Capacity / Dependency transient rows).
	Retryable bool
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to see through to the cause.
func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidationError(message string) error {
	return &AppError{Type: ErrorTypeValidation, Message: message}
}

func NewAuthError(message string) error {
	return &AppError{Type: ErrorTypeAuth, Message: message}
}

func NewNotFoundError(message string) error {
	return &AppError{Type: ErrorTypeNotFound, Message: message}
}

func NewConflictError(message string) error {
	return &AppError{Type: ErrorTypeConflict, Message: message}
}

func NewCapacityError(message string) error {
	return &AppError{Type: ErrorTypeCapacity, Message: message, Retryable: true}
}

func NewDependencyError(message string, err error) error {
	return &AppError{Type: ErrorTypeDependency, Message: message, Err: err, Retryable: true}
}

func NewIntegrityError(message string, err error) error {
	return &AppError{Type: ErrorTypeIntegrity, Message: message, Err: err}
}

func NewSemanticError(message string) error {
	return &AppError{Type: ErrorTypeSemantic, Message: message}
}

func NewInternalError(message string, err error) error {
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

// Wrap attaches additional context to err, preserving its AppError type
// when present.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Type:      appErr.Type,
			Message:   fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:       appErr.Err,
			Retryable: appErr.Retryable,
		}
	}
	return &AppError{Type: ErrorTypeInternal, Message: message, Err: err}
}

func typeOf(err error) (ErrorType, bool) {
	appErr, ok := err.(*AppError)
	if !ok {
		return "", false
	}
	return appErr.Type, true
}

func IsValidation(err error) bool { t, ok := typeOf(err); return ok && t == ErrorTypeValidation }
func IsAuth(err error) bool       { t, ok := typeOf(err); return ok && t == ErrorTypeAuth }
func IsNotFound(err error) bool   { t, ok := typeOf(err); return ok && t == ErrorTypeNotFound }
func IsConflict(err error) bool   { t, ok := typeOf(err); return ok && t == ErrorTypeConflict }
func IsCapacity(err error) bool   { t, ok := typeOf(err); return ok && t == ErrorTypeCapacity }
func IsDependency(err error) bool { t, ok := typeOf(err); return ok && t == ErrorTypeDependency }
func IsIntegrity(err error) bool  { t, ok := typeOf(err); return ok && t == ErrorTypeIntegrity }
func IsSemantic(err error) bool   { t, ok := typeOf(err); return ok && t == ErrorTypeSemantic }
func IsInternal(err error) bool   { t, ok := typeOf(err); return ok && t == ErrorTypeInternal }

// IsRetryable reports whether the caller may retry the operation after a
// backoff, per the Dependency-transient and Capacity rows of §7.
func IsRetryable(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Retryable
}
