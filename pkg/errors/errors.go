package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// ErrorType is the error kind reported to callers in the response envelope
type ErrorType string

const (
	// Request errors
	ErrorTypeInvalidRequest   ErrorType = "InvalidRequest"
	ErrorTypeUnauthenticated  ErrorType = "Unauthenticated"
	ErrorTypeForbidden        ErrorType = "Forbidden"
	ErrorTypeNotFound         ErrorType = "NotFound"
	ErrorTypeMethodNotAllowed ErrorType = "MethodNotAllowed"

	// Write errors
	ErrorTypePreconditionFailed ErrorType = "PreconditionFailed"
	ErrorTypeConflict           ErrorType = "Conflict"

	// Infrastructure errors
	ErrorTypeStorageFailure ErrorType = "StorageFailure"
	ErrorTypeExternal       ErrorType = "ExternalFailure"
	ErrorTypeInternal       ErrorType = "Internal"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

func newError(errType ErrorType, status int, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// NewValidationError creates an InvalidRequest error for a missing or malformed field
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeInvalidRequest, http.StatusBadRequest, message)
}

// NewUnauthenticatedError creates an error for a request without a verified caller
func NewUnauthenticatedError(message string) *AppError {
	if message == "" {
		message = "caller identity is missing"
	}
	return newError(ErrorTypeUnauthenticated, http.StatusUnauthorized, message)
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return newError(ErrorTypeForbidden, http.StatusForbidden, message)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// NewMethodNotAllowedError creates an error for an unsupported HTTP method
func NewMethodNotAllowedError(method, path string) *AppError {
	return newError(ErrorTypeMethodNotAllowed, http.StatusMethodNotAllowed,
		fmt.Sprintf("%s is not supported on %s", method, path))
}

// NewPreconditionFailedError creates an error for a conditional write rejected by the store
func NewPreconditionFailedError(message string) *AppError {
	return newError(ErrorTypePreconditionFailed, http.StatusConflict, message)
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message)
}

// NewStorageError creates an error for a failed store call
func NewStorageError(operation string, err error) *AppError {
	e := newError(ErrorTypeStorageFailure, http.StatusInternalServerError,
		fmt.Sprintf("storage operation '%s' failed", operation))
	e.Cause = err
	return e
}

// NewExternalError creates an external service error
func NewExternalError(service string, err error) *AppError {
	e := newError(ErrorTypeExternal, http.StatusBadGateway,
		fmt.Sprintf("external service '%s' error", service))
	e.Cause = err
	return e
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is an InvalidRequest error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeInvalidRequest)
}

// IsForbidden checks if an error is a forbidden error
func IsForbidden(err error) bool {
	return IsType(err, ErrorTypeForbidden)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}

// IsPreconditionFailed checks if a conditional write was rejected
func IsPreconditionFailed(err error) bool {
	return IsType(err, ErrorTypePreconditionFailed)
}

// IsStorageFailure checks if an error is a storage failure
func IsStorageFailure(err error) bool {
	return IsType(err, ErrorTypeStorageFailure)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
