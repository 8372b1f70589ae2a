// Package errors defines structured error types for the PosSync service.
// The taxonomy distinguishes infrastructure faults (retried by the
// orchestrator's backoff policies) from application-level faults (captured
// into a task's own result and never retried).
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/turtacn/possync/pkg/constants"
)

// AppError is a structured application error with a code, an HTTP status for
// surfaces that need one, and an optional cause chain.
type AppError struct {
	code       constants.ErrorCode
	httpStatus int
	message    string
	cause      error

	// infrastructure marks faults that may escape a sync task and be retried.
	// Everything else must be caught at the task boundary.
	infrastructure bool
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the machine-readable error category.
func (e *AppError) Code() constants.ErrorCode {
	return e.code
}

// HTTPStatus returns the HTTP status code associated with the error.
func (e *AppError) HTTPStatus() int {
	return e.httpStatus
}

// Unwrap returns the underlying cause for error chain support.
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause attaches a cause error to the chain.
func (e *AppError) WithCause(cause error) *AppError {
	e.cause = cause
	return e
}

// NewError creates a new AppError with the specified parameters.
func NewError(code constants.ErrorCode, httpStatus int, message string) *AppError {
	return &AppError{
		code:       code,
		httpStatus: httpStatus,
		message:    message,
	}
}

// ================================================================================
// Predefined Error Constructors
// ================================================================================

// ErrConfiguration creates a configuration error. Fatal at component startup,
// never retried.
func ErrConfiguration(message string) *AppError {
	return NewError(constants.ErrCodeConfiguration, http.StatusInternalServerError, message)
}

// ErrAuthentication creates an authentication error. A rejected credential
// exchange fails the whole tenant's sync; callers must not swallow it.
// Token endpoints throttle and flap, so these faults are retried before
// the tenant is reported as failed.
func ErrAuthentication(message string) *AppError {
	e := NewError(constants.ErrCodeAuthentication, http.StatusUnauthorized, message)
	e.infrastructure = true
	return e
}

// ErrValidation creates a validation error for an invalid caller-supplied
// parameter, raised before any I/O.
func ErrValidation(message string) *AppError {
	return NewError(constants.ErrCodeValidation, http.StatusBadRequest, message)
}

// ErrTransient creates a retryable infrastructure error.
func ErrTransient(message string) *AppError {
	e := NewError(constants.ErrCodeTransient, http.StatusServiceUnavailable, message)
	e.infrastructure = true
	return e
}

// ErrApplication creates an application-level error. It is reported in the
// task's structured result and never thrown past the task boundary.
func ErrApplication(message string) *AppError {
	return NewError(constants.ErrCodeApplication, http.StatusUnprocessableEntity, message)
}

// ErrNotFound creates a missing-resource error.
func ErrNotFound(message string) *AppError {
	return NewError(constants.ErrCodeNotFound, http.StatusNotFound, message)
}

// ErrInternal creates an unexpected internal error.
func ErrInternal(message string) *AppError {
	return NewError(constants.ErrCodeInternal, http.StatusInternalServerError, message)
}

// ================================================================================
// Classification Helpers
// ================================================================================

// AsInfrastructure marks an arbitrary error as an infrastructure fault so the
// orchestrator's retry policy applies to it.
func AsInfrastructure(err error) *AppError {
	if err == nil {
		return nil
	}
	var app *AppError
	if errors.As(err, &app) && app.infrastructure {
		return app
	}
	return ErrTransient("infrastructure fault").WithCause(err)
}

// IsInfrastructure reports whether err should be treated as a retryable
// infrastructure fault. Errors escaping a sync task are retried only when
// this returns true; everything else is captured into the task result.
func IsInfrastructure(err error) bool {
	var app *AppError
	if errors.As(err, &app) {
		return app.infrastructure
	}
	// An unclassified error escaping a task is treated as infrastructure.
	// This mirrors the source policy: task bodies are responsible for
	// catching all application-level faults themselves.
	return err != nil
}

// IsAuthentication reports whether err is a credential failure.
func IsAuthentication(err error) bool {
	var app *AppError
	return errors.As(err, &app) && app.code == constants.ErrCodeAuthentication
}

// IsNotFound reports whether err is a missing-resource error.
func IsNotFound(err error) bool {
	var app *AppError
	return errors.As(err, &app) && app.code == constants.ErrCodeNotFound
}
