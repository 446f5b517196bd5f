// Package apperror defines the error vocabulary shared by the session,
// dashboard and HTTP layers.
//
// Every error that crosses a package boundary is either a plain wrapped error
// (fmt.Errorf("...: %w", err)) or an *AppError whose Err field is one of the
// sentinels below. Callers branch with errors.Is / errors.As, never on strings.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrForbidden  = errors.New("forbidden")

	// ErrNotAuthenticated means the identity provider has no session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrInvalidCredentials means the identity provider rejected a login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUpstream means an external service answered with a non-2xx status
	// or could not be reached.
	ErrUpstream = errors.New("upstream request failed")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Status  int    // Optional: upstream HTTP status, 0 if the request never completed
	Detail  string // Optional: explanation supplied by the upstream server
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// NotAuthenticated is returned by identity providers when no session exists.
func NotAuthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrNotAuthenticated,
		Message: message,
	}
}

// InvalidCredentials carries the provider's human-readable rejection reason.
func InvalidCredentials(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: message,
	}
}

// Upstream describes a failed call to an external service. status is the
// HTTP status code received, or 0 when no response arrived. detail is the
// server-provided explanation when one was present.
func Upstream(op string, status int, detail string) *AppError {
	msg := fmt.Sprintf("%s failed with status %d", op, status)
	if status == 0 {
		msg = fmt.Sprintf("%s failed", op)
	}
	if detail != "" {
		msg = detail
	}
	return &AppError{
		Err:     ErrUpstream,
		Message: msg,
		Status:  status,
		Detail:  detail,
	}
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}

// DetailOf returns the upstream server's explanation carried by err, or "".
func DetailOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Detail
	}
	return ""
}
