package common

import (
	"errors"
	"net/http"
)

// AppError is an error that carries the API code and HTTP status it renders as.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// ErrorMapping binds a domain sentinel error to its API representation.
type ErrorMapping struct {
	Target  error
	Status  int
	Code    string
	Message string
	Details any
}

// MapError converts err with the first mapping whose Target matches. An empty
// mapping Message uses err's own text. AppErrors already in the chain are
// returned as is. The boolean is false when nothing matched.
func MapError(err error, mappings ...ErrorMapping) (*AppError, bool) {
	if err == nil {
		return nil, false
	}
	for _, m := range mappings {
		if !errors.Is(err, m.Target) {
			continue
		}
		msg := m.Message
		if msg == "" {
			msg = err.Error()
		}
		status := m.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return &AppError{Code: m.Code, Message: msg, HTTPStatus: status, Err: err, Details: m.Details}, true
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
