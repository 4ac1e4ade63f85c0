// Package errors defines the typed errors surfaced by the settlement layer and
// their mapping to HTTP status codes.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code classifies a ServiceError.
type Code string

const (
	CodeValidation   Code = "VALIDATION_FAILED"
	CodeNotFound     Code = "NOT_FOUND"
	CodeStorage      Code = "STORAGE_FAILURE"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeInvalidToken Code = "INVALID_TOKEN"
	CodeForbidden    Code = "FORBIDDEN"
	CodeRateLimited  Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// ServiceError is an error carrying a machine-readable code and the HTTP status
// a handler should answer with.
type ServiceError struct {
	Code       Code           `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Is matches another ServiceError by code, so errors.Is(err, &ServiceError{Code: CodeNotFound}) works.
func (e *ServiceError) Is(target error) bool {
	var other *ServiceError
	if !stderrors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// WithDetails returns a copy of the error with an extra detail attached.
func (e *ServiceError) WithDetails(key string, value any) *ServiceError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func newError(code Code, status int, msg string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: msg, HTTPStatus: status, Err: err}
}

// Validation reports malformed or missing input. Always raised before any write.
func Validation(msg string) *ServiceError {
	return newError(CodeValidation, http.StatusBadRequest, msg, nil)
}

// NotFound reports a missing record.
func NotFound(resource, id string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s %s not found", resource, id), nil).
		WithDetails("resource", resource)
}

// Storage reports a failed required persistence step.
func Storage(op string, err error) *ServiceError {
	return newError(CodeStorage, http.StatusInternalServerError, op+" failed", err)
}

func Unauthorized(msg string) *ServiceError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, msg, nil)
}

func InvalidToken(err error) *ServiceError {
	return newError(CodeInvalidToken, http.StatusUnauthorized, "invalid or expired token", err)
}

func Forbidden(msg string) *ServiceError {
	return newError(CodeForbidden, http.StatusForbidden, msg, nil)
}

// RateLimitExceeded reports a throttled client.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return newError(CodeRateLimited, http.StatusTooManyRequests, "rate limit exceeded", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

func Internal(msg string, err error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, msg, err)
}

// HTTPStatusOf maps any error to the status a handler should return.
func HTTPStatusOf(err error) int {
	var se *ServiceError
	if stderrors.As(err, &se) && se.HTTPStatus != 0 {
		return se.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsCode reports whether err is a ServiceError with the given code.
func IsCode(err error, code Code) bool {
	var se *ServiceError
	return stderrors.As(err, &se) && se.Code == code
}
