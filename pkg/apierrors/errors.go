// Package apierrors is the stable error-code vocabulary shared by every
// handler. Codes are machine-readable and stay constant; the human message
// may vary.
package apierrors

import (
	"errors"
	"net/http"

	"alibi/internal/domain"
)

// Code is one of the stable error codes from spec §7.
type Code string

const (
	CodeBadInput           Code = "bad_input"
	CodeAuthFailed         Code = "auth_failed"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeStorageUnavailable Code = "storage_unavailable"
	CodeUnprocessable      Code = "unprocessable_entity"
	CodeInternal           Code = "internal_error"
)

// Error is the typed error every handler converts to a JSON body.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }

// New constructs an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Status maps a Code to its HTTP status, per spec §6.1.
func (c Code) Status() int {
	switch c {
	case CodeBadInput:
		return http.StatusBadRequest
	case CodeAuthFailed:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnprocessable:
		return http.StatusUnprocessableEntity
	case CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromDomain classifies a plain error returned by a domain/service function
// into the stable API error vocabulary, defaulting to internal_error.
func FromDomain(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, domain.ErrBadInput):
		return New(CodeBadInput, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return New(CodeNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return New(CodeConflict, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return New(CodeForbidden, err.Error())
	case errors.Is(err, domain.ErrAuthFailed):
		return New(CodeAuthFailed, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		return New(CodeStorageUnavailable, err.Error())
	case errors.Is(err, domain.ErrUnprocessable):
		return New(CodeUnprocessable, err.Error())
	default:
		return New(CodeInternal, err.Error())
	}
}
