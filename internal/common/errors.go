package common

import (
	"errors"
	"net/http"
)

// Error kinds shared by every service. Callers branch on these codes.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodePersistenceFailure = "PERSISTENCE_FAILURE"
	CodeInternal           = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
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
		return e.Message + ": " + e.Err.Error()
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

// WithDetails attaches structured details rendered to API clients.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func InvalidRequest(message string, err error) *AppError {
	return NewAppError(CodeInvalidRequest, message, http.StatusBadRequest, err)
}

func NotFound(message string, err error) *AppError {
	return NewAppError(CodeNotFound, message, http.StatusNotFound, err)
}

func Conflict(message string, err error) *AppError {
	return NewAppError(CodeConflict, message, http.StatusConflict, err)
}

func Persistence(message string, err error) *AppError {
	return NewAppError(CodePersistenceFailure, message, http.StatusInternalServerError, err)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// KindOf returns the code of the outermost AppError in err's chain, or
// CodeInternal when there is none.
func KindOf(err error) string {
	var target *AppError
	if errors.As(err, &target) {
		return target.Code
	}
	return CodeInternal
}
