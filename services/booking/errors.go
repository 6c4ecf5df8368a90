package booking

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced to callers of the assignment state machine.
const (
	CodeValidation = "validation"
	CodeForbidden  = "forbidden"
	CodeNotFound   = "not_found"
	CodeConflict   = "conflict"
	CodeDependency = "dependency"
)

// Error is a caller-facing failure with the HTTP status it maps to.
type Error struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NewValidationError(msg string) error {
	return &Error{Code: CodeValidation, Message: msg, Status: http.StatusBadRequest}
}

func NewForbiddenError(msg string) error {
	return &Error{Code: CodeForbidden, Message: msg, Status: http.StatusForbidden}
}

func NewNotFoundError(msg string) error {
	return &Error{Code: CodeNotFound, Message: msg, Status: http.StatusNotFound}
}

func NewConflictError(msg string) error {
	return &Error{Code: CodeConflict, Message: msg, Status: http.StatusConflict}
}

// NewDependencyError wraps a store or downstream failure.
func NewDependencyError(msg string, err error) error {
	return &Error{Code: CodeDependency, Message: msg, Status: http.StatusInternalServerError, Err: err}
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	e, ok := AsError(err)
	return ok && e.Code == code
}

// StatusOf maps err to an HTTP status; unknown errors are 500.
func StatusOf(err error) int {
	if e, ok := AsError(err); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}
