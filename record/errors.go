package record

import (
	"errors"
	"fmt"
)

// Code identifies a category of record operation failure.
type Code string

const (
	// CodeValidation marks input that is missing or malformed.
	CodeValidation Code = "VALIDATION_ERROR"

	// CodeNotFound marks an operation on an id with no record.
	CodeNotFound Code = "NOT_FOUND"

	// CodeConflict marks a create with an id that is already taken.
	CodeConflict Code = "CONFLICT"

	// CodeStore marks a failure of the underlying store.
	CodeStore Code = "STORE_ERROR"
)

// Error is a coded record error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrValidation = &Error{Code: CodeValidation}
	ErrNotFound   = &Error{Code: CodeNotFound}
	ErrConflict   = &Error{Code: CodeConflict}
	ErrStore      = &Error{Code: CodeStore}
)

func validationError(message string, details map[string]any) *Error {
	return &Error{Code: CodeValidation, Message: message, Details: details}
}

func notFoundError(id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("record %q not found", id)}
}

func conflictError(id string) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf("record %q already exists", id)}
}

func storeError(message string, cause error) *Error {
	return &Error{Code: CodeStore, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if
// there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
