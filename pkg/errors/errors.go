package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
)

// Case lifecycle and ledger error codes
const (
	ErrInvalidTransition ErrorCode = iota + 2000
	ErrIncompleteAssessment
	ErrIncompleteSOAP
	ErrInsufficientSessions
	ErrOverReturn
	ErrLinkageInconsistency
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

// InvalidTransition names both the current and the requested status so the
// caller can render a corrective message.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("invalid transition from %s to %s", from, to),
	}
}

func IncompleteAssessment(missing string) *AppError {
	return &AppError{
		Code:    ErrIncompleteAssessment,
		Message: fmt.Sprintf("clinical assessment incomplete: %s", missing),
	}
}

func IncompleteSOAP(missing string) *AppError {
	return &AppError{
		Code:    ErrIncompleteSOAP,
		Message: fmt.Sprintf("SOAP note incomplete: %s", missing),
	}
}

func InsufficientSessions(remaining, requested int) *AppError {
	return &AppError{
		Code:    ErrInsufficientSessions,
		Message: fmt.Sprintf("insufficient sessions: %d remaining, %d requested", remaining, requested),
	}
}

func OverReturn(used, requested int) *AppError {
	return &AppError{
		Code:    ErrOverReturn,
		Message: fmt.Sprintf("return would drive used sessions negative: %d used, %d requested", used, requested),
	}
}

func LinkageInconsistency(message string) *AppError {
	return &AppError{
		Code:    ErrLinkageInconsistency,
		Message: message,
	}
}

// CodeOf extracts the ErrorCode from err, unwrapping as needed. Returns
// ErrInternal for non-application errors.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given application error code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
