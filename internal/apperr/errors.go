package apperr

import (
	"errors"
	"fmt"
)

// Error is a domain error carrying a code and an operator-facing message.
// Cause is set for store failures and is not shown to clients.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Store wraps a persistence error.
func Store(op string, err error) *Error {
	return &Error{Code: CodeStoreFailure, Message: op, Cause: err}
}

// CodeOf extracts the code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// KindOf extracts the failure family from err.
func KindOf(err error) Kind {
	return CodeOf(err).Kind()
}

func IsValidation(err error) bool        { return KindOf(err) == KindValidation }
func IsInvalidTransition(err error) bool { return KindOf(err) == KindInvalidTransition }
func IsNotFound(err error) bool          { return KindOf(err) == KindNotFound }
func IsStoreFailure(err error) bool      { return KindOf(err) == KindStoreFailure }

// PublicMessage returns the message that is safe to show to a client.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Code == CodeStoreFailure {
			return "storage unavailable, please retry"
		}
		return e.Message
	}
	return "internal error"
}
