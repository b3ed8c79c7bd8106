package errors

import (
	"errors"
	"fmt"
)

// New creates a new Error with the specified code and message.
//
// Example:
//
//	err := errors.New(errors.CodeUnknownKey, "no signing key matches the token key id")
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with the specified code and formatted message.
// Format arguments must not include token bytes or key material.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a code and message. The wrapped error
// becomes the Cause of the new error. Returns nil if err is nil.
//
// Example:
//
//	keys, err := resolver.Fetch(ctx)
//	if err != nil {
//	    return errors.Wrap(err, errors.CodeKeyUnavailable, "failed to fetch signing keys")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with a formatted message. Returns nil if
// err is nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Validation creates a new general validation error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Validationf creates a new validation error with a formatted message.
func Validationf(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

// NoCredential creates the error returned when a request carries no usable
// bearer credential.
func NoCredential(message string) *Error {
	return New(CodeNoCredential, message)
}

// Unauthenticated creates the error returned when an identity is required
// but absent.
func Unauthenticated(message string) *Error {
	return New(CodeUnauthenticated, message)
}

// Forbidden creates a new authorization denial.
func Forbidden(message string) *Error {
	return New(CodeAuthorization, message)
}

// NotFound creates a new not found error.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// NotFoundf creates a new not found error with a formatted message.
func NotFoundf(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

// Internal creates a new internal error. Use for unexpected failures that
// should not expose implementation details to callers.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Unavailable creates a new dependency-unavailable error.
func Unavailable(message string) *Error {
	return New(CodeUnavailableDependency, message)
}

// Timeout creates a new timeout error.
func Timeout(message string) *Error {
	return New(CodeTimeout, message)
}

// FromError converts any error to an *Error. If the error already is (or
// wraps) an *Error, that value is returned; otherwise the error is wrapped
// as an internal error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
