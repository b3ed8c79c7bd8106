package errors

import (
	"errors"
)

// AsError attempts to convert an error to an *Error by traversing the error
// chain with errors.As. Returns the Error and true on success.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the error code from an error, or an empty code if the
// error is nil or not an *Error.
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode checks whether an error carries the specified code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsValidation reports whether the error is a validation error (VAL_xxx).
func IsValidation(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "VAL"
}

// IsAuthentication reports whether the error is an authentication failure
// (AUTH_xxx). These map to HTTP 401 and are attributable to the caller.
func IsAuthentication(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "AUTH"
}

// IsAuthorization reports whether the error is an authorization denial
// (AUTHZ_xxx). These map to HTTP 403.
func IsAuthorization(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "AUTHZ"
}

// IsNotFound reports whether the error is a not found error (NF_xxx).
// The ownership guard uses this to recognize a missing resource reported
// by an owner resolver.
func IsNotFound(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "NF"
}

// IsUnavailable reports whether the error is a dependency failure
// (UNAVAIL_xxx). These map to HTTP 503, not 401: they are never the
// caller's fault.
func IsUnavailable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "UNAVAIL"
}

// IsTimeout reports whether the error is a timeout (TIMEOUT_xxx).
func IsTimeout(err error) bool {
	e, ok := AsError(err)
	return ok && e.Code.Category() == "TIMEOUT"
}

// IsRetryable reports whether the caller may safely retry the failed
// request. Only dependency failures and timeouts are retryable; every
// client-attributable rejection is terminal for the presented credential.
func IsRetryable(err error) bool {
	return IsUnavailable(err) || IsTimeout(err)
}
