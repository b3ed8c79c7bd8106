package errors

import (
	"fmt"
	"net/http"
)

// Error is the structured error carried across quillforge-auth package
// boundaries. It pairs a stable [Code] with a human-readable message and an
// optional wrapped cause.
//
// Error values are immutable after creation: the With* helpers return copies
// rather than mutating in place. Messages may be shown to end users and must
// never contain token bytes, key material, or claim payloads.
type Error struct {
	// Code is the machine-readable error code (e.g., "AUTH_008").
	Code Code

	// Message is the human-readable error message.
	Message string

	// Cause is the underlying error, if any. Accessible via Unwrap for
	// errors.Is / errors.As chain inspection.
	Cause error

	// Details carries additional non-sensitive context, such as a key id
	// or resource id.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, supporting errors.Unwrap, errors.Is,
// and errors.As from the standard library.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status code implied by the error's category.
// This is the single place where the error taxonomy is mapped onto wire
// semantics; the HTTP middleware and the ownership guard both rely on it.
func (e *Error) HTTPStatus() int {
	switch e.Code.Category() {
	case "VAL":
		return http.StatusBadRequest
	case "AUTH":
		return http.StatusUnauthorized
	case "AUTHZ":
		return http.StatusForbidden
	case "NF":
		return http.StatusNotFound
	case "UNAVAIL":
		return http.StatusServiceUnavailable
	case "TIMEOUT":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WithDetail returns a copy of the error with a single detail key-value pair
// added. The receiver is not modified.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: details,
	}
}

// Format implements fmt.Formatter. Use %v for standard output and %+v for
// detailed output including details and the cause chain.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "Error{Code: %q, Message: %q", e.Code, e.Message)
			if len(e.Details) > 0 {
				fmt.Fprintf(s, ", Details: %v", e.Details)
			}
			if e.Cause != nil {
				fmt.Fprintf(s, ", Cause: %+v", e.Cause)
			}
			fmt.Fprint(s, "}")
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
