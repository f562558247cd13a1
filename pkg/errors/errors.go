package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures seen while acquiring credentials or fetching pages
type Kind string

const (
	KindNoCredentials         Kind = "no_credentials"
	KindAuthExhausted         Kind = "auth_exhausted"
	KindTransport             Kind = "transport"
	KindParseFailure          Kind = "parse_failure"
	KindChallengeSolveFailure Kind = "challenge_solve_failure"
	KindStatus                Kind = "status"
	KindUnknown               Kind = "unknown"
)

// Error is a classified failure. Code carries the HTTP status when one was received.
type Error struct {
	Kind    Kind
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error wrapping cause (which may be nil)
func New(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
}

// WithCode sets the HTTP status code on the error
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// CodeOf returns the HTTP status carried by the first *Error in err's chain, or 0
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsAuthRejection reports whether an HTTP status means the credential was refused
func IsAuthRejection(statusCode int) bool {
	return statusCode == http.StatusForbidden || statusCode == http.StatusUnauthorized
}

// IsSuccess reports whether an HTTP status is in the 2xx class
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
