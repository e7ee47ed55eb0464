package conv

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotHandled is returned by Dispatch when no mounted route's pattern
// matches the request path. It is a fall-through signal, not a failure:
// callers may hand the request to another handler. ServeHTTP converts it
// into a 404 response at the edge.
var ErrNotHandled = errors.New("request not handled")

// Kind classifies a dispatch failure. Each kind maps to one HTTP status.
type Kind int

const (
	KindInternal Kind = iota
	KindConfiguration
	KindAlreadyExists
	KindInvalidData
	KindNotFound
	KindNotSupported
	KindPermissionDenied

	// kindMethodNotAllowed is produced only by route lookup, when a
	// pattern matches under a different method. It is not part of the
	// handler-facing taxonomy.
	kindMethodNotAllowed

	// kindRateLimited is produced only by the RateLimit middleware.
	kindRateLimited
)

// String returns the wire name of the kind, used in error response bodies.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAlreadyExists:
		return "already-exists"
	case KindInvalidData:
		return "invalid-data"
	case KindNotFound:
		return "not-found"
	case KindNotSupported:
		return "not-supported"
	case KindPermissionDenied:
		return "permission-denied"
	case kindMethodNotAllowed:
		return "method-not-allowed"
	case kindRateLimited:
		return "rate-limited"
	default:
		return "internal"
	}
}

func (k Kind) status() int {
	switch k {
	case KindAlreadyExists:
		return http.StatusConflict
	case KindInvalidData:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindNotSupported:
		return http.StatusNotImplemented
	case KindPermissionDenied:
		return http.StatusUnauthorized
	case kindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case kindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified dispatch error. Handlers return (or panic with)
// *Error values to control the response status; any other error maps
// to KindInternal and a 500.
type Error struct {
	Kind    Kind
	Message string
}

// Error returns the message.
func (e *Error) Error() string { return e.Message }

// StatusCode returns the HTTP status for the error's kind.
func (e *Error) StatusCode() int { return e.Kind.status() }

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	StatusCode() int
}

// ErrorStatus extracts the HTTP status code from an error. Returns
// http.StatusInternalServerError if the error does not implement StatusCoder.
func ErrorStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AlreadyExists returns a 409-mapped error.
func AlreadyExists(format string, args ...any) *Error {
	return newError(KindAlreadyExists, format, args...)
}

// InvalidData returns a 400-mapped error for missing or malformed input.
func InvalidData(format string, args ...any) *Error {
	return newError(KindInvalidData, format, args...)
}

// NotFound returns a 404-mapped error.
func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, format, args...)
}

// NotSupported returns a 501-mapped error.
func NotSupported(format string, args ...any) *Error {
	return newError(KindNotSupported, format, args...)
}

// PermissionDenied returns a 401-mapped error.
func PermissionDenied(format string, args ...any) *Error {
	return newError(KindPermissionDenied, format, args...)
}

// Internal returns a 500-mapped error.
func Internal(format string, args ...any) *Error {
	return newError(KindInternal, format, args...)
}

// configError reports a setup problem: an unresolvable schema, a bad
// registration, or a handler the framework cannot describe. Configuration
// errors surface as panics at registration time, never per request.
func configError(format string, args ...any) *Error {
	return newError(KindConfiguration, format, args...)
}
