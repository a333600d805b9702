// Package gatewayerr defines the gateway's error-kind taxonomy and its
// mapping onto HTTP status codes (spec §7).
package gatewayerr

import (
	"errors"
	"net/http"
)

// Type is one of the abstract error kinds from spec §7.
type Type string

// Error kinds.
const (
	InvalidRequest Type = "invalid_request"
	AuthFailed     Type = "auth_failed"
	NotFound       Type = "not_found"
	Conflict       Type = "conflict"
	Upstream       Type = "upstream"
	Internal       Type = "internal"
	NotImplemented Type = "not_implemented"
	InProgress     Type = "in_progress"
)

// Errno is one of the fabric-level errno tags datastore operations map
// onto an HTTP status (spec §7).
type Errno string

// Errno tags.
const (
	ENOENT  Errno = "ENOENT"
	EINVAL  Errno = "EINVAL"
	EPERM   Errno = "EPERM"
	EACCES  Errno = "EACCES"
	EEXIST  Errno = "EEXIST"
	ENODATA Errno = "ENODATA"
)

// Error is the gateway's structured error type. It always carries a Type;
// Errno is populated only for datastore-level failures.
type Error struct {
	Type    Type
	Errno   Errno
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	s := string(e.Type) + ": " + e.Message
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap allows errors.Is/As to see through to the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the error onto the HTTP status conventions of spec §6/§7.
func (e *Error) HTTPStatus() int {
	if e.Errno != "" {
		if status, ok := errnoStatus[e.Errno]; ok {
			return status
		}
	}
	switch e.Type {
	case InvalidRequest:
		return http.StatusUnauthorized // spec §7: InvalidRequest -> 401
	case AuthFailed:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Upstream:
		return http.StatusServiceUnavailable
	case NotImplemented:
		return http.StatusNotImplemented
	case InProgress:
		return http.StatusAccepted
	case Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// errnoStatus maps fabric errno tags onto HTTP codes (spec §7). ENODATA is
// mapped to 502 per the Open Question decision recorded in DESIGN.md.
var errnoStatus = map[Errno]int{
	ENOENT:  http.StatusNotFound,
	EINVAL:  http.StatusUnauthorized,
	EPERM:   http.StatusForbidden,
	EACCES:  http.StatusForbidden,
	EEXIST:  http.StatusConflict,
	ENODATA: http.StatusBadGateway,
}

// New constructs an Error of the given kind.
func New(t Type, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause}
}

// WithErrno attaches a fabric errno tag to an error.
func WithErrno(t Type, errno Errno, message string, cause error) *Error {
	return &Error{Type: t, Errno: errno, Message: message, Cause: cause}
}

// NewInvalidRequestError constructs an InvalidRequest error.
func NewInvalidRequestError(message string, cause error) *Error {
	return New(InvalidRequest, message, cause)
}

// NewAuthFailedError constructs an AuthFailed error.
func NewAuthFailedError(message string, cause error) *Error {
	return New(AuthFailed, message, cause)
}

// NewNotFoundError constructs a NotFound error.
func NewNotFoundError(message string, cause error) *Error {
	return New(NotFound, message, cause)
}

// NewConflictError constructs a Conflict error.
func NewConflictError(message string, cause error) *Error {
	return New(Conflict, message, cause)
}

// NewUpstreamError constructs an Upstream error.
func NewUpstreamError(message string, cause error) *Error {
	return New(Upstream, message, cause)
}

// NewInternalError constructs an Internal error.
func NewInternalError(message string, cause error) *Error {
	return New(Internal, message, cause)
}

// NewNotImplementedError constructs a NotImplemented error.
func NewNotImplementedError(message string, cause error) *Error {
	return New(NotImplemented, message, cause)
}

// NewInProgressError constructs an InProgress error.
func NewInProgressError(message string, cause error) *Error {
	return New(InProgress, message, cause)
}

// NewENOENT constructs a datastore "no such entry" error.
func NewENOENT(message string, cause error) *Error {
	return WithErrno(NotFound, ENOENT, message, cause)
}

// NewEINVAL constructs a datastore "invalid" error (e.g. bad signature shape).
func NewEINVAL(message string, cause error) *Error {
	return WithErrno(InvalidRequest, EINVAL, message, cause)
}

// NewEPERM constructs a datastore "not permitted" error.
func NewEPERM(message string, cause error) *Error {
	return WithErrno(AuthFailed, EPERM, message, cause)
}

// NewEACCES constructs a datastore "access denied" error.
func NewEACCES(message string, cause error) *Error {
	return WithErrno(AuthFailed, EACCES, message, cause)
}

// NewEEXIST constructs a datastore "already exists" error.
func NewEEXIST(message string, cause error) *Error {
	return WithErrno(Conflict, EEXIST, message, cause)
}

// NewENODATA constructs a datastore "could not fetch verifiable bytes" error.
func NewENODATA(message string, cause error) *Error {
	return WithErrno(Upstream, ENODATA, message, cause)
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, t Type) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// IsInvalidRequest reports whether err is an InvalidRequest error.
func IsInvalidRequest(err error) bool { return Is(err, InvalidRequest) }

// IsAuthFailed reports whether err is an AuthFailed error.
func IsAuthFailed(err error) bool { return Is(err, AuthFailed) }

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return Is(err, NotFound) }

// IsConflict reports whether err is a Conflict error.
func IsConflict(err error) bool { return Is(err, Conflict) }

// IsUpstream reports whether err is an Upstream error.
func IsUpstream(err error) bool { return Is(err, Upstream) }

// IsInternal reports whether err is an Internal error.
func IsInternal(err error) bool { return Is(err, Internal) }
