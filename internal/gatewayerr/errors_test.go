package gatewayerr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying error")
	withCause := &Error{Type: InvalidRequest, Message: "bad body", Cause: cause}
	assert.Equal(t, "invalid_request: bad body: underlying error", withCause.Error())

	noCause := &Error{Type: Internal, Message: "boom"}
	assert.Equal(t, "internal: boom", noCause.Error())
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("underlying error")
	err := New(Internal, "test", cause)
	assert.Equal(t, cause, err.Unwrap())

	noCause := New(Internal, "test", nil)
	assert.Nil(t, noCause.Unwrap())
}

func TestConstructorsAndCheckers(t *testing.T) {
	t.Parallel()

	cause := errors.New("cause")
	tests := []struct {
		name        string
		constructor func(string, error) *Error
		wantType    Type
		checker     func(error) bool
	}{
		{"InvalidRequest", NewInvalidRequestError, InvalidRequest, IsInvalidRequest},
		{"AuthFailed", NewAuthFailedError, AuthFailed, IsAuthFailed},
		{"NotFound", NewNotFoundError, NotFound, IsNotFound},
		{"Conflict", NewConflictError, Conflict, IsConflict},
		{"Upstream", NewUpstreamError, Upstream, IsUpstream},
		{"Internal", NewInternalError, Internal, IsInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.constructor("test message", cause)
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, "test message", err.Message)
			assert.Equal(t, cause, err.Cause)
			assert.True(t, tt.checker(err))
			assert.False(t, tt.checker(errors.New("plain")))
		})
	}

	assert.False(t, IsInternal(nil))
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"invalid request", NewInvalidRequestError("x", nil), http.StatusUnauthorized},
		{"auth failed", NewAuthFailedError("x", nil), http.StatusForbidden},
		{"not found", NewNotFoundError("x", nil), http.StatusNotFound},
		{"conflict", NewConflictError("x", nil), http.StatusConflict},
		{"upstream", NewUpstreamError("x", nil), http.StatusServiceUnavailable},
		{"not implemented", NewNotImplementedError("x", nil), http.StatusNotImplemented},
		{"in progress", NewInProgressError("x", nil), http.StatusAccepted},
		{"internal", NewInternalError("x", nil), http.StatusInternalServerError},
		{"ENOENT", NewENOENT("x", nil), http.StatusNotFound},
		{"EINVAL", NewEINVAL("x", nil), http.StatusUnauthorized},
		{"EPERM", NewEPERM("x", nil), http.StatusForbidden},
		{"EACCES", NewEACCES("x", nil), http.StatusForbidden},
		{"EEXIST", NewEEXIST("x", nil), http.StatusConflict},
		{"ENODATA", NewENODATA("x", nil), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}
