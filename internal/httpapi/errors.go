package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
	"github.com/blockstack/gaia-gateway/internal/logger"
)

// errorBody is the wire shape of every error response (spec §7:
// "all error responses carry {"error": "...", "errno": "..."?}").
type errorBody struct {
	Error string `json:"error"`
	Errno string `json:"errno,omitempty"`
}

// writeError renders err as a JSON error response with the status
// dictated by its gatewayerr.Type/Errno mapping. A plain (non-gatewayerr)
// error is treated as Internal.
func writeError(w http.ResponseWriter, err error) {
	var gwErr *gatewayerr.Error
	if !errors.As(err, &gwErr) {
		gwErr = gatewayerr.NewInternalError("unexpected error", err)
	}

	if gwErr.Cause != nil {
		logger.Debugf("request failed: %v", gwErr)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(gwErr.HTTPStatus())
	body := errorBody{Error: gwErr.Message}
	if gwErr.Errno != "" {
		body.Errno = string(gwErr.Errno)
	}
	_ = json.NewEncoder(w).Encode(body)
}

// writeForbiddenPlain replies with a bare-text 403, used specifically for
// auth failures at the dispatcher layer (spec §4.1 step 3: "reply 403
// (text/plain, no JSON to avoid leaking structure)").
func writeForbiddenPlain(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte("forbidden"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
