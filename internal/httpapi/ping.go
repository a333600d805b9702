package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// pingRouter serves the unauthenticated liveness check (spec §6, §8
// scenario 1).
func pingRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "alive",
			"version": gatewayVersion,
		})
	})
	return r
}

// gatewayVersion is overridden by cmd/gatewayd at build/startup time via
// SetVersion.
var gatewayVersion = "dev"

// SetVersion records the version string GET /v1/ping reports.
func SetVersion(v string) { gatewayVersion = v }
