package httpapi

import (
	"net/http"

	"github.com/blockstack/gaia-gateway/internal/auth"
)

// MaxJSONBodyBytes is the 1 MiB size for JSON request bodies. No route
// applies it: JSON request bodies are read without a size limit, and
// the only bounded body is POST /v1/node/log (MaxLogAppendBytes).
const MaxJSONBodyBytes = 1 << 20

// MaxLogAppendBytes bounds log-append request bodies (spec §6: "4 KiB
// for log-append").
const MaxLogAppendBytes = 4096

// requireAuth wraps next so that it only runs once the request has
// passed spec §4.2's auth check for the given mode/capability. On
// failure it replies with a bare-text 403 per spec §4.1 step 3.
func (d *Deps) requireAuth(mode auth.Mode, capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := auth.Authenticate(r, d.AuthConfig, mode, capability)
			if err != nil {
				writeForbiddenPlain(w)
				return
			}
			ctx := auth.WithSession(r.Context(), res.Session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// withBodyLimit caps the request body at limit bytes. A limit of 0
// leaves the body unbounded (streaming file payload uploads, spec §6).
func withBodyLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// recoverMiddleware converts an uncaught panic into a 500 (spec §4.1
// step 4: "any uncaught fault becomes 500").
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				writeError(w, nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsPreflight answers every OPTIONS request with permissive CORS
// preflight headers (spec §4.1 step 1).
func corsPreflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Max-Age", "600")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
