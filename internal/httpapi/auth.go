package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blockstack/gaia-gateway/internal/auth"
	"github.com/blockstack/gaia-gateway/internal/session"
)

// authRouter serves the session manager's single endpoint (spec §4.3).
func authRouter(d *Deps) http.Handler {
	routes := &authRoutes{d: d}
	r := chi.NewRouter()
	r.Get("/", routes.getAuth)
	return r
}

type authRoutes struct {
	d *Deps
}

func (h *authRoutes) getAuth(w http.ResponseWriter, r *http.Request) {
	authRequest := r.URL.Query().Get("authRequest")
	if authRequest == "" {
		writeError(w, auth.ErrMissingAuthRequest)
		return
	}

	token, err := session.BuildSession(authRequest, h.d.AuthConfig.MasterKey)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
