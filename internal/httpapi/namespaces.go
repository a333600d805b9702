package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blockstack/gaia-gateway/internal/auth"
)

// namespacesRouter serves the read-only namespace endpoints (spec §6).
func namespacesRouter(d *Deps) http.Handler {
	routes := &namespaceRoutes{d: d}
	r := chi.NewRouter()
	r.With(d.requireAuth(auth.ModeEither, "names_read")).Get("/", routes.list)
	r.With(d.requireAuth(auth.ModeEither, "names_read")).Get("/{ns}", routes.info)
	r.With(d.requireAuth(auth.ModeEither, "names_read")).Get("/{ns}/names", routes.names)
	return r
}

type namespaceRoutes struct {
	d *Deps
}

func (h *namespaceRoutes) list(w http.ResponseWriter, r *http.Request) {
	raw, err := h.d.Chain.CallRPC(r.Context(), "get_all_namespaces", nil, true)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (h *namespaceRoutes) info(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")
	raw, err := h.d.Chain.CallRPC(r.Context(), "get_namespace_blockchain_record", []interface{}{ns}, true)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (h *namespaceRoutes) names(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 0 {
		page = 0
	}
	raw, err := h.d.Chain.CallRPC(r.Context(), "get_names_in_namespace", []interface{}{ns, page * namesPageSize, namesPageSize}, true)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}
