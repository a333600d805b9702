package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blockstack/gaia-gateway/internal/auth"
)

// pricesRouter serves the namespace/name price-quote endpoints (spec §6).
func pricesRouter(d *Deps) http.Handler {
	routes := &priceRoutes{d: d}
	r := chi.NewRouter()
	r.With(d.requireAuth(auth.ModeEither, "names_read")).Get("/namespaces/{ns}", routes.namespacePrice)
	r.With(d.requireAuth(auth.ModeEither, "names_read")).Get("/names/{name}", routes.namePrice)
	return r
}

type priceRoutes struct {
	d *Deps
}

func (h *priceRoutes) namespacePrice(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "ns")
	raw, err := h.d.Chain.CallRPC(r.Context(), "get_namespace_cost", []interface{}{ns}, true)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (h *priceRoutes) namePrice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	raw, err := h.d.Chain.CallRPC(r.Context(), "get_name_cost", []interface{}{name}, true)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}
