package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blockstack/gaia-gateway/internal/auth"
	"github.com/blockstack/gaia-gateway/internal/chain"
)

// addressesRouter serves GET /v1/addresses/{chain}/{address} (spec §6).
func addressesRouter(d *Deps) http.Handler {
	routes := &addressRoutes{d: d}
	r := chi.NewRouter()
	r.With(d.requireAuth(auth.ModeEither, "names_read")).Get("/{chain}/{address}", routes.namesOwnedBy)
	return r
}

type addressRoutes struct {
	d *Deps
}

func (h *addressRoutes) namesOwnedBy(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	canonical, err := chain.ReencodeAddress(address)
	if err != nil {
		writeError(w, err)
		return
	}

	raw, err := h.d.Chain.CallRPC(r.Context(), "get_names_owned_by_address", []interface{}{canonical}, true)
	if err != nil {
		writeError(w, err)
		return
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"names": names})
}
