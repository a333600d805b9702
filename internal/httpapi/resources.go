package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
	"github.com/blockstack/gaia-gateway/internal/store"
)

// resourcesRouter serves GET /v1/resources/{name}/{app_domain} (spec
// §6): an unauthenticated public read of a single named app resource
// file, addressed by the owning name's datastore public key.
func resourcesRouter(d *Deps) http.Handler {
	routes := &resourceRoutes{d: d}
	r := chi.NewRouter()
	r.Get("/{name}/{app_domain}", routes.getResource)
	return r
}

type resourceRoutes struct {
	d *Deps
}

func (h *resourceRoutes) getResource(w http.ResponseWriter, r *http.Request) {
	fileName := r.URL.Query().Get("name")
	pubkeyHex := r.URL.Query().Get("pubkey")
	if fileName == "" || pubkeyHex == "" {
		writeError(w, gatewayerr.NewInvalidRequestError("name and pubkey query arguments are required", nil))
		return
	}

	pub, err := cryptoutil.ParsePublicKeyHex(pubkeyHex)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("malformed pubkey", err))
		return
	}
	datastoreID := cryptoutil.DatastoreID(pub)

	ds, err := h.d.Store.ReadDatastore(r.Context(), datastoreID)
	if err != nil {
		writeError(w, err)
		return
	}

	// Public resource reads are not gated behind a session, so every
	// device in the datastore's own record is offered for merge
	// verification (spec §4.4.1, §6 "app resources" being a public read
	// surface distinct from the authenticated stores/ endpoints).
	keys := store.DevicePubKeys{}
	for _, deviceID := range ds.DeviceIDs {
		keys[deviceID] = pub
	}

	header, err := h.d.Store.ReadFileHeader(r.Context(), ds, keys, fileName)
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := h.d.Store.ReadFile(r.Context(), ds, header)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}
