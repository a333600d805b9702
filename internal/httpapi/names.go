package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blockstack/gaia-gateway/internal/auth"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
)

const namesPageSize = 100

// namesRouter serves the naming endpoints under /v1/names (spec §6):
// listing, register/renew, info, revoke, history, ownership transfer,
// zone files, public key, and profile, dispatched across the registrar
// queue (mutating ops) and the chain proxy (reads).
func namesRouter(d *Deps) http.Handler {
	routes := &nameRoutes{d: d}
	r := chi.NewRouter()

	r.With(d.requireAuth(auth.ModeEither, "names_read")).Get("/", routes.list)
	r.With(d.requireAuth(auth.ModeEither, "names_write")).Post("/", routes.register)
	r.With(d.requireAuth(auth.ModeEither, "names_read")).Get("/{name}", routes.info)
	r.With(d.requireAuth(auth.ModeEither, "names_write")).Delete("/{name}", routes.revoke)
	r.With(d.requireAuth(auth.ModeEither, "names_read")).Get("/{name}/history", routes.history)
	r.With(d.requireAuth(auth.ModeEither, "names_write")).Put("/{name}/owner", routes.transfer)
	r.With(d.requireAuth(auth.ModeEither, "names_read")).Get("/{name}/zonefile", routes.getZonefile)
	r.With(d.requireAuth(auth.ModeEither, "names_write")).Put("/{name}/zonefile", routes.putZonefile)
	r.With(d.requireAuth(auth.ModeEither, "names_read")).Get("/{name}/zonefile/{hash}", routes.getZonefileByHash)
	r.With(d.requireAuth(auth.ModeEither, "names_write")).Put("/{name}/zonefile/zonefileHash", routes.putZonefileHash)
	r.With(d.requireAuth(auth.ModeEither, "names_read")).Get("/{name}/public_key", routes.publicKey)
	r.With(d.requireAuth(auth.ModeEither, "names_read")).Get("/{name}/profile", routes.getProfile)
	r.With(d.requireAuth(auth.ModeEither, "names_write")).Post("/{name}/profile", routes.putProfile)
	r.With(d.requireAuth(auth.ModeEither, "names_write")).Put("/{name}/profile", routes.putProfile)

	return r
}

type nameRoutes struct {
	d *Deps
}

func (h *nameRoutes) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 0 {
		page = 0
	}
	raw, err := h.d.Chain.CallRPC(r.Context(), "get_all_names", []interface{}{page * namesPageSize, namesPageSize}, true)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (h *nameRoutes) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string                 `json:"name"`
		Owner string                 `json:"owner_address"`
		Extra map[string]interface{} `json:"-"`
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("failed to read body", err))
		return
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Name == "" {
		writeError(w, gatewayerr.NewInvalidRequestError("name is required", err))
		return
	}
	entry := h.d.Registrar.Enqueue("register", req.Name, map[string]interface{}{"owner_address": req.Owner})
	writeJSON(w, http.StatusAccepted, entry)
}

func (h *nameRoutes) info(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	raw, err := h.d.Chain.CallRPC(r.Context(), "get_name_blockchain_record", []interface{}{name}, true)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (h *nameRoutes) revoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	entry := h.d.Registrar.Enqueue("revoke", name, nil)
	writeJSON(w, http.StatusAccepted, entry)
}

func (h *nameRoutes) history(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	raw, err := h.d.Chain.CallRPC(r.Context(), "get_name_history", []interface{}{name}, true)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (h *nameRoutes) transfer(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("failed to read body", err))
		return
	}
	var req struct {
		Owner string `json:"owner"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Owner == "" {
		writeError(w, gatewayerr.NewInvalidRequestError("owner is required", err))
		return
	}
	entry := h.d.Registrar.Enqueue("transfer", name, map[string]interface{}{"owner": req.Owner})
	writeJSON(w, http.StatusAccepted, entry)
}

func (h *nameRoutes) getZonefile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	raw, err := h.d.Chain.CallRPC(r.Context(), "get_name_zonefile", []interface{}{name}, true)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (h *nameRoutes) putZonefile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("failed to read body", err))
		return
	}
	entry := h.d.Registrar.Enqueue("update", name, map[string]interface{}{"zonefile": string(body)})
	writeJSON(w, http.StatusAccepted, entry)
}

func (h *nameRoutes) getZonefileByHash(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	raw, err := h.d.Chain.CallRPC(r.Context(), "get_zonefile_by_hash", []interface{}{hash}, true)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("raw") == "1" {
		w.Header().Set("Content-Type", "application/octet-stream")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	_, _ = w.Write(raw)
}

func (h *nameRoutes) putZonefileHash(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("failed to read body", err))
		return
	}
	var req struct {
		ZonefileHash string `json:"zonefile_hash"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.ZonefileHash == "" {
		writeError(w, gatewayerr.NewInvalidRequestError("zonefile_hash is required", err))
		return
	}
	entry := h.d.Registrar.Enqueue("update", name, map[string]interface{}{"zonefile_hash": req.ZonefileHash})
	writeJSON(w, http.StatusAccepted, entry)
}

func (h *nameRoutes) publicKey(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	raw, err := h.d.Chain.CallRPC(r.Context(), "get_name_blockchain_record", []interface{}{name}, true)
	if err != nil {
		writeError(w, err)
		return
	}
	var record struct {
		DatastorePubkey string `json:"datastore_pubkey"`
	}
	_ = json.Unmarshal(raw, &record)
	writeJSON(w, http.StatusOK, map[string]string{"public_key": record.DatastorePubkey})
}

func (h *nameRoutes) getProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	raw, err := h.d.Chain.CallRPC(r.Context(), "get_name_zonefile", []interface{}{name}, true)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (h *nameRoutes) putProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("failed to read body", err))
		return
	}
	entry := h.d.Registrar.Enqueue("update", name, map[string]interface{}{"profile": string(body)})
	writeJSON(w, http.StatusAccepted, entry)
}
