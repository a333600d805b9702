package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blockstack/gaia-gateway/internal/auth"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
)

// blockchainsRouter serves the naming-node/UTXO proxy endpoints under
// /v1/blockchains/{chain}/... (spec §4.6, §6).
func blockchainsRouter(d *Deps) http.Handler {
	routes := &blockchainRoutes{d: d}
	r := chi.NewRouter()
	r.With(d.requireAuth(auth.ModeEither, "blockchain_read")).Get("/{chain}/name_count", routes.nameCount)
	r.With(d.requireAuth(auth.ModeEither, "blockchain_read")).Get("/{chain}/operations/{height}", routes.operations)
	r.With(d.requireAuth(auth.ModeEither, "blockchain_read")).Get("/{chain}/names/{name}/history", routes.nameHistory)
	r.With(d.requireAuth(auth.ModeEither, "blockchain_read")).Get("/{chain}/consensus", routes.consensus)
	r.With(d.requireAuth(auth.ModeEither, "blockchain_read")).Get("/{chain}/pending", routes.pending)
	r.With(d.requireAuth(auth.ModeEither, "blockchain_read")).Get("/{chain}/{address}/unspent", routes.unspent)
	r.With(d.requireAuth(auth.ModeEither, "blockchain_write")).Post("/{chain}/txs", routes.broadcastTx)
	return r
}

type blockchainRoutes struct {
	d *Deps
}

func (h *blockchainRoutes) rpcJSON(w http.ResponseWriter, r *http.Request, method string, params []interface{}, retry bool) {
	raw, err := h.d.Chain.CallRPC(r.Context(), method, params, retry)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (h *blockchainRoutes) nameCount(w http.ResponseWriter, r *http.Request) {
	h.rpcJSON(w, r, "get_num_names", nil, true)
}

func (h *blockchainRoutes) operations(w http.ResponseWriter, r *http.Request) {
	height := chi.URLParam(r, "height")
	h.rpcJSON(w, r, "get_ops_at", []interface{}{height}, true)
}

func (h *blockchainRoutes) nameHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	h.rpcJSON(w, r, "get_name_history", []interface{}{name}, true)
}

func (h *blockchainRoutes) consensus(w http.ResponseWriter, r *http.Request) {
	h.rpcJSON(w, r, "get_consensus_at", nil, true)
}

func (h *blockchainRoutes) pending(w http.ResponseWriter, r *http.Request) {
	h.rpcJSON(w, r, "get_pending_transactions", nil, true)
}

func (h *blockchainRoutes) unspent(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	raw, err := h.d.Chain.GetUnspent(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (h *blockchainRoutes) broadcastTx(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("failed to read request body", err))
		return
	}
	var req struct {
		TxHex string `json:"tx"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.TxHex == "" {
		writeError(w, gatewayerr.NewInvalidRequestError("tx field is required", err))
		return
	}

	raw, err := h.d.Chain.BroadcastTx(r.Context(), req.TxHex)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}
