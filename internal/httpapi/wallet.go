package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blockstack/gaia-gateway/internal/auth"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
	"github.com/blockstack/gaia-gateway/internal/wallet"
)

// walletRouter serves the master-password-gated wallet endpoints (spec
// §6). Every route here requires ModePassword: the wallet file is a
// local secret with no notion of a per-app session capability.
func walletRouter(d *Deps) http.Handler {
	routes := &walletRoutes{d: d}
	r := chi.NewRouter()
	pw := d.requireAuth(auth.ModePassword, "")

	r.With(pw).Get("/keys", routes.getKeys)
	r.With(pw).Put("/keys", routes.putKeys)
	r.With(pw).Put("/keys/{field}", routes.putKeyField)
	r.With(pw).Get("/payment_address", routes.paymentAddress)
	r.With(pw).Get("/owner_address", routes.ownerAddress)
	r.With(pw).Get("/data_pubkey", routes.dataPubkey)
	r.With(pw).Get("/balance", routes.getBalance)
	r.With(pw).Post("/balance", routes.getBalance)
	r.With(pw).Put("/password", routes.putPassword)

	return r
}

type walletRoutes struct {
	d *Deps
}

func (h *walletRoutes) wallet() (*wallet.File, error) {
	if h.d.Node == nil || h.d.Node.Wallet == nil {
		return nil, gatewayerr.NewNotImplementedError("no wallet file is configured", nil)
	}
	return h.d.Node.Wallet, nil
}

func (h *walletRoutes) getKeys(w http.ResponseWriter, r *http.Request) {
	wf, err := h.wallet()
	if err != nil {
		writeError(w, err)
		return
	}
	keys, err := wf.Keys()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *walletRoutes) putKeys(w http.ResponseWriter, r *http.Request) {
	wf, err := h.wallet()
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("failed to read request body", err))
		return
	}
	var keys wallet.Keys
	if err := json.Unmarshal(body, &keys); err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("malformed key set", err))
		return
	}
	if err := wf.SetKeys(keys); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (h *walletRoutes) putKeyField(w http.ResponseWriter, r *http.Request) {
	wf, err := h.wallet()
	if err != nil {
		writeError(w, err)
		return
	}
	field := wallet.KeyField(chi.URLParam(r, "field"))
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("failed to read request body", err))
		return
	}
	var req struct {
		PrivateKey string `json:"private_key"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.PrivateKey == "" {
		writeError(w, gatewayerr.NewInvalidRequestError("private_key is required", err))
		return
	}
	if err := wf.SetKeyField(field, req.PrivateKey); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *walletRoutes) paymentAddress(w http.ResponseWriter, r *http.Request) {
	wf, err := h.wallet()
	if err != nil {
		writeError(w, err)
		return
	}
	addr, err := wf.PaymentAddress()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr})
}

func (h *walletRoutes) ownerAddress(w http.ResponseWriter, r *http.Request) {
	wf, err := h.wallet()
	if err != nil {
		writeError(w, err)
		return
	}
	addr, err := wf.OwnerAddress()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr})
}

func (h *walletRoutes) dataPubkey(w http.ResponseWriter, r *http.Request) {
	wf, err := h.wallet()
	if err != nil {
		writeError(w, err)
		return
	}
	pub, err := wf.DataPubkey()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": pub})
}

// getBalance resolves the wallet's payment address and asks the UTXO
// service for its unspent outputs (spec §6 "GET/POST
// /v1/wallet/balance"). It returns the UTXO service's response as-is:
// the output values are not summed, and a POST body is not read.
func (h *walletRoutes) getBalance(w http.ResponseWriter, r *http.Request) {
	wf, err := h.wallet()
	if err != nil {
		writeError(w, err)
		return
	}
	addr, err := wf.PaymentAddress()
	if err != nil {
		writeError(w, err)
		return
	}
	if addr == "" {
		writeError(w, gatewayerr.NewNotFoundError("wallet has no payment address configured", nil))
		return
	}
	if h.d.Chain == nil {
		writeError(w, gatewayerr.NewNotImplementedError("no chain client is configured", nil))
		return
	}
	raw, err := h.d.Chain.GetUnspent(r.Context(), addr)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (h *walletRoutes) putPassword(w http.ResponseWriter, r *http.Request) {
	wf, err := h.wallet()
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("failed to read request body", err))
		return
	}
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.NewPassword == "" {
		writeError(w, gatewayerr.NewInvalidRequestError("new_password is required", err))
		return
	}
	if err := wf.SetPassword(req.OldPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
