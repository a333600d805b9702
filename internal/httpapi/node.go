package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/blockstack/gaia-gateway/internal/auth"
	"github.com/blockstack/gaia-gateway/internal/drivers"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
	"github.com/blockstack/gaia-gateway/internal/wallet"
)

// NodeConfig holds the small pieces of node-management state the
// gateway exposes over HTTP (spec §6 "Node management"): the live INI
// config sections, an in-memory tail of the log file, the opaque
// wallet file, and the factories available to POST
// /v1/node/drivers/storage/{name}. None of this is the durable state
// the datastore core depends on (spec §5) — it is operational
// surface for the node operator, kept in memory the same way
// internal/registrar.Queue keeps its entries in memory.
type NodeConfig struct {
	mu       sync.RWMutex
	sections map[string]map[string]string

	logMu  sync.Mutex
	logTail []byte

	Wallet *wallet.File

	// DriverFactories maps a driver "type" name (as named in a POST
	// body, e.g. "memory" or "localdisk") to a constructor. Only the
	// two driver kinds this gateway ships are registered here; a
	// factory for a driver kind it doesn't know about simply isn't
	// present, and registration fails with NotImplemented.
	DriverFactories map[string]DriverFactory

	Registry *drivers.Registry
}

// DriverFactory builds a Driver from a JSON-decoded parameter map
// (spec §4.7: drivers are configured, not hard-coded).
type DriverFactory func(name string, params map[string]interface{}) (drivers.Driver, error)

// maxLogTail bounds how much of the log file GET /v1/node/log replays;
// older bytes are dropped as new ones are appended.
const maxLogTail = 64 * 1024

// NewNodeConfig constructs an empty node config, ready to accept
// section writes and driver registrations.
func NewNodeConfig(registry *drivers.Registry, w *wallet.File) *NodeConfig {
	return &NodeConfig{
		sections:        make(map[string]map[string]string),
		Wallet:          w,
		DriverFactories: make(map[string]DriverFactory),
		Registry:        registry,
	}
}

func (n *NodeConfig) appendLog(line string) {
	n.logMu.Lock()
	defer n.logMu.Unlock()
	n.logTail = append(n.logTail, []byte(line)...)
	if len(n.logTail) > maxLogTail {
		n.logTail = n.logTail[len(n.logTail)-maxLogTail:]
	}
}

func (n *NodeConfig) tailLog() []byte {
	n.logMu.Lock()
	defer n.logMu.Unlock()
	out := make([]byte, len(n.logTail))
	copy(out, n.logTail)
	return out
}

// nodeRouter serves node-management endpoints (spec §6), all gated
// behind the master password.
func nodeRouter(d *Deps) http.Handler {
	routes := &nodeRoutes{d: d}
	pw := d.requireAuth(auth.ModePassword, "")

	r := chi.NewRouter()
	r.With(pw).Get("/config", routes.getConfig)
	r.With(pw).Get("/config/{section}", routes.getConfig)
	r.With(pw).Get("/config/{section}/{field}", routes.getConfig)
	r.With(pw).Post("/config/{section}", routes.postConfig)
	r.With(pw).Post("/config/{section}/{field}", routes.postConfig)
	r.With(pw).Delete("/config/{section}", routes.deleteConfig)
	r.With(pw).Delete("/config/{section}/{field}", routes.deleteConfig)

	r.With(pw).Get("/log", routes.getLog)
	r.With(pw, withBodyLimit(MaxLogAppendBytes)).Post("/log", routes.postLog)

	r.With(pw).Get("/drivers/storage/{name}", routes.getDriver)
	r.With(pw).Post("/drivers/storage/{name}", routes.postDriver)

	r.With(pw).Get("/registrar/state", routes.registrarState)

	return r
}

type nodeRoutes struct {
	d *Deps
}

func (h *nodeRoutes) node() (*NodeConfig, error) {
	if h.d.Node == nil {
		return nil, gatewayerr.NewNotImplementedError("node management is not configured", nil)
	}
	return h.d.Node, nil
}

func (h *nodeRoutes) getConfig(w http.ResponseWriter, r *http.Request) {
	n, err := h.node()
	if err != nil {
		writeError(w, err)
		return
	}
	section := chi.URLParam(r, "section")
	field := chi.URLParam(r, "field")

	n.mu.RLock()
	defer n.mu.RUnlock()

	if section == "" {
		writeJSON(w, http.StatusOK, n.sections)
		return
	}
	sec, ok := n.sections[section]
	if !ok {
		writeError(w, gatewayerr.NewNotFoundError("unknown config section: "+section, nil))
		return
	}
	if field == "" {
		writeJSON(w, http.StatusOK, sec)
		return
	}
	val, ok := sec[field]
	if !ok {
		writeError(w, gatewayerr.NewNotFoundError("unknown config field: "+section+"/"+field, nil))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{field: val})
}

func (h *nodeRoutes) postConfig(w http.ResponseWriter, r *http.Request) {
	n, err := h.node()
	if err != nil {
		writeError(w, err)
		return
	}
	section := chi.URLParam(r, "section")
	field := chi.URLParam(r, "field")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("failed to read request body", err))
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.sections[section]; !ok {
		n.sections[section] = make(map[string]string)
	}

	if field != "" {
		var req struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, gatewayerr.NewInvalidRequestError("malformed config value", err))
			return
		}
		n.sections[section][field] = req.Value
		writeJSON(w, http.StatusOK, map[string]string{field: req.Value})
		return
	}

	var fields map[string]string
	if err := json.Unmarshal(body, &fields); err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("malformed config section", err))
		return
	}
	for k, v := range fields {
		n.sections[section][k] = v
	}
	writeJSON(w, http.StatusOK, n.sections[section])
}

func (h *nodeRoutes) deleteConfig(w http.ResponseWriter, r *http.Request) {
	n, err := h.node()
	if err != nil {
		writeError(w, err)
		return
	}
	section := chi.URLParam(r, "section")
	field := chi.URLParam(r, "field")

	n.mu.Lock()
	defer n.mu.Unlock()
	if field == "" {
		delete(n.sections, section)
	} else if sec, ok := n.sections[section]; ok {
		delete(sec, field)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *nodeRoutes) getLog(w http.ResponseWriter, r *http.Request) {
	n, err := h.node()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write(n.tailLog())
}

func (h *nodeRoutes) postLog(w http.ResponseWriter, r *http.Request) {
	n, err := h.node()
	if err != nil {
		writeError(w, err)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("failed to read request body", err))
		return
	}
	line := strings.TrimRight(string(body), "\n") + "\n"
	n.appendLog(line)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *nodeRoutes) getDriver(w http.ResponseWriter, r *http.Request) {
	n, err := h.node()
	if err != nil {
		writeError(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	d, ok := n.Registry.Get(name)
	if !ok {
		writeError(w, gatewayerr.NewNotFoundError("no storage driver registered as "+name, nil))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":         d.Name(),
		"local":        d.Local(),
		"manifest_url": n.Registry.ManifestURL(name),
	})
}

func (h *nodeRoutes) postDriver(w http.ResponseWriter, r *http.Request) {
	n, err := h.node()
	if err != nil {
		writeError(w, err)
		return
	}
	name := chi.URLParam(r, "name")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("failed to read request body", err))
		return
	}
	var req struct {
		Type        string                 `json:"type"`
		ManifestURL string                 `json:"manifest_url"`
		Params      map[string]interface{} `json:"params"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Type == "" {
		writeError(w, gatewayerr.NewInvalidRequestError("type is required", err))
		return
	}

	factory, ok := n.DriverFactories[req.Type]
	if !ok {
		writeError(w, gatewayerr.NewNotImplementedError("unknown storage driver type: "+req.Type, nil))
		return
	}
	d, err := factory(name, req.Params)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("failed to construct driver", err))
		return
	}

	if err := n.Registry.Register(name, d, req.ManifestURL); err != nil {
		if err == drivers.ErrConcurrencyViolation {
			writeError(w, gatewayerr.NewInProgressError("driver registration already in progress", err))
			return
		}
		writeError(w, gatewayerr.NewInternalError("driver registration failed", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *nodeRoutes) registrarState(w http.ResponseWriter, r *http.Request) {
	if h.d.Registrar == nil {
		writeError(w, gatewayerr.NewNotImplementedError("no registrar queue is configured", nil))
		return
	}
	writeJSON(w, http.StatusOK, h.d.Registrar.All())
}
