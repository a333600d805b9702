package httpapi

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/blockstack/gaia-gateway/internal/auth"
	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
	"github.com/blockstack/gaia-gateway/internal/session"
	"github.com/blockstack/gaia-gateway/internal/store"
)

// storesRouter serves the datastore core operations (spec §4.4.1).
func storesRouter(d *Deps) http.Handler {
	routes := &storeRoutes{d: d}
	r := chi.NewRouter()

	r.With(withBodyLimit(0), d.requireAuth(auth.ModeEither, "store_write")).Post("/", routes.createDatastore)
	r.With(d.requireAuth(auth.ModeEither, "store_write")).Delete("/", routes.deleteDatastore)

	r.With(d.requireAuth(auth.ModeEither, "store_read")).Get("/{id}", routes.readDatastore)
	r.With(d.requireAuth(auth.ModeEither, "store_read")).Get("/{id}/listing", routes.readMergedRoot)
	r.With(d.requireAuth(auth.ModeEither, "store_read")).Get("/{id}/device_roots", routes.readDeviceRoot)
	r.With(d.requireAuth(auth.ModeEither, "store_write")).Post("/{id}/device_roots", routes.writeDeviceRoot)
	r.With(d.requireAuth(auth.ModeEither, "store_write")).Put("/{id}/device_roots", routes.writeDeviceRoot)
	r.With(d.requireAuth(auth.ModeEither, "store_read")).Get("/{id}/headers", routes.readFileHeader)
	r.With(d.requireAuth(auth.ModeEither, "store_read")).Get("/{id}/files", routes.readFile)
	r.With(withBodyLimit(0), d.requireAuth(auth.ModeEither, "store_write")).Post("/{id}/files", routes.writeFile)
	r.With(withBodyLimit(0), d.requireAuth(auth.ModeEither, "store_write")).Put("/{id}/files", routes.writeFile)
	r.With(d.requireAuth(auth.ModeEither, "store_write")).Delete("/{id}/files", routes.deleteFile)

	return r
}

type storeRoutes struct {
	d *Deps
}

type createDatastoreRequest struct {
	DatastoreInfo  store.Datastore   `json:"datastore_info"`
	DatastoreSigs  string            `json:"datastore_sigs"`
	RootTombstones []store.Tombstone `json:"root_tombstones"`
}

func (h *storeRoutes) createDatastore(w http.ResponseWriter, r *http.Request) {
	var req createDatastoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("malformed request body", err))
		return
	}

	pub, err := resolveDatastorePubKey(r, &req.DatastoreInfo)
	if err != nil {
		writeError(w, err)
		return
	}

	infoBytes, err := json.Marshal(req.DatastoreInfo)
	if err != nil {
		writeError(w, gatewayerr.NewInternalError("failed to serialize datastore_info", err))
		return
	}
	sigBytes, err := decodeHexOrBase64(req.DatastoreSigs)
	if err != nil {
		writeError(w, gatewayerr.NewEINVAL("malformed datastore_sigs", err))
		return
	}
	hash := cryptoutil.Sha256(infoBytes)
	if !pub.Verify(hash, sigBytes) {
		writeError(w, gatewayerr.NewEPERM("datastore_sigs does not verify under the datastore's public key", nil))
		return
	}

	if err := h.d.Store.CreateDatastore(r.Context(), &req.DatastoreInfo); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, req.DatastoreInfo)
}

// resolveDatastorePubKey returns the datastore's public key: the
// record's own pubkey when it carries one, else the session's key for
// its own device, else the datastore_pubkey query argument (spec §4.4.1
// Create).
func resolveDatastorePubKey(r *http.Request, ds *store.Datastore) (*cryptoutil.PublicKey, error) {
	if ds.PubKey != "" {
		return ds.PublicKey()
	}
	if sess, ok := auth.SessionFromContext(r.Context()); ok {
		if pub, ok := sess.DeviceKey(sess.DeviceID); ok {
			return pub, nil
		}
	}
	if q := r.URL.Query().Get("datastore_pubkey"); q != "" {
		return cryptoutil.ParsePublicKeyHex(q)
	}
	return nil, gatewayerr.NewInvalidRequestError("no datastore public key available to verify the request", nil)
}

func (h *storeRoutes) readDatastore(w http.ResponseWriter, r *http.Request) {
	idOrName := chi.URLParam(r, "id")

	var datastoreID string
	if cryptoutil.IsBase58Check(idOrName) {
		datastoreID = idOrName
	} else {
		blockchainID := r.URL.Query().Get("blockchain_id")
		if blockchainID == "" {
			writeError(w, gatewayerr.NewInvalidRequestError("blockchain_id required to resolve an app name", nil))
			return
		}
		resolved, err := h.resolveNameToDatastoreID(r, blockchainID, idOrName)
		if err != nil {
			writeError(w, err)
			return
		}
		datastoreID = resolved
	}

	ds, err := h.d.Store.ReadDatastore(r.Context(), datastoreID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *storeRoutes) resolveNameToDatastoreID(r *http.Request, blockchainID, name string) (string, error) {
	raw, err := h.d.Chain.CallRPC(r.Context(), "get_name_blockchain_record", []interface{}{name}, true)
	if err != nil {
		return "", err
	}
	var record struct {
		DatastorePubkey string `json:"datastore_pubkey"`
	}
	if err := json.Unmarshal(raw, &record); err != nil || record.DatastorePubkey == "" {
		return "", gatewayerr.NewNotFoundError("no datastore registered for "+name, nil)
	}
	pub, err := cryptoutil.ParsePublicKeyHex(record.DatastorePubkey)
	if err != nil {
		return "", gatewayerr.NewInternalError("naming node returned an invalid datastore pubkey", err)
	}
	return cryptoutil.DatastoreID(pub), nil
}

func (h *storeRoutes) sessionDeviceKeys(r *http.Request) (store.DevicePubKeys, error) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		return nil, gatewayerr.NewAuthFailedError("a session is required to read a merged root directory", nil)
	}
	return store.DevicePubKeys(sess.DeviceKeys()), nil
}

func (h *storeRoutes) readMergedRoot(w http.ResponseWriter, r *http.Request) {
	ds, err := h.d.Store.ReadDatastore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	keys, err := h.sessionDeviceKeys(r)
	if err != nil {
		writeError(w, err)
		return
	}
	merged, err := h.d.Store.ReadMergedRoot(r.Context(), ds, keys)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

func (h *storeRoutes) readDeviceRoot(w http.ResponseWriter, r *http.Request) {
	deviceID := r.URL.Query().Get("this_device_id")
	if deviceID == "" {
		writeError(w, gatewayerr.NewInvalidRequestError("this_device_id is required", nil))
		return
	}
	ds, err := h.d.Store.ReadDatastore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, gatewayerr.NewAuthFailedError("a session is required", nil))
		return
	}
	pub, ok := sess.DeviceKey(deviceID)
	if !ok {
		writeError(w, gatewayerr.NewAuthFailedError("unknown device_id for this session", nil))
		return
	}
	page, err := h.d.Store.ReadDeviceRoot(r.Context(), ds, deviceID, pub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type writeDeviceRootRequest struct {
	Page store.DeviceRootPage `json:"device_root_page"`
}

func (h *storeRoutes) writeDeviceRoot(w http.ResponseWriter, r *http.Request) {
	ds, err := h.d.Store.ReadDatastore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, gatewayerr.NewAuthFailedError("a session is required", nil))
		return
	}
	pub, ok := sess.DeviceKey(sess.DeviceID)
	if !ok {
		writeError(w, gatewayerr.NewAuthFailedError("session device key not found", nil))
		return
	}

	var req writeDeviceRootRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("malformed request body", err))
		return
	}

	sync := r.URL.Query().Get("sync") != "0"
	if err := h.d.Store.WriteDeviceRoot(r.Context(), ds, &req.Page, pub, sync); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *storeRoutes) readFileHeader(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, gatewayerr.NewInvalidRequestError("path is required", nil))
		return
	}
	ds, err := h.d.Store.ReadDatastore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	keys, err := h.sessionDeviceKeys(r)
	if err != nil {
		writeError(w, err)
		return
	}
	header, err := h.d.Store.ReadFileHeader(r.Context(), ds, keys, path)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, header)
}

func (h *storeRoutes) readFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, gatewayerr.NewInvalidRequestError("path is required", nil))
		return
	}
	ds, err := h.d.Store.ReadDatastore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	keys, err := h.sessionDeviceKeys(r)
	if err != nil {
		writeError(w, err)
		return
	}
	header, err := h.d.Store.ReadFileHeader(r.Context(), ds, keys, path)
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
	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		start, end, ok := parseSingleRange(rangeHeader, len(data))
		if ok {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(data[start : end+1])
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// parseSingleRange parses a single-range "bytes=start-end" header value
// (spec §4.4.1 "Supports single HTTP Range:", §8 scenario 3).
func parseSingleRange(header string, length int) (start, end int, ok bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, false
	}
	parts := strings.SplitN(header[len(prefix):], "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil || start < 0 || start >= length {
		return 0, 0, false
	}
	if parts[1] == "" {
		return start, length - 1, true
	}
	end, err = strconv.Atoi(parts[1])
	if err != nil || end < start || end >= length {
		return 0, 0, false
	}
	return start, end, true
}

type writeFileRequest struct {
	Headers      store.FileHeader `json:"headers"`
	Payload      string           `json:"payload"`
	Signatures   string           `json:"signatures"`
	DatastoreStr string           `json:"datastore_str"`
	DatastoreSig string           `json:"datastore_sig"`
}

func (h *storeRoutes) writeFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, gatewayerr.NewInvalidRequestError("path is required", nil))
		return
	}
	ds, err := h.d.Store.ReadDatastore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, gatewayerr.NewAuthFailedError("a session is required", nil))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("failed to read request body", err))
		return
	}
	var req writeFileRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("malformed request body", err))
		return
	}

	writerDeviceID, writerPub, err := verifyDatastoreSigAgainstAnyDeviceKey(sess, req.DatastoreStr, req.DatastoreSig)
	if err != nil {
		writeError(w, err)
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("payload is not valid base64", err))
		return
	}

	urls, err := h.d.Store.WriteFile(r.Context(), ds, writerDeviceID, path, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	header := req.Headers
	header.Name = path
	header.DataHash = cryptoutil.Sha256Hex(payload)
	header.URLs = urls
	header.WriterDeviceID = writerDeviceID
	if !header.Verify(writerPub) {
		// the client is expected to have signed the header already; if it
		// didn't (or signed stale fields we just overwrote), resign is
		// not possible since the gateway never holds app private keys.
		writeError(w, gatewayerr.NewEPERM("file header signature does not verify under the writer device key", nil))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"urls": urls, "header": header})
}

func verifyDatastoreSigAgainstAnyDeviceKey(sess *session.Session, datastoreStr, datastoreSig string) (deviceID string, pub *cryptoutil.PublicKey, err error) {
	sigBytes, decErr := decodeHexOrBase64(datastoreSig)
	if decErr != nil {
		return "", nil, gatewayerr.NewEINVAL("malformed datastore_sig", decErr)
	}
	hash := cryptoutil.Sha256([]byte(datastoreStr))
	for _, dpk := range sess.AppPublicKeys {
		candidate, parseErr := cryptoutil.ParsePublicKeyHex(dpk.PublicKey)
		if parseErr != nil {
			continue
		}
		if candidate.Verify(hash, sigBytes) {
			return dpk.DeviceID, candidate, nil
		}
	}
	return "", nil, gatewayerr.NewEPERM("datastore_sig does not verify under any of the session's device keys", nil)
}

type deleteFileRequest struct {
	Tombstone store.Tombstone      `json:"tombstone"`
	RootPage  store.DeviceRootPage `json:"device_root_page"`
}

func (h *storeRoutes) deleteFile(w http.ResponseWriter, r *http.Request) {
	ds, err := h.d.Store.ReadDatastore(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, gatewayerr.NewAuthFailedError("a session is required", nil))
		return
	}

	var req deleteFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("malformed request body", err))
		return
	}

	fqID, _, parseErr := store.ParseTombstoneText(req.Tombstone.Text)
	if parseErr != nil {
		writeError(w, parseErr)
		return
	}
	deviceID := writerDeviceIDFromFQID(fqID)
	pub, ok := sess.DeviceKey(deviceID)
	if !ok {
		writeError(w, gatewayerr.NewAuthFailedError("tombstone names a device not in this session", nil))
		return
	}

	// the client must sign device_root_page after appending the
	// tombstone itself; the gateway never holds the device's
	// application key and so cannot resign the page on its behalf.
	if err := h.d.Store.DeleteFile(r.Context(), ds, deviceID, pub, req.Tombstone, &req.RootPage); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writerDeviceIDFromFQID extracts the device id prefix from a
// "{device_id}:{datastore_id}/{name}" fully-qualified id.
func writerDeviceIDFromFQID(fqID string) string {
	idx := strings.Index(fqID, ":")
	if idx < 0 {
		return ""
	}
	return fqID[:idx]
}

type deleteDatastoreRequest struct {
	DatastoreTombstones []store.Tombstone `json:"datastore_tombstones"`
	RootTombstones      []store.Tombstone `json:"root_tombstones"`
}

func (h *storeRoutes) deleteDatastore(w http.ResponseWriter, r *http.Request) {
	idOrName := r.URL.Query().Get("id")
	deviceIDsParam := r.URL.Query().Get("device_ids")
	if idOrName == "" || deviceIDsParam == "" {
		writeError(w, gatewayerr.NewInvalidRequestError("id and device_ids query arguments are required", nil))
		return
	}
	deviceIDs := strings.Split(deviceIDsParam, ",")

	ds, err := h.d.Store.ReadDatastore(r.Context(), idOrName)
	if err != nil {
		writeError(w, err)
		return
	}
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		writeError(w, gatewayerr.NewAuthFailedError("a session is required", nil))
		return
	}

	var req deleteDatastoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, gatewayerr.NewInvalidRequestError("malformed request body", err))
		return
	}

	pubKeys := make([]*cryptoutil.PublicKey, 0, len(sess.AppPublicKeys))
	for _, dpk := range sess.AppPublicKeys {
		if pub, parseErr := cryptoutil.ParsePublicKeyHex(dpk.PublicKey); parseErr == nil {
			pubKeys = append(pubKeys, pub)
		}
	}

	if err := h.d.Store.DeleteDatastore(r.Context(), ds, req.DatastoreTombstones, req.RootTombstones, pubKeys, deviceIDs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func decodeHexOrBase64(s string) ([]byte, error) {
	if b, err := hex.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
