package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockstack/gaia-gateway/internal/auth"
	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/drivers"
	"github.com/blockstack/gaia-gateway/internal/registrar"
	"github.com/blockstack/gaia-gateway/internal/session"
	"github.com/blockstack/gaia-gateway/internal/store"
)

// storesTestDeps builds Deps with a master key, so tests can mint a
// verifiable session token the way GET /v1/auth would.
func storesTestDeps(t *testing.T) (*Deps, *cryptoutil.PrivateKey) {
	t.Helper()
	registry := drivers.NewRegistry()
	require.NoError(t, registry.Register("disk0", drivers.NewMemoryDriver("disk0"), ""))

	masterKey, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	d := &Deps{
		AuthConfig: auth.Config{
			MasterPublicKey: masterKey.PubKey(),
			MasterKey:       masterKey,
			LocalOrigins:    []auth.Origin{{Scheme: "http", Host: "localhost", Port: "80"}},
		},
		Store:     store.NewStore(registry, store.WriteOptions{MinSuccess: 1}),
		Registry:  registry,
		Registrar: registrar.NewQueue(),
		Node:      NewNodeConfig(registry, nil),
		Version:   "test",
	}
	return d, masterKey
}

func mintTestSession(t *testing.T, masterKey *cryptoutil.PrivateKey, deviceID string, devicePub *cryptoutil.PublicKey, methods []string) string {
	t.Helper()
	sess := session.Session{
		AppDomain: "http://localhost",
		Methods:   methods,
		DeviceID:  deviceID,
		AppPublicKeys: []session.DevicePublicKey{
			{DeviceID: deviceID, PublicKey: devicePub.Hex()},
		},
	}
	token, err := session.Mint(sess, masterKey, session.DefaultTTL)
	require.NoError(t, err)
	return token
}

func withSessionAuth(req *http.Request, token string) {
	req.Header.Set("Authorization", "bearer "+token)
	req.Header.Set("Origin", "http://localhost")
}

func TestStoreDeleteFileAppliesResignedPage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, masterKey := storesTestDeps(t)
	devicePriv, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	devicePub := devicePriv.PubKey()

	dsPriv, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	ds := &store.Datastore{
		ID:        cryptoutil.DatastoreID(dsPriv.PubKey()),
		PubKey:    dsPriv.PubKey().Hex(),
		Drivers:   []string{"disk0"},
		DeviceIDs: []string{"device-1"},
	}
	require.NoError(t, d.Store.CreateDatastore(ctx, ds))

	header := store.FileHeader{Name: "a.txt", DataHash: "h1", Timestamp: 100, WriterDeviceID: "device-1"}
	header.Sign(devicePriv)
	page := &store.DeviceRootPage{DeviceID: "device-1", Timestamp: 100, Files: map[string]store.FileHeader{"a.txt": header}}
	page.Sign(devicePriv)
	require.NoError(t, d.Store.WriteDeviceRoot(ctx, ds, page, devicePub, true))

	tombText := store.MakeTombstoneText(store.FileFQID("device-1", ds.ID, "a.txt"), 200)
	tomb := store.Tombstone{Text: tombText}
	tomb.Sign(devicePriv)
	resigned := &store.DeviceRootPage{
		DeviceID:   "device-1",
		Timestamp:  200,
		Files:      map[string]store.FileHeader{"a.txt": header},
		Tombstones: []store.Tombstone{tomb},
	}
	resigned.Sign(devicePriv)

	token := mintTestSession(t, masterKey, "device-1", devicePub, []string{"store_write"})

	body, err := json.Marshal(map[string]interface{}{
		"tombstone":        tomb,
		"device_root_page": resigned,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(d))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/stores/"+ds.ID+"/files", bytes.NewReader(body))
	require.NoError(t, err)
	withSessionAuth(req, token)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got, err := d.Store.ReadDeviceRoot(ctx, ds, "device-1", devicePub)
	require.NoError(t, err)
	require.Len(t, got.Tombstones, 1)
	require.True(t, got.Verify(devicePub))
}

func TestStoreDeleteFileRejectsUnresignedPage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d, masterKey := storesTestDeps(t)
	devicePriv, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	devicePub := devicePriv.PubKey()

	dsPriv, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	ds := &store.Datastore{
		ID:        cryptoutil.DatastoreID(dsPriv.PubKey()),
		PubKey:    dsPriv.PubKey().Hex(),
		Drivers:   []string{"disk0"},
		DeviceIDs: []string{"device-1"},
	}
	require.NoError(t, d.Store.CreateDatastore(ctx, ds))

	tombText := store.MakeTombstoneText(store.FileFQID("device-1", ds.ID, "a.txt"), 200)
	tomb := store.Tombstone{Text: tombText}
	tomb.Sign(devicePriv)

	// device_root_page omitted: the gateway must refuse rather than
	// mutate and re-persist an unsigned page on the caller's behalf.
	token := mintTestSession(t, masterKey, "device-1", devicePub, []string{"store_write"})
	body, err := json.Marshal(map[string]interface{}{"tombstone": tomb})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(d))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/stores/"+ds.ID+"/files", bytes.NewReader(body))
	require.NoError(t, err)
	withSessionAuth(req, token)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NotEqual(t, http.StatusOK, resp.StatusCode)
}
