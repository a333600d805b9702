package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockstack/gaia-gateway/internal/drivers"
)

func withPasswordAuth(req *http.Request) {
	req.Header.Set("Authorization", "bearer s3cret")
	req.Header.Set("Origin", "http://localhost")
}

func TestNodeConfigRoundTrip(t *testing.T) {
	t.Parallel()
	d := testDeps(t)
	srv := httptest.NewServer(NewRouter(d))
	defer srv.Close()

	putReq, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/node/config/api/port", bytes.NewBufferString(`{"value":"6270"}`))
	require.NoError(t, err)
	withPasswordAuth(putReq)
	putResp, err := srv.Client().Do(putReq)
	require.NoError(t, err)
	defer putResp.Body.Close()
	require.Equal(t, http.StatusOK, putResp.StatusCode)

	getReq, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/node/config/api/port", nil)
	require.NoError(t, err)
	withPasswordAuth(getReq)
	getResp, err := srv.Client().Do(getReq)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestNodeConfigDeleteRemovesSection(t *testing.T) {
	t.Parallel()
	d := testDeps(t)
	srv := httptest.NewServer(NewRouter(d))
	defer srv.Close()

	putReq, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/node/config/api", bytes.NewBufferString(`{"port":"6270"}`))
	require.NoError(t, err)
	withPasswordAuth(putReq)
	putResp, err := srv.Client().Do(putReq)
	require.NoError(t, err)
	putResp.Body.Close()

	delReq, err := http.NewRequest(http.MethodDelete, srv.URL+"/v1/node/config/api", nil)
	require.NoError(t, err)
	withPasswordAuth(delReq)
	delResp, err := srv.Client().Do(delReq)
	require.NoError(t, err)
	defer delResp.Body.Close()
	require.Equal(t, http.StatusOK, delResp.StatusCode)

	getReq, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/node/config/api/port", nil)
	require.NoError(t, err)
	withPasswordAuth(getReq)
	getResp, err := srv.Client().Do(getReq)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestNodeLogAppendAndRead(t *testing.T) {
	t.Parallel()
	d := testDeps(t)
	srv := httptest.NewServer(NewRouter(d))
	defer srv.Close()

	postReq, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/node/log", bytes.NewBufferString("started up"))
	require.NoError(t, err)
	withPasswordAuth(postReq)
	postResp, err := srv.Client().Do(postReq)
	require.NoError(t, err)
	defer postResp.Body.Close()
	require.Equal(t, http.StatusOK, postResp.StatusCode)

	getReq, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/node/log", nil)
	require.NoError(t, err)
	withPasswordAuth(getReq)
	getResp, err := srv.Client().Do(getReq)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestNodeDriverRegistrationAndQuery(t *testing.T) {
	t.Parallel()
	d := testDeps(t)
	d.Node.DriverFactories["memory"] = func(name string, _ map[string]interface{}) (drivers.Driver, error) {
		return drivers.NewMemoryDriver(name), nil
	}
	srv := httptest.NewServer(NewRouter(d))
	defer srv.Close()

	postReq, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/node/drivers/storage/disk1", bytes.NewBufferString(`{"type":"memory"}`))
	require.NoError(t, err)
	withPasswordAuth(postReq)
	postResp, err := srv.Client().Do(postReq)
	require.NoError(t, err)
	defer postResp.Body.Close()
	require.Equal(t, http.StatusOK, postResp.StatusCode)

	getReq, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/node/drivers/storage/disk1", nil)
	require.NoError(t, err)
	withPasswordAuth(getReq)
	getResp, err := srv.Client().Do(getReq)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
}

func TestNodeRegistrarState(t *testing.T) {
	t.Parallel()
	d := testDeps(t)
	d.Registrar.Enqueue("register", "alice.id", nil)

	srv := httptest.NewServer(NewRouter(d))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/node/registrar/state", nil)
	require.NoError(t, err)
	withPasswordAuth(req)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
