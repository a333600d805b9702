package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
)

func TestReencodeAddressRewritesVersionByte(t *testing.T) {
	t.Parallel()
	testnetAddr := cryptoutil.Base58CheckEncode(0x6f, []byte("0123456789012345678901234567890"[:20]))

	canonical, err := ReencodeAddress(testnetAddr)
	require.NoError(t, err)

	version, payload, err := cryptoutil.Base58CheckDecode(canonical)
	require.NoError(t, err)
	require.Equal(t, MainnetAddressVersion, version)
	require.Len(t, payload, 20)
}

func TestReencodeAddressRejectsMalformed(t *testing.T) {
	t.Parallel()
	_, err := ReencodeAddress("not-a-valid-address")
	require.Error(t, err)
}

func TestCallRPCNotFoundMapsTo404(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"error":{"message":"no such name"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL)
	_, err := c.CallRPC(context.Background(), "get_name_blockchain_record", []interface{}{"alice.id"}, true)
	require.Error(t, err)
	require.True(t, gatewayerr.IsNotFound(err))
}

func TestCallRPCUnreachableMapsToUpstream(t *testing.T) {
	t.Parallel()
	c := NewClient("http://127.0.0.1:1", "http://127.0.0.1:1")
	_, err := c.CallRPC(context.Background(), "get_name_blockchain_record", nil, false)
	require.Error(t, err)
	require.True(t, gatewayerr.IsUpstream(err))
}

func TestGetUnspentSuccess(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"txid":"abc","vout":0,"value":1000}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.URL)
	addr := cryptoutil.Base58CheckEncode(0x00, []byte("01234567890123456789"))
	raw, err := c.GetUnspent(context.Background(), addr)
	require.NoError(t, err)
	require.Contains(t, string(raw), "txid")
}
