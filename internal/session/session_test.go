package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
)

func TestMintAndVerifyRoundTrip(t *testing.T) {
	t.Parallel()
	master, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	sess := Session{
		AppDomain: "http://example.com",
		Methods:   []string{"store_read"},
		DeviceID:  "device-1",
	}
	token, err := Mint(sess, master, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := Verify(token, master.PubKey())
	require.NoError(t, err)
	require.Equal(t, sess.AppDomain, got.AppDomain)
	require.True(t, got.HasCapability("store_read"))
	require.False(t, got.HasCapability("store_write"))
}

func TestVerifyRejectsExpiredSession(t *testing.T) {
	t.Parallel()
	master, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	sess := Session{AppDomain: "http://example.com", DeviceID: "device-1"}
	token, err := Mint(sess, master, -time.Hour)
	require.NoError(t, err)

	_, err = Verify(token, master.PubKey())
	require.Error(t, err)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	t.Parallel()
	master, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	other, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	sess := Session{AppDomain: "http://example.com", DeviceID: "device-1"}
	token, err := Mint(sess, master, time.Hour)
	require.NoError(t, err)

	_, err = Verify(token, other.PubKey())
	require.Error(t, err)
}

func signedAuthRequest(t *testing.T, deviceID, appDomain string, methods []string, priv *cryptoutil.PrivateKey, appPub *cryptoutil.PublicKey) string {
	t.Helper()
	claims := jwt.MapClaims{
		"app_domain":      appDomain,
		"methods":         methods,
		"app_private_key": hexEncode(priv.Bytes()),
		"app_public_keys": []map[string]string{
			{"device_id": deviceID, "public_key": appPub.Hex()},
		},
		"device_id": deviceID,
	}
	token := jwt.NewWithClaims(sessionSigningMethod{}, claims)
	signed, err := token.SignedString(priv)
	require.NoError(t, err)
	return signed
}

func TestBuildSessionFromValidAuthRequest(t *testing.T) {
	t.Parallel()
	master, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	appPriv, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	req := signedAuthRequest(t, "device-1", "http://example.com", []string{"store_read"}, appPriv, appPriv.PubKey())

	token, err := BuildSession(req, master)
	require.NoError(t, err)

	sess, err := Verify(token, master.PubKey())
	require.NoError(t, err)
	require.Equal(t, "device-1", sess.DeviceID)
	require.Equal(t, "http://example.com", sess.AppDomain)
}

func TestBuildSessionRejectsMismatchedDeviceKey(t *testing.T) {
	t.Parallel()
	master, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	appPriv, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)
	otherPub, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	req := signedAuthRequest(t, "device-1", "http://example.com", []string{"store_read"}, appPriv, otherPub.PubKey())

	_, err = BuildSession(req, master)
	require.Error(t, err)
}

func TestBuildSessionRejectsOversizedToken(t *testing.T) {
	t.Parallel()
	master, err := cryptoutil.GeneratePrivateKey()
	require.NoError(t, err)

	huge := make([]byte, MaxAuthRequestBytes+1)
	_, err = BuildSession(string(huge), master)
	require.Error(t, err)
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}
