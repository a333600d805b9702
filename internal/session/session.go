// Package session implements the session manager (spec §4.3): minting
// and verifying the capability tokens issued by `GET /auth`.
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
)

// DevicePublicKey pairs a device id with its application public key, as
// carried in an authRequest's app_public_keys list (spec §4.3).
type DevicePublicKey struct {
	DeviceID  string `json:"device_id"`
	PublicKey string `json:"public_key"`
}

// Session is the gateway's time-limited capability document: an
// application origin bound to a set of permitted methods and device
// keys (spec §4.3, GLOSSARY).
type Session struct {
	BlockchainID    string            `json:"blockchain_id,omitempty"`
	AppDomain       string            `json:"app_domain"`
	Methods         []string          `json:"methods"`
	AppPublicKeys   []DevicePublicKey `json:"app_public_keys"`
	DeviceID        string            `json:"device_id"`
	ExpiresAt       int64             `json:"expires_at"`
	LegacySingleKey bool              `json:"legacy_single_key"`
}

// HasCapability reports whether method is in the session's permitted set
// (spec §4.2 "the dispatcher refuses the call unless the whitelist
// entry's capability is in that set").
func (s *Session) HasCapability(method string) bool {
	for _, m := range s.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// Expired reports whether the session has passed its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAt
}

// DeviceKey returns the application public key recorded for deviceID, if
// the session's device list includes it.
func (s *Session) DeviceKey(deviceID string) (*cryptoutil.PublicKey, bool) {
	for _, dpk := range s.AppPublicKeys {
		if dpk.DeviceID == deviceID {
			pub, err := cryptoutil.ParsePublicKeyHex(dpk.PublicKey)
			if err != nil {
				return nil, false
			}
			return pub, true
		}
	}
	return nil, false
}

// DeviceKeys returns every device public key the session carries,
// keyed by device id, for use by the datastore's merged-root read path.
func (s *Session) DeviceKeys() map[string]*cryptoutil.PublicKey {
	out := make(map[string]*cryptoutil.PublicKey, len(s.AppPublicKeys))
	for _, dpk := range s.AppPublicKeys {
		pub, err := cryptoutil.ParsePublicKeyHex(dpk.PublicKey)
		if err != nil {
			continue
		}
		out[dpk.DeviceID] = pub
	}
	return out
}

// sessionClaims is the JWT claim set the gateway signs when it issues a
// session token.
type sessionClaims struct {
	jwt.RegisteredClaims
	Session Session `json:"session"`
}

// sessionSigningMethod is a minimal jwt.SigningMethod wrapping the
// gateway's secp256k1 master data key, mirroring the custom signing
// method toolhive registers for its own JWT middleware (pkg/auth/jwt.go)
// but over ECDSA-secp256k1 instead of RSA/ECDSA-P256.
type sessionSigningMethod struct{}

func (sessionSigningMethod) Alg() string { return "ES256K" }

func (sessionSigningMethod) Verify(signingString string, sig []byte, key interface{}) error {
	pub, ok := key.(*cryptoutil.PublicKey)
	if !ok {
		return fmt.Errorf("session: invalid public key type for verification")
	}
	hash := cryptoutil.Sha256([]byte(signingString))
	if !pub.Verify(hash, sig) {
		return fmt.Errorf("session: signature verification failed")
	}
	return nil
}

func (sessionSigningMethod) Sign(signingString string, key interface{}) ([]byte, error) {
	priv, ok := key.(*cryptoutil.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("session: invalid private key type for signing")
	}
	hash := cryptoutil.Sha256([]byte(signingString))
	return priv.Sign(hash), nil
}

func init() {
	jwt.RegisterSigningMethod("ES256K", func() jwt.SigningMethod { return sessionSigningMethod{} })
}

// DefaultTTL is how long a minted session remains valid.
const DefaultTTL = 24 * time.Hour

// Mint signs sess with the gateway's master data key and returns the
// serialized session token (spec §4.3 step 5).
func Mint(sess Session, masterKey *cryptoutil.PrivateKey, ttl time.Duration) (string, error) {
	now := time.Now()
	sess.ExpiresAt = now.Add(ttl).Unix()

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Session: sess,
	}
	token := jwt.NewWithClaims(sessionSigningMethod{}, claims)
	signed, err := token.SignedString(masterKey)
	if err != nil {
		return "", gatewayerr.NewInternalError("failed to sign session", err)
	}
	return signed, nil
}

// Verify parses and verifies a session token against the gateway's
// master data public key, returning the embedded Session.
func Verify(tokenString string, masterPub *cryptoutil.PublicKey) (*Session, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return masterPub, nil
	}, jwt.WithValidMethods([]string{"ES256K"}))
	if err != nil || !parsed.Valid {
		return nil, gatewayerr.NewAuthFailedError("invalid session token", err)
	}
	if claims.Session.Expired(time.Now()) {
		return nil, gatewayerr.NewAuthFailedError("session expired", nil)
	}
	return &claims.Session, nil
}

// MarshalForSigning renders a Session to its canonical JSON form, used
// when the session record itself (rather than a JWT wrapper) needs a
// detached signature (kept for parity with the fabric's own
// sign-then-serialize convention; the JWT path above is what the HTTP
// surface actually uses).
func (s *Session) MarshalForSigning() ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, gatewayerr.NewInternalError("failed to serialize session", err)
	}
	return b, nil
}
