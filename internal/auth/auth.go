package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
	"github.com/blockstack/gaia-gateway/internal/session"
)

// ErrMissingAuthRequest is returned by the session-manager HTTP handler
// when GET /auth is called without an authRequest query parameter.
var ErrMissingAuthRequest = gatewayerr.NewInvalidRequestError("missing authRequest query parameter", fmt.Errorf("authRequest required"))

// Mode is the auth mode a whitelist entry accepts (spec §4.1 step 2).
type Mode int

// Auth modes a route may declare.
const (
	// ModeNone means the route is unauthenticated (e.g. GET /v1/ping).
	ModeNone Mode = iota
	// ModePassword accepts only the master password.
	ModePassword
	// ModeSession accepts only a session token.
	ModeSession
	// ModeEither accepts either credential.
	ModeEither
)

// Config holds the gateway's static auth configuration: the master
// password, the master data key (for verifying session tokens), the set
// of local origins password auth is bound to, and the app-domain suffix
// allow-list session auth normalizes against.
type Config struct {
	MasterPassword  string
	MasterPublicKey *cryptoutil.PublicKey
	// MasterKey is the private half of MasterPublicKey, held only so the
	// session manager (§4.3 step 5) can sign newly minted sessions. It is
	// never used for request verification.
	MasterKey       *cryptoutil.PrivateKey
	LocalOrigins    []Origin
	AllowedSuffixes []string
}

// Result is what a successful Authenticate call yields: the verified
// session, if the request used one, and nil otherwise for password auth.
type Result struct {
	Session *session.Session
}

// Authenticate implements spec §4.2 end to end: extract the bearer
// credential (header or ?session= query param), decide whether it is a
// password or a session token, and check the Origin binding appropriate
// to that credential. capability is the whitelist entry's required
// capability; it is checked against the session's methods set only when
// session auth is used (password auth has no capability concept).
func Authenticate(r *http.Request, cfg Config, mode Mode, capability string) (*Result, error) {
	if mode == ModeNone {
		return &Result{}, nil
	}

	token, _ := extractCredential(r)
	if token == "" {
		return nil, gatewayerr.NewAuthFailedError("missing credentials", nil)
	}

	// A session token is always a JWT (three dot-separated segments);
	// the master password is an opaque shared secret and will not take
	// that shape in practice. The shape alone decides the path: a token
	// that looks like a JWT is only ever checked as a session.
	if looksLikeSessionToken(token) {
		if mode == ModePassword {
			return nil, gatewayerr.NewAuthFailedError("session auth not accepted on this route", nil)
		}
		return authenticateSession(r, cfg, token, capability)
	}

	if mode == ModeSession {
		return nil, gatewayerr.NewAuthFailedError("password auth not accepted on this route", nil)
	}
	return authenticatePassword(r, cfg, token)
}

func extractCredential(r *http.Request) (token string, fromQuery bool) {
	if q := r.URL.Query().Get("session"); q != "" {
		return q, true
	}
	authz := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(authz) > len(prefix) && strings.EqualFold(authz[:len(prefix)], prefix) {
		return authz[len(prefix):], false
	}
	return "", false
}

func looksLikeSessionToken(token string) bool {
	return strings.Count(token, ".") == 2
}

func authenticatePassword(r *http.Request, cfg Config, password string) (*Result, error) {
	if !ConstantTimeEqual(password, cfg.MasterPassword) {
		return nil, gatewayerr.NewAuthFailedError("invalid password", nil)
	}
	origin, ok := ParseOrigin(r.Header.Get("Origin"))
	if !ok || !origin.MatchesAny(cfg.LocalOrigins) {
		return nil, gatewayerr.NewAuthFailedError("origin not in the gateway's local allow-list", nil)
	}
	return &Result{}, nil
}

func authenticateSession(r *http.Request, cfg Config, token string, capability string) (*Result, error) {
	sess, err := session.Verify(token, cfg.MasterPublicKey)
	if err != nil {
		return nil, err
	}

	normalized, ok := NormalizeAppDomain(sess.AppDomain, cfg.AllowedSuffixes)
	if !ok {
		return nil, gatewayerr.NewAuthFailedError("session app_domain is malformed", nil)
	}
	reqOrigin, ok := ParseOrigin(r.Header.Get("Origin"))
	if !ok || !normalized.MatchesOrigin(reqOrigin) {
		return nil, gatewayerr.NewAuthFailedError("request origin does not match session app_domain", nil)
	}

	if capability != "" && !sess.HasCapability(capability) {
		return nil, gatewayerr.NewAuthFailedError("session lacks required capability: "+capability, nil)
	}

	return &Result{Session: sess}, nil
}
