// Package auth implements the gateway's two credential schemes (spec
// §4.2): a shared master password, and session tokens minted by the
// session manager (§4.3).
package auth

import (
	"context"

	"github.com/blockstack/gaia-gateway/internal/session"
)

// SessionContextKey is the key used to store a verified Session in the
// request context. An empty struct avoids collisions with other
// packages' context keys.
type SessionContextKey struct{}

// WithSession stores sess in ctx. If sess is nil, ctx is returned
// unchanged — password-authenticated requests carry no session.
func WithSession(ctx context.Context, sess *session.Session) context.Context {
	if sess == nil {
		return ctx
	}
	return context.WithValue(ctx, SessionContextKey{}, sess)
}

// SessionFromContext retrieves the Session bound to ctx, if any.
func SessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(SessionContextKey{}).(*session.Session)
	return sess, ok
}
