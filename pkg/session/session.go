// Package session turns the session cookie into a caller identity.
//
// A session is a signed token (see pkg/auth) stored in an HTTP-only cookie.
// Middleware resolves it once per request; handlers read the caller with
// FromContext. Resolution never fails loudly: a missing, malformed, expired,
// revoked or orphaned token simply means an anonymous caller.
//
//	sessions := session.NewManager(codec, revocations, users.Load, session.DefaultOptions())
//	r.Use(sessions.Middleware())
//
//	user, ok := session.FromContext[*models.User](r.Context())
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/freshbulk/storefront/config"
	"github.com/freshbulk/storefront/pkg/auth"
	"github.com/freshbulk/storefront/pkg/cache"
	"github.com/freshbulk/storefront/pkg/logger"
)

// Options configures the session cookie.
type Options struct {
	CookieName string
	Path       string
	Secure     bool
	SameSite   http.SameSite
}

// DefaultOptions reads the cookie name from config and marks the cookie
// Secure in production.
func DefaultOptions() Options {
	return Options{
		CookieName: config.SessionCookie(),
		Path:       "/",
		Secure:     config.IsProduction(),
		SameSite:   http.SameSiteLaxMode,
	}
}

// Loader fetches the identity behind a user id. A missing user must be
// reported as an error.
type Loader[U any] func(ctx context.Context, userID uint) (U, error)

// Manager issues, resolves and ends sessions for identities of type U.
type Manager[U any] struct {
	codec   *auth.TokenCodec
	revoked cache.Store
	load    Loader[U]
	opts    Options
}

func NewManager[U any](codec *auth.TokenCodec, revoked cache.Store, load Loader[U], opts Options) *Manager[U] {
	return &Manager[U]{codec: codec, revoked: revoked, load: load, opts: opts}
}

func revokedKey(jti string) string { return "session:revoked:" + jti }

// Resolve maps a raw token to its identity. ok is false for any token that
// cannot be trusted.
func (m *Manager[U]) Resolve(ctx context.Context, token string) (U, bool) {
	var zero U
	if token == "" {
		return zero, false
	}

	claims, err := m.codec.Parse(token)
	if err != nil {
		return zero, false
	}

	if m.revoked != nil {
		gone, err := m.revoked.Exists(ctx, revokedKey(claims.ID))
		if err != nil {
			logger.WithCtx(ctx).Warn("session: revocation lookup failed", "error", err)
			return zero, false
		}
		if gone {
			return zero, false
		}
	}

	uid, _ := claims.UserID()
	u, err := m.load(ctx, uid)
	if err != nil {
		return zero, false
	}
	return u, true
}

// Start issues a new session for userID and writes its cookie.
func (m *Manager[U]) Start(w http.ResponseWriter, userID uint) error {
	token, _, err := m.codec.Issue(userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(token, int(m.codec.TTL().Seconds())))
	return nil
}

// End revokes the session presented on r, if any, and clears the cookie.
// Clearing always happens, even when the token was already invalid.
func (m *Manager[U]) End(w http.ResponseWriter, r *http.Request) error {
	defer http.SetCookie(w, m.cookie("", -1))

	c, err := r.Cookie(m.opts.CookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	claims, err := m.codec.Parse(c.Value)
	if err != nil || m.revoked == nil {
		return nil
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return m.revoked.Set(r.Context(), revokedKey(claims.ID), true, ttl)
}

func (m *Manager[U]) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     m.opts.Path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: m.opts.SameSite,
	}
}

// Middleware resolves the session cookie and stores the caller in the request
// context. It never rejects a request.
func (m *Manager[U]) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(m.opts.CookieName); err == nil {
				if u, ok := m.Resolve(r.Context(), c.Value); ok {
					r = r.WithContext(WithIdentity(r.Context(), u))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type ctxKey struct{}

// WithIdentity stores u as the caller in ctx.
func WithIdentity[U any](ctx context.Context, u U) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the caller stored by Middleware.
func FromContext[U any](ctx context.Context) (U, bool) {
	u, ok := ctx.Value(ctxKey{}).(U)
	return u, ok
}
