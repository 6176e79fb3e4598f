package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/authify/pkg/jwtx"
	"github.com/aussiebroadwan/authify/pkg/slogx"
)

// TokenVerifier is satisfied by *jwtx.KeyManager.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*jwtx.Claims, error)
}

// AuthnMiddleware authenticates the request from the access token cookie
// named cookieName, falling back to an "Authorization: Bearer" header for
// non-browser clients. Failures are handed to deny.
func AuthnMiddleware(v TokenVerifier, cookieName string, deny func(http.ResponseWriter, *http.Request)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw := accessToken(r, cookieName)
			if raw == "" {
				deny(w, r)
				return
			}

			claims, err := v.Verify(ctx, raw)
			if err != nil {
				slogx.FromContext(ctx).Debug("access token rejected", "err", err)
				deny(w, r)
				return
			}

			ctx = ContextWithClaims(ctx, claims)
			ctx = slogx.With(ctx, "subject", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	authz := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authz, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// RequireRole lets the request through only when the verified claims carry
// role. Must run after AuthnMiddleware.
func RequireRole(role string, deny func(http.ResponseWriter, *http.Request)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || !claims.HasRole(role) {
				slogx.FromContext(r.Context()).Warn("missing role", "role", role)
				deny(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
