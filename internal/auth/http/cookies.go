package http

import (
	"net/http"

	"github.com/aussiebroadwan/authify/pkg/authsdk"
)

// cookieWriter sets and clears the session cookies. Name, path, HttpOnly
// and Max-Age are fixed; Secure and SameSite follow deployment.
type cookieWriter struct {
	secure bool
}

func (c cookieWriter) set(w http.ResponseWriter, name, value, path string, maxAge int) {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
	}
	if c.secure {
		ck.SameSite = http.SameSiteLaxMode
	}
	if maxAge == 0 {
		// net/http only emits Max-Age=0 for negative values.
		ck.MaxAge = -1
	}
	http.SetCookie(w, ck)
}

func (c cookieWriter) setAccess(w http.ResponseWriter, token string) {
	c.set(w, authsdk.AccessTokenCookie, token, authsdk.AccessTokenCookiePath, authsdk.AccessTokenMaxAge)
}

func (c cookieWriter) setRefresh(w http.ResponseWriter, token string) {
	c.set(w, authsdk.RefreshTokenCookie, token, authsdk.RefreshTokenCookiePath, authsdk.RefreshTokenMaxAge)
}

func (c cookieWriter) clearAccess(w http.ResponseWriter) {
	c.set(w, authsdk.AccessTokenCookie, "", authsdk.AccessTokenCookiePath, 0)
}

func (c cookieWriter) clearRefresh(w http.ResponseWriter) {
	c.set(w, authsdk.RefreshTokenCookie, "", authsdk.RefreshTokenCookiePath, 0)
}

func refreshTokenFromCookie(r *http.Request) string {
	if ck, err := r.Cookie(authsdk.RefreshTokenCookie); err == nil {
		return ck.Value
	}
	return ""
}
