package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/authify/pkg/httpx"
	"github.com/aussiebroadwan/authify/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("first"), mw("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"first", "second", "handler"}, order)
}

type stubVerifier map[string]string // token -> subject

func (s stubVerifier) Verify(_ context.Context, token string) (*jwtx.Claims, error) {
	sub, ok := s[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}}, nil
}

func TestAuthnMiddleware(t *testing.T) {
	v := stubVerifier{"cookie-token": "cookie@example.com", "bearer-token": "bearer@example.com"}
	deny := func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, r, http.StatusUnauthorized, "You need to login to access this resource")
	}

	h := httpx.AuthnMiddleware(v, "accessToken", deny)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := httpx.ClaimsFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(claims.Subject + "|" + httpx.SubjectFromContext(r.Context())))
	}))

	tests := []struct {
		name     string
		prepare  func(*http.Request)
		wantCode int
		wantBody string
	}{
		{
			name:     "cookie",
			prepare:  func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "accessToken", Value: "cookie-token"}) },
			wantCode: http.StatusOK,
			wantBody: "cookie@example.com|cookie@example.com",
		},
		{
			name:     "bearer header",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer bearer-token") },
			wantCode: http.StatusOK,
			wantBody: "bearer@example.com|bearer@example.com",
		},
		{
			name: "cookie wins over header",
			prepare: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "accessToken", Value: "cookie-token"})
				r.Header.Set("Authorization", "Bearer bearer-token")
			},
			wantCode: http.StatusOK,
			wantBody: "cookie@example.com|cookie@example.com",
		},
		{
			name:     "missing",
			prepare:  func(*http.Request) {},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "invalid",
			prepare:  func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				require.Equal(t, tt.wantBody, rec.Body.String())
			} else {
				require.True(t, strings.Contains(rec.Body.String(), "You need to login"))
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"email":"a@example.com"}`, false},
		{"empty", ``, true},
		{"unknown field", `{"email":"a","admin":true}`, true},
		{"trailing object", `{"email":"a"}{"email":"b"}`, true},
		{"not json", `email=a`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p payload
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := httpx.DecodeJSON(httptest.NewRecorder(), req, &p)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "a@example.com", p.Email)
		})
	}
}
