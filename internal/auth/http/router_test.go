package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
	authhttp "github.com/aussiebroadwan/authify/internal/auth/http"
	"github.com/aussiebroadwan/authify/internal/auth/service"
	"github.com/aussiebroadwan/authify/internal/auth/store"
	"github.com/aussiebroadwan/authify/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/authify/pkg/authsdk"
	"github.com/aussiebroadwan/authify/pkg/cryptox"
	"github.com/aussiebroadwan/authify/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "http-test")
	if err != nil {
		panic(err)
	}
	if err := cryptox.LoadPepper(filepath.Join(dir, "pepper")); err != nil {
		panic(err)
	}

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

const (
	testPassword = "correct horse battery"
	adminEmail   = "root@example.com"
)

// mailbox captures the tokens that would have been emailed.
type mailbox struct {
	mu           sync.Mutex
	verification map[string]string
	reset        map[string]string
}

func (m *mailbox) VerificationRequested(_ context.Context, u domain.User, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verification[u.Email] = token
}

func (m *mailbox) PasswordResetRequested(_ context.Context, u domain.User, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset[u.Email] = token
}

func (m *mailbox) verificationFor(t *testing.T, email string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.verification[email]
	require.True(t, ok, "no verification email for %s", email)
	return tok
}

func (m *mailbox) resetFor(email string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tok, ok := m.reset[email]
	return tok, ok
}

type testServer struct {
	URL   string
	store store.Store
	keys  *jwtx.KeyManager
	mail  *mailbox
}

func setupServer(t *testing.T) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, (&service.RolesService{Store: st}).EnsureDefaults(context.Background()))

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Issuer: "authify-test"})
	require.NoError(t, err)

	mail := &mailbox{verification: map[string]string{}, reset: map[string]string{}}
	tokens := &service.TokenService{Store: st, KeyManager: km}
	tfa := &service.TFAService{Store: st, Issuer: "Authify"}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	router := authhttp.NewRouter(km, "test", st, logger, false)
	router.AuthService = &service.AuthService{
		Store:       st,
		Tokens:      tokens,
		TFA:         tfa,
		OneTime:     &service.OneTimeTokenService{Store: st},
		Notifier:    mail,
		AdminEmails: []string{adminEmail},
	}
	router.TFAService = tfa
	router.KeyRotationService = &service.KeyRotationService{KeyManager: km}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{URL: srv.URL, store: st, keys: km, mail: mail}
}

// client returns a fresh SDK client with its own cookie jar.
func (s *testServer) client() *authsdk.SDKClient {
	return authsdk.NewSDKClient(s.URL)
}

// signUp registers email and returns a client logged in as it.
func (s *testServer) signUp(t *testing.T, email string, remember bool) *authsdk.SDKClient {
	t.Helper()
	c := s.client()
	_, err := c.Register(t.Context(), authsdk.RegisterRequest{
		Email:           email,
		Password:        testPassword,
		ConfirmPassword: testPassword,
		FirstName:       "Ada",
		LastName:        "Lovelace",
	})
	require.NoError(t, err)

	resp, err := c.Login(t.Context(), authsdk.LoginRequest{
		Email:      email,
		Password:   testPassword,
		RememberMe: remember,
	})
	require.NoError(t, err)
	require.False(t, resp.TfaRequired)
	require.NotEmpty(t, c.AccessToken())
	return c
}

// post sends a raw JSON request so tests can look at headers the SDK hides.
func (s *testServer) post(t *testing.T, path string, body any, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}
