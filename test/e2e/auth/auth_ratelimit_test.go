package auth_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/authify/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestRateLimitLoginEndpoint verifies that /api/auth/login is rate limited.
// This endpoint has strict limits (5 req/min) to prevent brute force attacks.
func TestRateLimitLoginEndpoint(t *testing.T) {
	baseURL, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)
	req := authsdk.LoginRequest{Email: "victim@example.com", Password: "wrong-password"}

	// Make requests until we hit the rate limit (strict limit is 5 req/min)
	// We'll make 6 requests rapidly and expect the 6th to be rate limited
	for i := range 5 {
		_, err := client.Login(t.Context(), req)
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials, "Should not be rate limited yet (request %d)", i+1)
	}

	_, err := client.Login(t.Context(), req)
	assertStatus(t, err, http.StatusTooManyRequests, "6th login")

	// The bucket is per email, so another account from the same address still gets through
	_, err = client.Login(t.Context(), authsdk.LoginRequest{Email: "someone-else@example.com", Password: "wrong-password"})
	require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)

	t.Logf("Successfully rate limited after 5 requests to /api/auth/login")
}

// TestRateLimitJWKSEndpoint verifies the JWKS endpoint has a high public limit.
// This endpoint should allow many requests since it's frequently polled by clients.
func TestRateLimitJWKSEndpoint(t *testing.T) {
	baseURL, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)

	// Public limit is 1000 req/min, so we should be able to make many requests
	// Let's test that we can make at least 50 requests without being rate limited
	for i := range 50 {
		jwks, err := client.GetJWKS(t.Context())
		require.NoError(t, err, "Request %d should not be rate limited", i+1)
		require.NotNil(t, jwks)
	}

	t.Logf("Successfully made 50 requests to /jwks.json without rate limiting")
}

// TestRateLimitHealthEndpoints verifies health check endpoints have lenient limits.
// Monitoring systems poll these frequently, so they need higher limits.
func TestRateLimitHealthEndpoints(t *testing.T) {
	baseURL, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := authsdk.NewSDKClient(baseURL)

	// Lenient limit is 100 req/min, test we can make 30 requests to both endpoints
	for i := range 30 {
		health, err := client.GetLiveness(t.Context())
		require.NoError(t, err, "Liveness request %d should not be rate limited", i+1)
		require.Equal(t, "ok", health.Status)

		health, err = client.GetReadiness(t.Context())
		require.NoError(t, err, "Readiness request %d should not be rate limited", i+1)
		require.Equal(t, "ok", health.Status)
	}

	t.Logf("Successfully made 30 requests each to /livez and /readyz without rate limiting")
}

// TestRateLimitHeadersPresent verifies that rate limit response includes proper headers.
func TestRateLimitHeadersPresent(t *testing.T) {
	baseURL, cleanup := setupAuthContainerWithDefaultRateLimits(t)
	defer cleanup()

	// We need to use raw HTTP client to inspect headers
	httpClient := &http.Client{}
	body, err := json.Marshal(authsdk.ForgotPasswordRequest{Email: "victim@example.com"})
	require.NoError(t, err)

	send := func() *http.Response {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, baseURL+"/api/auth/forgot-password", bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := httpClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	// Use up the strict budget
	for range 5 {
		resp := send()
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}

	resp := send()
	defer resp.Body.Close()

	// Should be rate limited
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "Should receive 429 status")

	// Verify rate limit headers are present
	retryAfter := resp.Header.Get("Retry-After")
	require.NotEmpty(t, retryAfter, "Should include Retry-After header")

	rateLimit := resp.Header.Get("X-RateLimit-Limit")
	require.NotEmpty(t, rateLimit, "Should include X-RateLimit-Limit header")

	rateLimitWindow := resp.Header.Get("X-RateLimit-Window")
	require.NotEmpty(t, rateLimitWindow, "Should include X-RateLimit-Window header")

	t.Logf("Rate limit headers present: Retry-After=%s, Limit=%s, Window=%s",
		retryAfter, rateLimit, rateLimitWindow)
}
