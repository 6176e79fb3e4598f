package http_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/authify/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	srv := setupServer(t)
	c := srv.client()

	valid := authsdk.RegisterRequest{
		Email:           "ada@example.com",
		Password:        testPassword,
		ConfirmPassword: testPassword,
		FirstName:       "Ada",
		LastName:        "Lovelace",
	}

	resp, err := c.Register(t.Context(), valid)
	require.NoError(t, err)
	require.Equal(t, "Registration successful! Please check your email to verify your account.", resp.Message)
	require.NotEmpty(t, srv.mail.verificationFor(t, "ada@example.com"))

	t.Run("duplicate email", func(t *testing.T) {
		_, err := c.Register(t.Context(), valid)
		require.ErrorIs(t, err, authsdk.ErrEmailTaken)
	})

	t.Run("password mismatch", func(t *testing.T) {
		req := valid
		req.Email = "grace@example.com"
		req.ConfirmPassword = "something else"
		_, err := c.Register(t.Context(), req)
		require.ErrorIs(t, err, authsdk.ErrPasswordMismatch)
	})

	t.Run("validation", func(t *testing.T) {
		cases := map[string]authsdk.RegisterRequest{
			"Email is required":      {Password: testPassword, ConfirmPassword: testPassword, FirstName: "A", LastName: "B"},
			"Email should be valid":  {Email: "not-an-email", Password: testPassword, ConfirmPassword: testPassword, FirstName: "A", LastName: "B"},
			"First name is required": {Email: "x@example.com", Password: testPassword, ConfirmPassword: testPassword, LastName: "B"},
		}
		for want, req := range cases {
			_, err := c.Register(t.Context(), req)
			var apiErr *authsdk.APIError
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, http.StatusBadRequest, apiErr.Status)
			require.Equal(t, want, apiErr.Message)
		}
	})
}

func TestLogin(t *testing.T) {
	srv := setupServer(t)
	srv.signUp(t, "ada@example.com", false)

	t.Run("wrong password", func(t *testing.T) {
		_, err := srv.client().Login(t.Context(), authsdk.LoginRequest{Email: "ada@example.com", Password: "wrong password"})
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := srv.client().Login(t.Context(), authsdk.LoginRequest{Email: "nobody@example.com", Password: testPassword})
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	})

	t.Run("session cookies", func(t *testing.T) {
		resp := srv.post(t, "/api/auth/login", authsdk.LoginRequest{
			Email:      "ada@example.com",
			Password:   testPassword,
			RememberMe: true,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		access := cookieNamed(resp, authsdk.AccessTokenCookie)
		require.NotNil(t, access)
		require.NotEmpty(t, access.Value)
		require.Equal(t, "/", access.Path)
		require.Equal(t, 900, access.MaxAge)
		require.True(t, access.HttpOnly)

		refresh := cookieNamed(resp, authsdk.RefreshTokenCookie)
		require.NotNil(t, refresh)
		require.NotEmpty(t, refresh.Value)
		require.Equal(t, "/api/auth/refresh", refresh.Path)
		require.Equal(t, 604800, refresh.MaxAge)
		require.True(t, refresh.HttpOnly)
	})

	t.Run("no refresh cookie without remember me", func(t *testing.T) {
		c := srv.client()
		resp, err := c.Login(t.Context(), authsdk.LoginRequest{Email: "ada@example.com", Password: testPassword})
		require.NoError(t, err)
		require.Equal(t, "Login successful", resp.Message)
		require.Equal(t, "ada@example.com", resp.Email)
		require.Equal(t, []string{"USER"}, resp.Roles)
		require.NotEmpty(t, c.AccessToken())
		require.Empty(t, c.RefreshToken())
	})
}

func TestMe(t *testing.T) {
	srv := setupServer(t)

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := srv.client().Me(t.Context())
		require.ErrorIs(t, err, authsdk.ErrUnauthenticated)
	})

	c := srv.signUp(t, "ada@example.com", false)

	t.Run("cookie", func(t *testing.T) {
		me, err := c.Me(t.Context())
		require.NoError(t, err)
		require.Equal(t, "User info", me.Message)
		require.Equal(t, "Ada", me.FirstName)
		require.Equal(t, "Lovelace", me.LastName)
		require.False(t, me.TfaEnabled)
	})

	t.Run("bearer", func(t *testing.T) {
		bearer := srv.client()
		bearer.BearerToken = c.AccessToken()
		me, err := bearer.Me(t.Context())
		require.NoError(t, err)
		require.Equal(t, "ada@example.com", me.Email)
	})

	t.Run("garbage token", func(t *testing.T) {
		bearer := srv.client()
		bearer.BearerToken = "not.a.jwt"
		_, err := bearer.Me(t.Context())
		require.ErrorIs(t, err, authsdk.ErrUnauthenticated)
	})
}

func TestRefresh(t *testing.T) {
	srv := setupServer(t)
	c := srv.signUp(t, "ada@example.com", true)
	refreshToken := c.RefreshToken()
	require.NotEmpty(t, refreshToken)

	resp, err := c.Refresh(t.Context())
	require.NoError(t, err)
	require.Equal(t, "Token refreshed", resp.Message)
	require.Equal(t, refreshToken, c.RefreshToken(), "refresh token is reused by default")

	t.Run("missing cookie", func(t *testing.T) {
		_, err := srv.client().Refresh(t.Context())
		require.ErrorIs(t, err, authsdk.ErrInvalidRefresh)
	})

	t.Run("invalid token clears cookie", func(t *testing.T) {
		res := srv.post(t, "/api/auth/refresh", nil, &http.Cookie{Name: authsdk.RefreshTokenCookie, Value: "bogus"})
		require.Equal(t, http.StatusUnauthorized, res.StatusCode)

		cleared := cookieNamed(res, authsdk.RefreshTokenCookie)
		require.NotNil(t, cleared)
		require.Empty(t, cleared.Value)
		require.Equal(t, "/api/auth/refresh", cleared.Path)
		require.Negative(t, cleared.MaxAge)
	})
}

func TestLogout(t *testing.T) {
	srv := setupServer(t)

	// Two sessions for the same user.
	first := srv.signUp(t, "ada@example.com", true)
	second := srv.client()
	_, err := second.Login(t.Context(), authsdk.LoginRequest{Email: "ada@example.com", Password: testPassword, RememberMe: true})
	require.NoError(t, err)
	secondRefresh := second.RefreshToken()

	resp, err := first.Logout(t.Context())
	require.NoError(t, err)
	require.Equal(t, "Logout successful", resp.Message)
	require.Empty(t, first.AccessToken())
	require.Empty(t, first.RefreshToken())

	// Logout ends every session of the user.
	res := srv.post(t, "/api/auth/refresh", nil, &http.Cookie{Name: authsdk.RefreshTokenCookie, Value: secondRefresh})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	t.Run("always succeeds", func(t *testing.T) {
		res := srv.post(t, "/api/auth/logout", nil)
		require.Equal(t, http.StatusOK, res.StatusCode)

		access := cookieNamed(res, authsdk.AccessTokenCookie)
		require.NotNil(t, access)
		require.Equal(t, "/", access.Path)
		require.Negative(t, access.MaxAge)
	})
}

func TestVerifyEmail(t *testing.T) {
	srv := setupServer(t)
	c := srv.signUp(t, "ada@example.com", false)
	token := srv.mail.verificationFor(t, "ada@example.com")

	for range 2 {
		resp, err := c.VerifyEmail(t.Context(), token)
		require.NoError(t, err)
		require.Equal(t, "Email verified successfully!", resp.Message)
	}

	_, err := c.VerifyEmail(t.Context(), "not-a-token")
	require.ErrorIs(t, err, authsdk.ErrInvalidVerification)

	t.Run("resend skips verified accounts", func(t *testing.T) {
		_, err := c.ResendVerification(t.Context(), "ada@example.com")
		require.NoError(t, err)
		require.Equal(t, token, srv.mail.verificationFor(t, "ada@example.com"))
	})
}

func TestPasswordReset(t *testing.T) {
	srv := setupServer(t)
	c := srv.signUp(t, "ada@example.com", true)
	anon := srv.client()

	known, err := anon.ForgotPassword(t.Context(), "ada@example.com")
	require.NoError(t, err)
	unknown, err := anon.ForgotPassword(t.Context(), "nobody@example.com")
	require.NoError(t, err)
	require.Equal(t, known, unknown, "responses must not reveal whether the account exists")

	_, sent := srv.mail.resetFor("nobody@example.com")
	require.False(t, sent)
	token, sent := srv.mail.resetFor("ada@example.com")
	require.True(t, sent)

	const newPassword = "an entirely new secret"

	_, err = anon.ResetPassword(t.Context(), authsdk.ResetPasswordRequest{
		Token:           token,
		NewPassword:     newPassword,
		ConfirmPassword: "does not match",
	})
	require.ErrorIs(t, err, authsdk.ErrPasswordMismatch)

	resp, err := anon.ResetPassword(t.Context(), authsdk.ResetPasswordRequest{
		Token:           token,
		NewPassword:     newPassword,
		ConfirmPassword: newPassword,
	})
	require.NoError(t, err)
	require.Equal(t, "Password reset successfully!", resp.Message)

	_, err = anon.ResetPassword(t.Context(), authsdk.ResetPasswordRequest{
		Token:           token,
		NewPassword:     newPassword,
		ConfirmPassword: newPassword,
	})
	require.ErrorIs(t, err, authsdk.ErrUsedReset)

	// Existing sessions can no longer refresh.
	_, err = c.Refresh(t.Context())
	require.ErrorIs(t, err, authsdk.ErrInvalidRefresh)

	_, err = anon.Login(t.Context(), authsdk.LoginRequest{Email: "ada@example.com", Password: testPassword})
	require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	_, err = anon.Login(t.Context(), authsdk.LoginRequest{Email: "ada@example.com", Password: newPassword})
	require.NoError(t, err)
}

func TestRateLimit(t *testing.T) {
	srv := setupServer(t)
	c := srv.client()

	var last error
	for range 10 {
		_, last = c.Login(t.Context(), authsdk.LoginRequest{Email: "ada@example.com", Password: "wrong password"})
		var apiErr *authsdk.APIError
		require.ErrorAs(t, last, &apiErr)
		if apiErr.Status == http.StatusTooManyRequests {
			return
		}
	}
	t.Fatalf("login was never rate limited, last error: %v", last)
}
