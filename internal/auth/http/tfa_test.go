package http_test

import (
	"strings"
	"testing"

	"github.com/aussiebroadwan/authify/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestTFAFlow(t *testing.T) {
	srv := setupServer(t)
	c := srv.signUp(t, "ada@example.com", false)

	t.Run("requires a session", func(t *testing.T) {
		_, err := srv.client().EnableTfa(t.Context())
		require.ErrorIs(t, err, authsdk.ErrUnauthenticated)
	})

	t.Run("verify before enable", func(t *testing.T) {
		_, err := c.VerifyTfa(t.Context(), "123456")
		require.ErrorIs(t, err, authsdk.ErrTfaNotInitiated)
	})

	setup, err := c.EnableTfa(t.Context())
	require.NoError(t, err)
	require.NotEmpty(t, setup.Secret)
	require.True(t, strings.HasPrefix(setup.QRCodeURI, "data:image/png;base64,"))
	require.True(t, strings.HasPrefix(setup.ProvisioningURI, "otpauth://totp/"))
	require.Equal(t, "Scan the QR code with your authenticator app, then verify with a code", setup.Message)

	// Provisioned is not enabled yet.
	me, err := c.Me(t.Context())
	require.NoError(t, err)
	require.False(t, me.TfaEnabled)

	_, err = c.VerifyTfa(t.Context(), "000000")
	require.ErrorIs(t, err, authsdk.ErrInvalidTfaVerifyCode)

	resp, err := c.VerifyTfa(t.Context(), currentCode(t, setup.Secret))
	require.NoError(t, err)
	require.Equal(t, "Two-factor authentication enabled successfully!", resp.Message)

	t.Run("login asks for a code", func(t *testing.T) {
		fresh := srv.client()
		res, err := fresh.Login(t.Context(), authsdk.LoginRequest{Email: "ada@example.com", Password: testPassword})
		require.NoError(t, err)
		require.True(t, res.TfaRequired)
		require.Equal(t, "2FA code required", res.Message)
		require.Equal(t, "ada@example.com", res.Email)
		require.Empty(t, res.Roles)
		require.Empty(t, fresh.AccessToken())
	})

	t.Run("wrong code", func(t *testing.T) {
		_, err := srv.client().Login(t.Context(), authsdk.LoginRequest{
			Email:    "ada@example.com",
			Password: testPassword,
			TfaCode:  "000000",
		})
		require.ErrorIs(t, err, authsdk.ErrInvalidTfaCode)
	})

	t.Run("correct code", func(t *testing.T) {
		fresh := srv.client()
		res, err := fresh.Login(t.Context(), authsdk.LoginRequest{
			Email:    "ada@example.com",
			Password: testPassword,
			TfaCode:  currentCode(t, setup.Secret),
		})
		require.NoError(t, err)
		require.False(t, res.TfaRequired)
		require.True(t, res.TfaEnabled)
		require.NotEmpty(t, fresh.AccessToken())
	})

	resp, err = c.DisableTfa(t.Context())
	require.NoError(t, err)
	require.Equal(t, "Two-factor authentication disabled", resp.Message)

	res, err := srv.client().Login(t.Context(), authsdk.LoginRequest{Email: "ada@example.com", Password: testPassword})
	require.NoError(t, err)
	require.False(t, res.TfaRequired)
}
