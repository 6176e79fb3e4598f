package auth_test

import (
	"testing"

	"github.com/aussiebroadwan/authify/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestKeyRotation verifies the key rotation flow:
// 1. Register and login as the configured admin
// 2. Read the initial JWKS (should have 1 key)
// 3. Rotate keys
// 4. JWKS keeps the retired key next to the new one
// 5. The token signed before rotation still works, and a fresh login uses the new key
func TestKeyRotation(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	// 1. Admin session
	admin := registerAndLogin(t, baseURL, adminEmail, false)
	me, err := admin.Me(t.Context())
	require.NoError(t, err)
	require.Contains(t, me.Roles, "ADMIN")

	// 2. Initial keys
	initial, err := admin.GetJWKS(t.Context())
	require.NoError(t, err)
	require.Len(t, initial.Keys, 1, "Should have exactly 1 initial key")
	initialKid := initial.Keys[0].Kid

	// 3. Rotate
	resp, err := admin.RotateKeys(t.Context())
	require.NoError(t, err)
	require.Len(t, resp.Active, 1)
	require.Equal(t, []string{initialKid}, resp.Retired)
	t.Logf("Rotated: active=%v retired=%v", resp.Active, resp.Retired)

	// 4. Both keys published
	after, err := admin.GetJWKS(t.Context())
	require.NoError(t, err)
	require.Len(t, after.Keys, 2, "Retired key should stay verifiable")

	// 5. Old token still verifies; new logins still work
	_, err = admin.Me(t.Context())
	require.NoError(t, err, "Token signed by the retired key should still verify")

	fresh := authsdk.NewSDKClient(baseURL)
	_, err = fresh.Login(t.Context(), authsdk.LoginRequest{Email: adminEmail, Password: userPassword})
	require.NoError(t, err)
	_, err = fresh.Me(t.Context())
	require.NoError(t, err)
}

// TestKeyRotationRequiresAdmin verifies regular users can't rotate keys.
func TestKeyRotationRequiresAdmin(t *testing.T) {
	baseURL, cleanup := setupAuthContainer(t)
	defer cleanup()

	user := registerAndLogin(t, baseURL, "mallory@example.com", false)
	_, err := user.RotateKeys(t.Context())
	require.ErrorIs(t, err, authsdk.ErrForbidden)

	_, err = authsdk.NewSDKClient(baseURL).RotateKeys(t.Context())
	require.ErrorIs(t, err, authsdk.ErrUnauthenticated)
}
