package jwtx_test

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/authify/pkg/cryptox"
	"github.com/aussiebroadwan/authify/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testIssuer = "authify-test"

func newEphemeral(t *testing.T, alg string) *jwtx.KeyManager {
	t.Helper()
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{Algorithm: alg, Issuer: testIssuer})
	require.NoError(t, err)
	return km
}

func TestSignAndVerify(t *testing.T) {
	for _, alg := range []string{jwtx.AlgorithmEdDSA, jwtx.AlgorithmES256} {
		t.Run(alg, func(t *testing.T) {
			t.Parallel()
			km := newEphemeral(t, alg)

			claims := jwtx.NewAccessClaims("user@example.com", testIssuer, []string{"USER"}, false, jwtx.AccessTokenTTL, time.Now().UTC())
			token, err := km.Sign(claims)
			require.NoError(t, err)

			got, err := km.Verify(context.Background(), token)
			require.NoError(t, err)
			require.Equal(t, "user@example.com", got.Subject)
			require.Equal(t, []string{"USER"}, got.Roles)
			require.Equal(t, claims.ID, got.ID)

			jwks := km.KeySet().PublicJWKS()
			require.Len(t, jwks.Keys, 1)
			require.Equal(t, alg, jwks.Keys[0].Alg)
		})
	}
}

func TestVerifyRejects(t *testing.T) {
	km := newEphemeral(t, jwtx.AlgorithmEdDSA)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("expired", func(t *testing.T) {
		token, err := km.Sign(jwtx.NewAccessClaims("a@example.com", testIssuer, nil, false, time.Minute, now.Add(-time.Hour)))
		require.NoError(t, err)
		_, err = km.Verify(ctx, token)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token, err := km.Sign(jwtx.NewAccessClaims("a@example.com", "evil", nil, false, time.Minute, now))
		require.NoError(t, err)
		_, err = km.Verify(ctx, token)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("tampered payload", func(t *testing.T) {
		token, err := km.Sign(jwtx.NewAccessClaims("a@example.com", testIssuer, nil, false, time.Minute, now))
		require.NoError(t, err)
		other, err := km.Sign(jwtx.NewAccessClaims("admin@example.com", testIssuer, []string{"ADMIN"}, false, time.Minute, now))
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		otherParts := strings.Split(other, ".")
		forged := parts[0] + "." + otherParts[1] + "." + parts[2]

		_, err = km.Verify(ctx, forged)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("foreign key", func(t *testing.T) {
		foreign := newEphemeral(t, jwtx.AlgorithmEdDSA)
		token, err := foreign.Sign(jwtx.NewAccessClaims("a@example.com", testIssuer, nil, false, time.Minute, now))
		require.NoError(t, err)
		_, err = km.Verify(ctx, token)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := km.Verify(ctx, "not.a.jwt")
		require.ErrorIs(t, err, jwtx.ErrMalformed)
	})
}

// memKeyStore is an in-memory jwtx.KeyStore shared by several managers.
type memKeyStore struct {
	mu   sync.Mutex
	keys []jwtx.SigningKeyRecord
}

func (m *memKeyStore) ListSigningKeys(context.Context) ([]jwtx.SigningKeyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]jwtx.SigningKeyRecord(nil), m.keys...), nil
}

func (m *memKeyStore) CreateSigningKey(_ context.Context, k jwtx.SigningKeyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, k)
	return nil
}

func (m *memKeyStore) RetireSigningKey(_ context.Context, kid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.keys {
		if m.keys[i].Kid == kid {
			m.keys[i].Retired = true
		}
	}
	return nil
}

func TestPersistentKeyManager(t *testing.T) {
	ctx := context.Background()
	sealer, err := cryptox.NewSealer([]byte("test-master-key"))
	require.NoError(t, err)

	store := &memKeyStore{}
	opts := jwtx.KeyManagerOptions{
		Algorithm:      jwtx.AlgorithmEdDSA,
		Issuer:         testIssuer,
		NumKeys:        2,
		Store:          store,
		Sealer:         sealer,
		ReloadInterval: time.Nanosecond,
	}

	first, err := jwtx.NewPersistentKeyManager(ctx, opts)
	require.NoError(t, err)
	require.Len(t, store.keys, 2)
	for _, k := range store.keys {
		require.NotContains(t, string(k.PrivateKeySealed), "PRIVATE KEY", "keys must be sealed at rest")
	}

	t.Run("restart reuses stored keys", func(t *testing.T) {
		second, err := jwtx.NewPersistentKeyManager(ctx, opts)
		require.NoError(t, err)
		require.Len(t, store.keys, 2)

		token, err := first.Sign(jwtx.NewAccessClaims("a@example.com", testIssuer, nil, false, time.Minute, time.Now().UTC()))
		require.NoError(t, err)
		_, err = second.Verify(ctx, token)
		require.NoError(t, err)
	})

	t.Run("sibling key picked up on unknown kid", func(t *testing.T) {
		// A sibling instance configured with more keys adds one after first started.
		more := opts
		more.NumKeys = 3
		sibling, err := jwtx.NewPersistentKeyManager(ctx, more)
		require.NoError(t, err)
		require.Len(t, store.keys, 3)

		newest := store.keys[2].Kid
		var token string
		for token == "" {
			tok, err := sibling.Sign(jwtx.NewAccessClaims("a@example.com", testIssuer, nil, false, time.Minute, time.Now().UTC()))
			require.NoError(t, err)
			if _, err := first.KeySet().Get(newest); err == nil {
				t.Fatal("first manager should not know the new key yet")
			}
			if strings.Contains(headerOf(t, tok), newest) {
				token = tok
			}
		}

		_, err = first.Verify(ctx, token)
		require.NoError(t, err)
	})

	t.Run("rotation demotes old keys everywhere", func(t *testing.T) {
		sibling, err := jwtx.NewPersistentKeyManager(ctx, opts)
		require.NoError(t, err)

		before, err := first.Sign(jwtx.NewAccessClaims("a@example.com", testIssuer, nil, false, time.Minute, time.Now().UTC()))
		require.NoError(t, err)

		res, err := first.Rotate(ctx)
		require.NoError(t, err)
		require.Len(t, res.Active, 2)
		require.NotEmpty(t, res.Retired)

		// tokens from retired keys still verify
		_, err = first.Verify(ctx, before)
		require.NoError(t, err)

		require.NoError(t, sibling.Reload(ctx))
		for range 20 {
			tok, err := sibling.Sign(jwtx.NewAccessClaims("a@example.com", testIssuer, nil, false, time.Minute, time.Now().UTC()))
			require.NoError(t, err)
			for _, kid := range res.Retired {
				require.NotContains(t, headerOf(t, tok), kid)
			}
			_, err = first.Verify(ctx, tok)
			require.NoError(t, err)
		}
	})

	t.Run("wrong master key fails", func(t *testing.T) {
		other, err := cryptox.NewSealer([]byte("different"))
		require.NoError(t, err)
		bad := opts
		bad.Sealer = other
		_, err = jwtx.NewPersistentKeyManager(ctx, bad)
		require.Error(t, err)
	})
}

func TestEphemeralRotate(t *testing.T) {
	km := newEphemeral(t, jwtx.AlgorithmEdDSA)
	before, err := km.Sign(jwtx.NewAccessClaims("a@example.com", testIssuer, nil, false, time.Minute, time.Now().UTC()))
	require.NoError(t, err)

	res, err := km.Rotate(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Active, 1)
	require.Len(t, res.Retired, 1)
	require.Len(t, km.KeySet().PublicJWKS().Keys, 2)

	_, err = km.Verify(context.Background(), before)
	require.NoError(t, err)
}

func headerOf(t *testing.T, token string) string {
	t.Helper()
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	return string(raw)
}
