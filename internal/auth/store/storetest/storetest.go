// Package storetest holds the behaviour every store driver must share. Driver
// packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
	"github.com/aussiebroadwan/authify/internal/auth/store"
	"github.com/aussiebroadwan/authify/pkg/cryptox"
	"github.com/aussiebroadwan/authify/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Factory returns a migrated, empty store. It should register its own cleanup.
type Factory func(t *testing.T) store.Store

// Run exercises s against the store contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("tfa", func(t *testing.T) { testTFA(t, newStore(t)) })
	t.Run("roles", func(t *testing.T) { testRoles(t, newStore(t)) })
	t.Run("refresh tokens", func(t *testing.T) { testRefreshTokens(t, newStore(t)) })
	t.Run("reset tokens", func(t *testing.T) { testResetTokens(t, newStore(t)) })
	t.Run("verification tokens", func(t *testing.T) { testVerificationTokens(t, newStore(t)) })
	t.Run("signing keys", func(t *testing.T) { testSigningKeys(t, newStore(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
}

// seedUser creates a user with the USER role.
func seedUser(t *testing.T, s store.Store, email string) domain.User {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Roles().EnsureRole(ctx, domain.Role{ID: idx.New().String(), Name: domain.RoleUser}))
	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		FirstName:    "Ada",
		LastName:     "Lovelace",
	}
	require.NoError(t, s.Users().CreateUser(ctx, u))
	require.NoError(t, s.Roles().AssignRole(ctx, u.ID, domain.RoleUser))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	return got
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "ada@example.com")

	byEmail, err := s.Users().GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)
	require.Equal(t, "Ada", byEmail.FirstName)
	require.Equal(t, "Lovelace", byEmail.LastName)
	require.False(t, byEmail.EmailVerified)
	require.False(t, byEmail.TFAEnabled)
	require.Nil(t, byEmail.TFASecret)
	require.Equal(t, []domain.RoleName{domain.RoleUser}, byEmail.Roles)
	require.WithinDuration(t, time.Now(), byEmail.CreatedAt, time.Minute)

	_, err = s.Users().GetUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Users().GetUserByID(ctx, idx.New().String())
	require.ErrorIs(t, err, store.ErrNotFound)

	dup := domain.User{ID: idx.New().String(), Email: "ada@example.com", PasswordHash: "x"}
	require.ErrorIs(t, s.Users().CreateUser(ctx, dup), store.ErrAlreadyExists)

	require.NoError(t, s.Users().UpdatePasswordHash(ctx, u.ID, "new-hash"))
	require.NoError(t, s.Users().MarkEmailVerified(ctx, u.ID))
	require.NoError(t, s.Users().MarkEmailVerified(ctx, u.ID), "verifying twice is fine")

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "new-hash", got.PasswordHash)
	require.True(t, got.EmailVerified)

	require.ErrorIs(t, s.Users().UpdatePasswordHash(ctx, idx.New().String(), "x"), store.ErrNotFound)
}

func testTFA(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "tfa@example.com")
	users := s.Users()

	require.ErrorIs(t, users.EnableTFA(ctx, u.ID, "SECRETONE"), store.ErrNotFound, "enable needs a secret")

	require.NoError(t, users.SetTFASecret(ctx, u.ID, "SECRETONE"))
	got, err := users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TFAProvisioned, got.TFAState())
	require.Equal(t, "SECRETONE", *got.TFASecret)

	require.NoError(t, users.EnableTFA(ctx, u.ID, "SECRETONE"))
	got, err = users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TFAActive, got.TFAState())

	// re-provisioning drops back to provisioned
	require.NoError(t, users.SetTFASecret(ctx, u.ID, "SECRETTWO"))
	got, err = users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TFAProvisioned, got.TFAState())
	require.Equal(t, "SECRETTWO", *got.TFASecret)

	// a code checked against the old secret can't enable the new one
	require.ErrorIs(t, users.EnableTFA(ctx, u.ID, "SECRETONE"), store.ErrNotFound)
	got, err = users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TFAProvisioned, got.TFAState())

	require.NoError(t, users.EnableTFA(ctx, u.ID, "SECRETTWO"))
	require.NoError(t, users.DisableTFA(ctx, u.ID))
	require.ErrorIs(t, users.EnableTFA(ctx, u.ID, "SECRETTWO"), store.ErrNotFound, "disabled clears the secret")
	got, err = users.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TFANone, got.TFAState())
	require.False(t, got.TFAEnabled)
	require.Nil(t, got.TFASecret)
}

func testRoles(t *testing.T, s store.Store) {
	ctx := context.Background()
	for range 2 {
		for _, name := range domain.DefaultRoles {
			require.NoError(t, s.Roles().EnsureRole(ctx, domain.Role{ID: idx.New().String(), Name: name}))
		}
	}

	roles, err := s.Roles().ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	require.Equal(t, domain.RoleAdmin, roles[0].Name)
	require.Equal(t, domain.RoleUser, roles[1].Name)

	u := seedUser(t, s, "roles@example.com")
	require.NoError(t, s.Roles().AssignRole(ctx, u.ID, domain.RoleAdmin))
	require.NoError(t, s.Roles().AssignRole(ctx, u.ID, domain.RoleAdmin), "assigning twice is a no-op")
	require.ErrorIs(t, s.Roles().AssignRole(ctx, u.ID, "ROOT"), store.ErrNotFound)

	names, err := s.Roles().ListUserRoles(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, []domain.RoleName{domain.RoleAdmin, domain.RoleUser}, names)
}

func testRefreshTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "refresh@example.com")
	other := seedUser(t, s, "other@example.com")
	now := time.Now().UTC()

	mk := func(userID string, expires time.Time) domain.RefreshToken {
		tok := domain.RefreshToken{
			ID:        idx.New().String(),
			UserID:    userID,
			TokenHash: cryptox.FingerprintToken(idx.New().String()),
			ExpiresAt: expires,
			CreatedAt: now,
		}
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, tok))
		return tok
	}

	live := mk(u.ID, now.Add(domain.RefreshTokenTTL))
	mk(u.ID, now.Add(domain.RefreshTokenTTL))
	expired := mk(u.ID, now.Add(-time.Minute))
	otherTok := mk(other.ID, now.Add(domain.RefreshTokenTTL))

	got, err := s.RefreshTokens().GetRefreshTokenByHash(ctx, live.TokenHash)
	require.NoError(t, err)
	require.Equal(t, live.ID, got.ID)
	require.Equal(t, u.ID, got.UserID)
	require.WithinDuration(t, live.ExpiresAt, got.ExpiresAt, time.Millisecond)

	dup := live
	dup.ID = idx.New().String()
	require.ErrorIs(t, s.RefreshTokens().CreateRefreshToken(ctx, dup), store.ErrAlreadyExists)

	n, err := s.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, expired.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)

	deleted, err := s.RefreshTokens().DeleteRefreshToken(ctx, live.ID)
	require.NoError(t, err)
	require.True(t, deleted)
	deleted, err = s.RefreshTokens().DeleteRefreshToken(ctx, live.ID)
	require.NoError(t, err)
	require.False(t, deleted)
	_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, live.TokenHash)
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err = s.RefreshTokens().DeleteUserRefreshTokens(ctx, u.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, otherTok.TokenHash)
	require.NoError(t, err, "other users' sessions are untouched")
}

func testResetTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "reset@example.com")
	now := time.Now().UTC()

	tok := domain.PasswordResetToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken("reset-token"),
		ExpiresAt: now.Add(domain.ResetTokenTTL),
		CreatedAt: now,
	}
	require.NoError(t, s.ResetTokens().CreateResetToken(ctx, tok))

	got, err := s.ResetTokens().GetResetTokenByHash(ctx, tok.TokenHash)
	require.NoError(t, err)
	require.False(t, got.Used)

	won, err := s.ResetTokens().MarkResetTokenUsed(ctx, tok.ID)
	require.NoError(t, err)
	require.True(t, won)

	won, err = s.ResetTokens().MarkResetTokenUsed(ctx, tok.ID)
	require.NoError(t, err)
	require.False(t, won, "second consumer must lose")

	got, err = s.ResetTokens().GetResetTokenByHash(ctx, tok.TokenHash)
	require.NoError(t, err)
	require.True(t, got.Used, "used tokens are retained until housekeeping")

	n, err := s.ResetTokens().DeleteStaleResetTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func testVerificationTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "verify@example.com")
	now := time.Now().UTC()

	tok := domain.EmailVerificationToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken("verify-token"),
		ExpiresAt: now.Add(-time.Second),
		CreatedAt: now.Add(-domain.VerificationTokenTTL),
	}
	require.NoError(t, s.VerificationTokens().CreateVerificationToken(ctx, tok))

	got, err := s.VerificationTokens().GetVerificationTokenByHash(ctx, tok.TokenHash)
	require.NoError(t, err)
	require.True(t, got.IsExpired(now))

	_, err = s.VerificationTokens().GetVerificationTokenByHash(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err := s.VerificationTokens().DeleteExpiredVerificationTokens(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func testSigningKeys(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	for i, kid := range []string{"k1", "k2"} {
		require.NoError(t, s.SigningKeys().CreateSigningKey(ctx, domain.SigningKey{
			Kid:                 kid,
			Algorithm:           "EdDSA",
			PrivateKeyEncrypted: []byte{0xde, 0xad, byte(i)},
			CreatedAt:           now.Add(time.Duration(i) * time.Second),
		}))
	}
	require.ErrorIs(t, s.SigningKeys().CreateSigningKey(ctx, domain.SigningKey{
		Kid: "k1", Algorithm: "EdDSA", PrivateKeyEncrypted: []byte{1}, CreatedAt: now,
	}), store.ErrAlreadyExists)

	keys, err := s.SigningKeys().ListSigningKeys(ctx, now)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Equal(t, "k1", keys[0].Kid)
	require.Equal(t, []byte{0xde, 0xad, 0}, keys[0].PrivateKeyEncrypted)
	require.True(t, keys[0].IsActive(now))

	require.NoError(t, s.SigningKeys().RetireSigningKey(ctx, "k1", now, now.Add(time.Hour)))
	require.NoError(t, s.SigningKeys().RetireSigningKey(ctx, "k1", now, now.Add(48*time.Hour)), "retiring twice is a no-op")

	keys, err = s.SigningKeys().ListSigningKeys(ctx, now)
	require.NoError(t, err)
	require.Len(t, keys, 2, "retired keys stay listed until they expire")
	require.NotNil(t, keys[0].RetiredAt)
	require.False(t, keys[0].IsActive(now))
	require.WithinDuration(t, now.Add(time.Hour), *keys[0].ExpiresAt, time.Millisecond)

	later := now.Add(2 * time.Hour)
	keys, err = s.SigningKeys().ListSigningKeys(ctx, later)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, "k2", keys[0].Kid)

	n, err := s.SigningKeys().DeleteExpiredSigningKeys(ctx, later)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := seedUser(t, s, "tx@example.com")
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, u.ID, "rolled-back"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.PasswordHash, got.PasswordHash)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		require.Error(t, tx.WithTx(ctx, func(store.Tx) error { return nil }), "nested transactions are refused")
		return tx.Users().UpdatePasswordHash(ctx, u.ID, "committed")
	})
	require.NoError(t, err)

	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "committed", got.PasswordHash)
}
