package sqlite_test

import (
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/authify/internal/auth/store"
	"github.com/aussiebroadwan/authify/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/authify/internal/auth/store/storetest"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, newMemoryStore)
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.db")

	s, err := sqlite.NewStore(path)
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Close())

	s, err = sqlite.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
}

func TestTFAPairConstraint(t *testing.T) {
	s := newMemoryStore(t).(*sqlite.Store)

	_, err := s.DB().Exec(`INSERT INTO users (id, email, password_hash, tfa_enabled, created_at, updated_at)
		VALUES ('u1', 'x@example.com', 'h', 1, 0, 0)`)
	require.Error(t, err, "tfa_enabled without a secret must be rejected")
}
