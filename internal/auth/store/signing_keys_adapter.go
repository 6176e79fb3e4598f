package store

import (
	"context"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
	"github.com/aussiebroadwan/authify/pkg/jwtx"
)

// KeyStoreAdapter adapts the store.Store interface to the jwtx.KeyStore interface.
// This allows the jwtx package to work with signing keys without depending on the
// domain package directly, preventing circular dependencies.
type KeyStoreAdapter struct {
	store Store
	now   func() time.Time

	// RetiredKeyGrace is how long a retired key stays verifiable. It must
	// outlive the access tokens it signed.
	RetiredKeyGrace time.Duration
}

// DefaultRetiredKeyGrace comfortably covers jwtx.AccessTokenTTL.
const DefaultRetiredKeyGrace = 24 * time.Hour

// NewKeyStoreAdapter creates a new adapter that implements jwtx.KeyStore using a store.Store.
func NewKeyStoreAdapter(store Store) *KeyStoreAdapter {
	return &KeyStoreAdapter{store: store, now: time.Now, RetiredKeyGrace: DefaultRetiredKeyGrace}
}

// ListSigningKeys returns every non-expired key, retired ones included, so
// tokens they signed keep verifying. Retired keys never sign.
func (a *KeyStoreAdapter) ListSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error) {
	keys, err := a.store.SigningKeys().ListSigningKeys(ctx, a.now())
	if err != nil {
		return nil, err
	}

	records := make([]jwtx.SigningKeyRecord, len(keys))
	for i, key := range keys {
		records[i] = jwtx.SigningKeyRecord{
			Kid:              key.Kid,
			Algorithm:        key.Algorithm,
			PrivateKeySealed: key.PrivateKeyEncrypted,
			CreatedAt:        key.CreatedAt,
			Retired:          key.RetiredAt != nil,
		}
	}
	return records, nil
}

// CreateSigningKey stores a new signing key with encrypted private key material.
func (a *KeyStoreAdapter) CreateSigningKey(ctx context.Context, key jwtx.SigningKeyRecord) error {
	return a.store.SigningKeys().CreateSigningKey(ctx, domain.SigningKey{
		Kid:                 key.Kid,
		Algorithm:           key.Algorithm,
		PrivateKeyEncrypted: key.PrivateKeySealed,
		CreatedAt:           key.CreatedAt,
	})
}

// RetireSigningKey demotes kid to verify only and schedules its deletion
// after RetiredKeyGrace.
func (a *KeyStoreAdapter) RetireSigningKey(ctx context.Context, kid string) error {
	now := a.now()
	grace := max(a.RetiredKeyGrace, jwtx.AccessTokenTTL)
	return a.store.SigningKeys().RetireSigningKey(ctx, kid, now, now.Add(grace))
}
