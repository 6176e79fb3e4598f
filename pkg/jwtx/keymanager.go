package jwtx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"sync"
	"time"

	"github.com/aussiebroadwan/authify/pkg/cryptox"
)

// SigningKeyRecord is a signing key as persisted by the credential store.
// It lives here so jwtx doesn't import the store package.
type SigningKeyRecord struct {
	Kid              string
	Algorithm        string
	PrivateKeySealed []byte
	CreatedAt        time.Time
	Retired          bool // verify only
}

// KeyStore is the slice of the credential store the persistent key manager
// needs.
type KeyStore interface {
	// ListSigningKeys returns every stored key, oldest first.
	ListSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	// CreateSigningKey stores a new sealed key.
	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error

	// RetireSigningKey stops kid from signing. It stays verifiable until
	// the store expires it.
	RetireSigningKey(ctx context.Context, kid string) error
}

// KeyManagerOptions configures a KeyManager.
type KeyManagerOptions struct {
	// Algorithm for newly generated keys: AlgorithmEdDSA or AlgorithmES256.
	Algorithm string

	// Issuer is stamped into and required on every token.
	Issuer string

	// NumKeys is the number of signing keys to keep available. Defaults to 1,
	// capped at 10.
	NumKeys int

	// Store and Sealer enable persistent mode. Both or neither.
	Store  KeyStore
	Sealer *cryptox.Sealer

	// ReloadInterval bounds how often an unknown kid triggers a reload from
	// the store in persistent mode. Defaults to 30s.
	ReloadInterval time.Duration
}

// KeyManager owns the signing keys of this instance and the KeySet used to
// verify tokens minted by any instance sharing the same store.
type KeyManager struct {
	opts     KeyManagerOptions
	keys     *KeySet
	verifier *Verifier

	mu         sync.RWMutex
	signers    []*Signer
	lastReload time.Time
}

// NewEphemeralKeyManager generates in-memory keys only. Tokens stop verifying
// when the process restarts; intended for tests and single-node development.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	km, err := newKeyManager(opts)
	if err != nil {
		return nil, err
	}

	for len(km.signers) < km.opts.NumKeys {
		s, err := km.generate(context.Background())
		if err != nil {
			return nil, err
		}
		if err := km.addSigner(s); err != nil {
			return nil, err
		}
	}
	return km, nil
}

// NewPersistentKeyManager loads sealed keys from the store, generating and
// storing new ones until NumKeys keys of the configured algorithm exist.
// Every instance pointing at the same store ends up able to verify every
// other instance's tokens.
func NewPersistentKeyManager(ctx context.Context, opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Store == nil || opts.Sealer == nil {
		return nil, errors.New("jwtx: Store and Sealer are required for persistent keys")
	}

	km, err := newKeyManager(opts)
	if err != nil {
		return nil, err
	}
	if err := km.Reload(ctx); err != nil {
		return nil, err
	}

	for km.signerCount() < km.opts.NumKeys {
		s, err := km.generate(ctx)
		if err != nil {
			return nil, err
		}
		if err := km.addSigner(s); err != nil {
			return nil, err
		}
	}
	return km, nil
}

func newKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: Issuer is required")
	}
	if opts.Algorithm == "" {
		opts.Algorithm = AlgorithmEdDSA
	}
	if opts.Algorithm != AlgorithmEdDSA && opts.Algorithm != AlgorithmES256 {
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", opts.Algorithm)
	}
	opts.NumKeys = min(max(opts.NumKeys, 1), 10)
	if opts.ReloadInterval <= 0 {
		opts.ReloadInterval = 30 * time.Second
	}

	keys := NewKeySet()
	return &KeyManager{
		opts:     opts,
		keys:     keys,
		verifier: NewVerifier(keys, opts.Issuer),
	}, nil
}

// Reload pulls every stored key into the KeySet. Keys of the configured
// algorithm also become signing candidates.
func (km *KeyManager) Reload(ctx context.Context) error {
	if km.opts.Store == nil {
		return nil
	}

	records, err := km.opts.Store.ListSigningKeys(ctx)
	if err != nil {
		return fmt.Errorf("jwtx: load keys: %w", err)
	}

	retired := make(map[string]bool)
	for _, rec := range records {
		if rec.Retired {
			retired[rec.Kid] = true
		}
	}

	km.mu.Lock()
	km.lastReload = time.Now()
	known := make(map[string]bool, len(km.signers))
	active := km.signers[:0]
	for _, s := range km.signers {
		known[s.KID()] = true
		if !retired[s.KID()] {
			active = append(active, s)
		}
	}
	km.signers = active
	km.mu.Unlock()

	for _, rec := range records {
		if _, err := km.keys.Get(rec.Kid); known[rec.Kid] || err == nil {
			continue
		}
		pemKey, err := km.opts.Sealer.Open(rec.PrivateKeySealed)
		if err != nil {
			return fmt.Errorf("jwtx: unseal key %s: %w", rec.Kid, err)
		}
		s, err := NewSigner(rec.Algorithm, rec.Kid, pemKey)
		if err != nil {
			return fmt.Errorf("jwtx: load key %s: %w", rec.Kid, err)
		}

		if rec.Retired || rec.Algorithm != km.opts.Algorithm {
			// Still verifiable, just not used to sign new tokens.
			if err := km.keys.AddSigner(s); err != nil {
				return err
			}
			continue
		}
		if err := km.addSigner(s); err != nil {
			return err
		}
	}
	return nil
}

// generate creates a signer of the configured algorithm, sealing and storing
// it first in persistent mode.
func (km *KeyManager) generate(ctx context.Context) (*Signer, error) {
	s, pemKey, err := GenerateSigner(km.opts.Algorithm, newKID())
	if err != nil {
		return nil, err
	}
	if km.opts.Store == nil {
		return s, nil
	}

	sealed, err := km.opts.Sealer.Seal(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: seal key: %w", err)
	}
	rec := SigningKeyRecord{
		Kid:              s.KID(),
		Algorithm:        s.Alg(),
		PrivateKeySealed: sealed,
		CreatedAt:        time.Now().UTC(),
	}
	if err := km.opts.Store.CreateSigningKey(ctx, rec); err != nil {
		return nil, fmt.Errorf("jwtx: store key: %w", err)
	}
	return s, nil
}

// RotateResult describes a completed rotation.
type RotateResult struct {
	Active  []string // kids now used for signing
	Retired []string // kids demoted to verify only
}

// Rotate replaces every signing key with NumKeys fresh ones. Old keys stay
// in the KeySet so tokens they signed keep verifying. New keys are stored
// before old ones are retired, so siblings never reload into an empty
// signing set.
func (km *KeyManager) Rotate(ctx context.Context) (*RotateResult, error) {
	fresh := make([]*Signer, 0, km.opts.NumKeys)
	for range km.opts.NumKeys {
		s, err := km.generate(ctx)
		if err != nil {
			return nil, err
		}
		if err := km.keys.AddSigner(s); err != nil {
			return nil, fmt.Errorf("jwtx: add key %s: %w", s.KID(), err)
		}
		fresh = append(fresh, s)
	}

	km.mu.Lock()
	old := km.signers
	km.signers = fresh
	km.mu.Unlock()

	res := &RotateResult{}
	for _, s := range fresh {
		res.Active = append(res.Active, s.KID())
	}
	for _, s := range old {
		if km.opts.Store != nil {
			if err := km.opts.Store.RetireSigningKey(ctx, s.KID()); err != nil {
				return nil, fmt.Errorf("jwtx: retire key %s: %w", s.KID(), err)
			}
		}
		res.Retired = append(res.Retired, s.KID())
	}
	return res, nil
}

func (km *KeyManager) addSigner(s *Signer) error {
	if err := km.keys.AddSigner(s); err != nil {
		return fmt.Errorf("jwtx: add key %s: %w", s.KID(), err)
	}
	km.mu.Lock()
	km.signers = append(km.signers, s)
	km.mu.Unlock()
	return nil
}

func (km *KeyManager) signerCount() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// Sign signs claims with one of the active keys, picked at random.
func (km *KeyManager) Sign(claims Claims) (string, error) {
	km.mu.RLock()
	if len(km.signers) == 0 {
		km.mu.RUnlock()
		return "", ErrNoKey
	}
	s := km.signers[mrand.IntN(len(km.signers))]
	km.mu.RUnlock()

	return s.Sign(claims)
}

// Verify checks tokenStr. In persistent mode an unknown kid triggers one
// rate-limited reload so keys minted by a sibling instance after our startup
// are picked up.
func (km *KeyManager) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := km.verifier.Verify(tokenStr)
	if !errors.Is(err, ErrUnknownKID) || km.opts.Store == nil {
		return claims, err
	}

	km.mu.RLock()
	stale := time.Since(km.lastReload) >= km.opts.ReloadInterval
	km.mu.RUnlock()
	if !stale {
		return nil, err
	}

	if rerr := km.Reload(ctx); rerr != nil {
		return nil, errors.Join(err, rerr)
	}
	return km.verifier.Verify(tokenStr)
}

// KeySet exposes the public keys for the JWKS endpoint and readiness checks.
func (km *KeyManager) KeySet() *KeySet { return km.keys }

// Issuer is the issuer stamped into every token.
func (km *KeyManager) Issuer() string { return km.opts.Issuer }

func newKID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
