package domain

import "time"

// SigningKey is a JWT signing key shared by every instance on the same
// store. The private key is sealed with the instance master key.
type SigningKey struct {
	Kid                 string
	Algorithm           string     // EdDSA or ES256
	PrivateKeyEncrypted []byte     // AES-256-GCM sealed PKCS8 PEM
	CreatedAt           time.Time
	RetiredAt           *time.Time // no longer used to sign (nil = active)
	ExpiresAt           *time.Time // deleted by housekeeping after this
}

// IsActive returns true if the key may sign new tokens.
func (k *SigningKey) IsActive(now time.Time) bool {
	return k.RetiredAt == nil && !k.IsExpired(now)
}

// IsExpired returns true if the key has passed its expiration time.
func (k *SigningKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
