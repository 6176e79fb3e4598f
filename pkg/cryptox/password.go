package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// ErrPasswordMismatch is returned by ComparePassword when the password does
// not match the stored hash.
var ErrPasswordMismatch = errors.New("cryptox: password does not match")

// HashPassword generates a PHC-format Argon2id hash string including salt and
// parameters.
func HashPassword(password string) (string, error) {
	pep, err := currentPepper()
	if err != nil {
		return "", err
	}

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("cryptox: generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password+pep), salt, iterations, memory, parallelism, keyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		memory,
		iterations,
		parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// phcHash is a decoded "$argon2id$v=19$m=X,t=Y,p=Z$salt$hash" string.
type phcHash struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phcHash, error) {
	// ["", "argon2id", "v=19", "m=X,t=Y,p=Z", "salt", "hash"]
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, errors.New("invalid hash format: expected 6 parts")
	}
	if parts[1] != "argon2id" {
		return nil, errors.New("invalid hash format: not argon2id")
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return nil, errors.New("invalid hash format: wrong version")
	}

	var h phcHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.memory, &h.iterations, &h.parallelism); err != nil {
		return nil, fmt.Errorf("invalid hash format: failed to parse parameters: %w", err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("invalid hash format: failed to decode salt: %w", err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("invalid hash format: failed to decode hash: %w", err)
	}
	return &h, nil
}

// ComparePassword checks a plaintext password against a PHC-style Argon2id
// hash. It returns nil on match, ErrPasswordMismatch on mismatch and a
// descriptive error when the stored hash can't be parsed.
func ComparePassword(encodedHash, password string) error {
	pep, err := currentPepper()
	if err != nil {
		return err
	}

	h, err := parsePHC(encodedHash)
	if err != nil {
		return err
	}

	computed := argon2.IDKey(
		[]byte(password+pep),
		h.salt,
		h.iterations,
		h.memory,
		h.parallelism,
		uint32(len(h.key)), // #nosec G115 - key length comes from our own encoder
	)

	if subtle.ConstantTimeCompare(computed, h.key) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

var (
	dummyOnce sync.Once
	dummyHash string
)

// CompareDummy burns the same amount of work as ComparePassword against a
// throwaway hash. Login calls it for unknown emails so response timing does
// not reveal whether an account exists.
func CompareDummy(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = HashPassword(MustRandomString(16))
	})
	if dummyHash == "" {
		return
	}
	_ = ComparePassword(dummyHash, password)
}

// MustRandomString returns n random bytes encoded as base64url. It panics if
// the system random source fails.
func MustRandomString(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("cryptox: random source failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
