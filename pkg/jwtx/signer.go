package jwtx

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/authify/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// Supported JWT signing algorithms.
const (
	AlgorithmEdDSA = "EdDSA"
	AlgorithmES256 = "ES256"
)

// Signer signs access tokens with one private key and stamps its kid into
// the JWT header.
type Signer struct {
	kid    string
	method jwt.SigningMethod
	key    crypto.Signer
}

// NewSigner loads a PKCS8 PEM private key for alg.
func NewSigner(alg, kid string, pemKey []byte) (*Signer, error) {
	if kid == "" {
		return nil, errors.New("jwtx: kid is required")
	}

	key, err := cryptox.ParsePrivateKeyPEM(pemKey)
	if err != nil {
		return nil, err
	}

	s := &Signer{kid: kid, key: key}
	switch alg {
	case AlgorithmEdDSA:
		if _, ok := key.(ed25519.PrivateKey); !ok {
			return nil, fmt.Errorf("jwtx: %s requires an Ed25519 key, got %T", alg, key)
		}
		s.method = jwt.SigningMethodEdDSA
	case AlgorithmES256:
		ec, ok := key.(*ecdsa.PrivateKey)
		if !ok || ec.Curve.Params().Name != "P-256" {
			return nil, fmt.Errorf("jwtx: %s requires a P-256 key", alg)
		}
		s.method = jwt.SigningMethodES256
	default:
		return nil, fmt.Errorf("jwtx: unsupported algorithm %q", alg)
	}
	return s, nil
}

// GenerateSigner creates a signer around a brand new key and also returns
// the PEM so callers can persist it.
func GenerateSigner(alg, kid string) (*Signer, []byte, error) {
	var (
		pemKey []byte
		err    error
	)
	switch alg {
	case AlgorithmEdDSA:
		pemKey, err = cryptox.GenerateEd25519Key()
	case AlgorithmES256:
		pemKey, err = cryptox.GenerateP256Key()
	default:
		return nil, nil, fmt.Errorf("jwtx: unsupported algorithm %q", alg)
	}
	if err != nil {
		return nil, nil, err
	}

	s, err := NewSigner(alg, kid, pemKey)
	if err != nil {
		return nil, nil, err
	}
	return s, pemKey, nil
}

func (s *Signer) Alg() string { return s.method.Alg() }
func (s *Signer) KID() string { return s.kid }

// Sign serialises claims into a compact JWT.
func (s *Signer) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// PublicJWK returns the verification half of the key for JWKS publishing.
func (s *Signer) PublicJWK() JWK {
	switch pub := s.key.Public().(type) {
	case ed25519.PublicKey:
		return NewEd25519JWK(s.kid, s.Alg(), pub)
	case *ecdsa.PublicKey:
		return NewP256JWK(s.kid, s.Alg(), pub)
	default:
		// NewSigner only accepts the two key types above.
		panic(fmt.Sprintf("jwtx: unexpected public key %T", pub))
	}
}
