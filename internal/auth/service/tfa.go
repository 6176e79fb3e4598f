package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
	"github.com/aussiebroadwan/authify/internal/auth/store"
	"github.com/aussiebroadwan/authify/pkg/slogx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP parameters. Authenticator apps assume these when the provisioning URI
// doesn't say otherwise.
const (
	TOTPSecretSize = 32 // bytes before base32
	TOTPPeriod     = 30 // seconds
	TOTPSkew       = 1  // accept one step either side
	TOTPDigits     = otp.DigitsSix

	qrCodeSize = 200
)

// TFAService provisions, checks and toggles TOTP second factors.
//
// A user moves none -> provisioned (secret stored) -> active (confirmed with
// a valid code). Disable returns to none.
type TFAService struct {
	Store store.Store

	// Issuer is the label authenticator apps show next to the account.
	Issuer string

	// Now is overridable in tests.
	Now func() time.Time
}

func (s *TFAService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Provision generates a new secret for the user and stores it without
// enabling TFA. Any earlier secret is replaced, and an active TFA drops back
// to provisioned until the new secret is confirmed.
func (s *TFAService) Provision(ctx context.Context, email string) (*domain.TFASetup, error) {
	ctx, span := startSpan(ctx, "TFA.Provision")
	var err error
	defer func() { endSpan(span, err) }()

	user, err := s.userByEmail(ctx, s.Store, email)
	if err != nil {
		return nil, err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Email,
		Period:      TOTPPeriod,
		SecretSize:  TOTPSecretSize,
		Digits:      TOTPDigits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}

	qr, err := qrDataURI(key)
	if err != nil {
		return nil, err
	}

	if err = s.Store.Users().SetTFASecret(ctx, user.ID, key.Secret()); err != nil {
		return nil, fmt.Errorf("store totp secret: %w", err)
	}

	slogx.FromContext(ctx).Info("tfa provisioned", slog.String("user_id", user.ID))
	return &domain.TFASetup{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRCodeDataURI:   qr,
	}, nil
}

// Check reports whether code is valid for secret right now. The comparison
// inside the library is constant time.
func (s *TFAService) Check(secret, code string) bool {
	code = strings.TrimSpace(code)
	if secret == "" || !isDigits(code, int(TOTPDigits)) {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, s.now(), totp.ValidateOpts{
		Period:    TOTPPeriod,
		Skew:      TOTPSkew,
		Digits:    TOTPDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// Activate confirms a provisioned secret with a current code and enables TFA.
func (s *TFAService) Activate(ctx context.Context, email, code string) error {
	ctx, span := startSpan(ctx, "TFA.Activate")

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := s.userByEmail(ctx, tx, email)
		if err != nil {
			return err
		}
		if user.TFASecret == nil {
			return ErrTFANotInitiated
		}
		if !s.Check(*user.TFASecret, code) {
			return ErrInvalidTFACode
		}
		// a concurrent Provision or Disable may have replaced the secret
		// since it was read; only the one the code matched may be enabled
		err = tx.Users().EnableTFA(ctx, user.ID, *user.TFASecret)
		if errors.Is(err, store.ErrNotFound) {
			return ErrTFANotInitiated
		}
		return err
	})
	endSpan(span, err)
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("tfa activated")
	return nil
}

// Disable clears the secret and the enabled flag together.
func (s *TFAService) Disable(ctx context.Context, email string) error {
	ctx, span := startSpan(ctx, "TFA.Disable")
	var err error
	defer func() { endSpan(span, err) }()

	user, err := s.userByEmail(ctx, s.Store, email)
	if err != nil {
		return err
	}
	if err = s.Store.Users().DisableTFA(ctx, user.ID); err != nil {
		return fmt.Errorf("disable tfa: %w", err)
	}

	slogx.FromContext(ctx).Info("tfa disabled", slog.String("user_id", user.ID))
	return nil
}

func (s *TFAService) userByEmail(ctx context.Context, st store.Store, email string) (domain.User, error) {
	user, err := st.Users().GetUserByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func qrDataURI(key *otp.Key) (string, error) {
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return "", fmt.Errorf("render qr code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
