package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUserAlreadyExists  = errors.New("user_already_exists")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrTokenExpired       = errors.New("token_expired")
	ErrInvalidTFACode     = errors.New("invalid_tfa_code")
	ErrTFANotInitiated    = errors.New("tfa_not_initiated")
	ErrPasswordMismatch   = errors.New("password_mismatch")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrWeakPassword       = errors.New("weak_password")

	// ErrTokenUsed is a reset token presented a second time. It is also an
	// ErrInvalidToken so callers that don't care can treat both alike.
	ErrTokenUsed = fmt.Errorf("token_used: %w", ErrInvalidToken)
)

// MinPasswordLength is the shortest password Register and ResetPassword
// accept.
const MinPasswordLength = 8

func checkPassword(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if len([]rune(password)) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
