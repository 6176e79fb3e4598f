package domain

import (
	"strings"
	"time"
)

type User struct {
	ID            string
	Email         string // unique, lower case
	PasswordHash  string // argon2id PHC string
	FirstName     string
	LastName      string
	EmailVerified bool
	TFAEnabled    bool
	TFASecret     *string // base32 TOTP secret, nil until provisioned
	Roles         []RoleName
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NormalizeEmail is applied to every email before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// TFAState reports where the user is in the second-factor lifecycle.
func (u *User) TFAState() TFAState {
	switch {
	case u.TFASecret == nil:
		return TFANone
	case u.TFAEnabled:
		return TFAActive
	default:
		return TFAProvisioned
	}
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role RoleName) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleStrings returns the roles as plain strings for tokens and responses.
func (u *User) RoleStrings() []string {
	out := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		out[i] = string(r)
	}
	return out
}
