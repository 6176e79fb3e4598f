package authsdk

import (
	"github.com/aussiebroadwan/authify/pkg/jwtx"
)

// Cookie contract. Browsers hold both tokens as HttpOnly cookies; the
// refresh cookie is scoped to the refresh endpoint so it isn't sent with
// every request.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	AccessTokenCookiePath  = "/"
	RefreshTokenCookiePath = "/api/auth/refresh"

	AccessTokenMaxAge  = 900    // seconds, matches jwtx.AccessTokenTTL
	RefreshTokenMaxAge = 604800 // seconds, seven days
)

// ============================================================================
// Account Types
// ============================================================================

// RegisterRequest creates a new account. Password and ConfirmPassword must
// match and be at least eight characters.
type RegisterRequest struct {
	Email           string `json:"email" example:"ada@example.com"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	FirstName       string `json:"firstName" example:"Ada"`
	LastName        string `json:"lastName" example:"Lovelace"`
}

// LoginRequest authenticates with email and password. TfaCode is only needed
// when the account has two-factor authentication enabled.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TfaCode    string `json:"tfaCode,omitempty"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// LogoutRequest optionally carries the refresh token for clients that can't
// send the path-scoped refresh cookie to the logout endpoint.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

// ForgotPasswordRequest asks for a password reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResendVerificationRequest asks for a new verification link.
type ResendVerificationRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest sets a new password from a reset link token.
type ResetPasswordRequest struct {
	Token           string `json:"token"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// AuthResponse describes the authenticated user. It is returned by login,
// refresh and the current-user endpoint. When TfaRequired is true nothing
// else is set and no cookies were issued.
type AuthResponse struct {
	Message     string   `json:"message" example:"Login successful"`
	Email       string   `json:"email,omitempty" example:"ada@example.com"`
	FirstName   string   `json:"firstName,omitempty"`
	LastName    string   `json:"lastName,omitempty"`
	Roles       []string `json:"roles,omitempty" example:"USER"`
	TfaEnabled  bool     `json:"tfaEnabled"`
	TfaRequired bool     `json:"tfaRequired"`
}

// MessageResponse is the body of endpoints that only report an outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// ============================================================================
// Two-Factor Types
// ============================================================================

// TfaSetupResponse carries a freshly provisioned TOTP secret. It must be
// confirmed with TfaVerifyRequest before it is enforced.
type TfaSetupResponse struct {
	Secret          string `json:"secret" example:"JBSWY3DPEHPK3PXP"`
	QRCodeURI       string `json:"qrCodeUri" example:"data:image/png;base64,iVBORw0KGgo..."`
	ProvisioningURI string `json:"provisioningUri" example:"otpauth://totp/Authify:ada@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Authify"`
	Message         string `json:"message"`
}

// TfaVerifyRequest confirms a provisioned secret.
type TfaVerifyRequest struct {
	Code string `json:"code" example:"123456"`
}

// ============================================================================
// Key Rotation Types
// ============================================================================

// RotateKeysResponse lists the signing keys after a rotation.
type RotateKeysResponse struct {
	Active  []string `json:"active"`
	Retired []string `json:"retired"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Driver is the credential store backend ("sqlite" or "postgres").
	Driver   string `json:"driver"`
	Database string `json:"database"`
	Signer   string `json:"signer"`
	// SigningKeys is the number of public keys currently published.
	SigningKeys int `json:"signingKeys"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the public keys that verify access tokens.
type JWKSResponse jwtx.JWKS
