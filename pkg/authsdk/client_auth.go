package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Register creates an account. The server sends a verification link by
// email; the account can log in before it is verified.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login authenticates and stores the session cookies in the client's jar.
// When the account has two-factor authentication enabled and req has no
// code, the response has TfaRequired set and no cookies are issued.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout ends every session of the current user and clears the cookies. The
// refresh token held in the jar is sent in the body since its cookie is not
// in scope for the logout path.
func (c *SDKClient) Logout(ctx context.Context) (*MessageResponse, error) {
	var out MessageResponse
	req := LogoutRequest{RefreshToken: c.RefreshToken()}
	if err := c.call(ctx, http.MethodPost, "/api/auth/logout", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh exchanges the refresh cookie for a new access cookie.
func (c *SDKClient) Refresh(ctx context.Context) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/refresh", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyEmail follows a verification link.
func (c *SDKClient) VerifyEmail(ctx context.Context, token string) (*MessageResponse, error) {
	var out MessageResponse
	path := "/api/auth/verify-email?token=" + url.QueryEscape(token)
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForgotPassword requests a reset link. The response is the same whether or
// not the email has an account.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/forgot-password", ForgotPasswordRequest{Email: email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetPassword sets a new password from a reset link token.
func (c *SDKClient) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/reset-password", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResendVerification requests a new verification link.
func (c *SDKClient) ResendVerification(ctx context.Context, email string) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/resend-verification", ResendVerificationRequest{Email: email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the authenticated user.
func (c *SDKClient) Me(ctx context.Context) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.call(ctx, http.MethodGet, "/api/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
