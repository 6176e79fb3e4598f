package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/authify/internal/auth/domain"
	"github.com/aussiebroadwan/authify/internal/auth/service"
	"github.com/aussiebroadwan/authify/pkg/authsdk"
	"github.com/aussiebroadwan/authify/pkg/httpx"
	"github.com/aussiebroadwan/authify/pkg/slogx"
)

const (
	msgRegistered     = "Registration successful! Please check your email to verify your account."
	msgLoggedIn       = "Login successful"
	msgTFARequired    = "2FA code required"
	msgLoggedOut      = "Logout successful"
	msgRefreshed      = "Token refreshed"
	msgEmailVerified  = "Email verified successfully!"
	msgResetRequested = "If an account exists with that email, a password reset link has been sent."
	msgPasswordReset  = "Password reset successfully!"
	msgVerifyResent   = "If an unverified account exists with that email, a new verification link has been sent."
	msgUserInfo       = "User info"
)

// AuthHandler serves the account and session endpoints.
type AuthHandler struct {
	Auth    *service.AuthService
	cookies cookieWriter
}

func authResponse(message string, u domain.User) authsdk.AuthResponse {
	return authsdk.AuthResponse{
		Message:    message,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Roles:      u.RoleStrings(),
		TfaEnabled: u.TFAEnabled,
	}
}

// HandleRegister handles POST /api/auth/register
//
//	@Summary		Register
//	@Description	Creates an account with the USER role and emails a verification link. The account can log in before it is verified.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest		true	"New account"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.APIError	"Validation failed or passwords do not match"
//	@Failure		409		{object}	authsdk.APIError	"Email is already registered"
//	@Failure		429		{object}	authsdk.APIError	"Rate limited"
//	@Router			/api/auth/register [post].
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if msg := firstProblem(
		requireEmail(req.Email),
		required(req.Password, "Password is required"),
		required(req.FirstName, "First name is required"),
		required(req.LastName, "Last name is required"),
	); msg != "" {
		writeBadRequest(w, r, msg)
		return
	}

	_, err := h.Auth.Register(r.Context(), service.RegisterInput{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		writeServiceError(w, r, err, registerErrors)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgRegistered})
}

// HandleLogin handles POST /api/auth/login
//
//	@Summary		Log in
//	@Description	Checks email and password, and the TOTP code when two-factor authentication is enabled.
//	@Description	Without a code such accounts get tfaRequired=true and no cookies.
//	@Description	Sets the accessToken cookie, and the refreshToken cookie when rememberMe is set.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.AuthResponse
//	@Failure		401		{object}	authsdk.APIError	"Invalid email or password, or invalid 2FA code"
//	@Failure		429		{object}	authsdk.APIError	"Rate limited"
//	@Router			/api/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if msg := firstProblem(requireEmail(req.Email), required(req.Password, "Password is required")); msg != "" {
		writeBadRequest(w, r, msg)
		return
	}

	res, err := h.Auth.Login(r.Context(), service.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		TFACode:    req.TfaCode,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		writeServiceError(w, r, err, loginErrors)
		return
	}

	if res.TFARequired {
		httpx.WriteJSON(w, http.StatusOK, authsdk.AuthResponse{
			Message:     msgTFARequired,
			Email:       res.User.Email,
			TfaEnabled:  true,
			TfaRequired: true,
		})
		return
	}

	h.cookies.setAccess(w, res.AccessToken)
	if res.RefreshToken != "" {
		h.cookies.setRefresh(w, res.RefreshToken)
	}
	httpx.WriteJSON(w, http.StatusOK, authResponse(msgLoggedIn, res.User))
}

// HandleLogout handles POST /api/auth/logout
//
//	@Summary		Log out
//	@Description	Revokes every refresh token of the user owning the presented one and clears both cookies.
//	@Description	The refresh token is read from the cookie or, failing that, from the optional JSON body. Always succeeds.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LogoutRequest	false	"Refresh token for clients without the cookie"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Router			/api/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := refreshTokenFromCookie(r)
	if token == "" && r.ContentLength != 0 {
		var req authsdk.LogoutRequest
		if err := httpx.DecodeJSON(w, r, &req); err == nil {
			token = req.RefreshToken
		}
	}

	if err := h.Auth.Logout(r.Context(), token); err != nil {
		slogx.FromContext(r.Context()).Error("logout failed", "err", err)
	}

	h.cookies.clearAccess(w)
	h.cookies.clearRefresh(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgLoggedOut})
}

// HandleRefresh handles POST /api/auth/refresh
//
//	@Summary		Refresh the access token
//	@Description	Issues a new accessToken cookie from the refreshToken cookie. A rejected refresh token cookie is cleared.
//	@Tags			Auth
//	@Produce		json
//	@Success		200	{object}	authsdk.AuthResponse
//	@Failure		401	{object}	authsdk.APIError	"Invalid or expired refresh token"
//	@Router			/api/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.Auth.Refresh(r.Context(), refreshTokenFromCookie(r))
	if err != nil {
		if errors.Is(err, service.ErrInvalidToken) || errors.Is(err, service.ErrTokenExpired) {
			h.cookies.clearRefresh(w)
		}
		writeServiceError(w, r, err, refreshErrors)
		return
	}

	h.cookies.setAccess(w, res.AccessToken)
	if res.Rotated {
		h.cookies.setRefresh(w, res.RefreshToken)
	}
	httpx.WriteJSON(w, http.StatusOK, authResponse(msgRefreshed, res.User))
}

// HandleVerifyEmail handles GET /api/auth/verify-email
//
//	@Summary		Verify email
//	@Description	Marks the email verified. The link may be followed again until it expires.
//	@Tags			Auth
//	@Produce		json
//	@Param			token	query		string	true	"Token from the verification email"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.APIError	"Invalid or expired verification token"
//	@Router			/api/auth/verify-email [get].
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeBadRequest(w, r, "Token is required")
		return
	}

	if err := h.Auth.VerifyEmail(r.Context(), token); err != nil {
		writeServiceError(w, r, err, verifyEmailErrors)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgEmailVerified})
}

// HandleForgotPassword handles POST /api/auth/forgot-password
//
//	@Summary		Request a password reset
//	@Description	Emails a one hour reset link if the account exists. The response never reveals whether it does.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ForgotPasswordRequest	true	"Account email"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		429		{object}	authsdk.APIError	"Rate limited"
//	@Router			/api/auth/forgot-password [post].
func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if msg := requireEmail(req.Email); msg != "" {
		writeBadRequest(w, r, msg)
		return
	}

	if err := h.Auth.ForgotPassword(r.Context(), req.Email); err != nil {
		// Same answer either way; the failure is only for the logs.
		slogx.FromContext(r.Context()).Error("forgot password failed", "err", err)
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgResetRequested})
}

// HandleResetPassword handles POST /api/auth/reset-password
//
//	@Summary		Reset password
//	@Description	Sets a new password from a reset token and ends every session of the account. Each token works once.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ResetPasswordRequest	true	"Token and new password"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.APIError	"Mismatch, or invalid, expired or used token"
//	@Failure		429		{object}	authsdk.APIError	"Rate limited"
//	@Router			/api/auth/reset-password [post].
func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if msg := firstProblem(
		required(req.Token, "Token is required"),
		required(req.NewPassword, "Password is required"),
	); msg != "" {
		writeBadRequest(w, r, msg)
		return
	}

	err := h.Auth.ResetPassword(r.Context(), service.ResetPasswordInput{
		Token:           req.Token,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeServiceError(w, r, err, resetErrors)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgPasswordReset})
}

// HandleResendVerification handles POST /api/auth/resend-verification
//
//	@Summary		Resend the verification email
//	@Description	Sends a new verification link to an unverified account. The response never reveals whether one exists.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ResendVerificationRequest	true	"Account email"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		429		{object}	authsdk.APIError	"Rate limited"
//	@Router			/api/auth/resend-verification [post].
func (h *AuthHandler) HandleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResendVerificationRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if msg := requireEmail(req.Email); msg != "" {
		writeBadRequest(w, r, msg)
		return
	}

	if err := h.Auth.ResendVerification(r.Context(), req.Email); err != nil {
		slogx.FromContext(r.Context()).Error("resend verification failed", "err", err)
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgVerifyResent})
}

// HandleMe handles GET /api/auth/me
//
//	@Summary		Current user
//	@Description	Returns the user identified by the access token cookie or bearer token.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.AuthResponse
//	@Failure		401	{object}	authsdk.APIError	"Missing or invalid access token"
//	@Failure		404	{object}	authsdk.APIError	"User not found"
//	@Router			/api/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.Auth.CurrentUser(r.Context(), httpx.SubjectFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, meErrors)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authResponse(msgUserInfo, *user))
}
