package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/authify/pkg/httpx"
)

// APIError is the error body of every failed request. The server writes
// these and the client returns them, so errors.Is works across the wire:
// two APIErrors match when status and message do.
type APIError struct {
	Status  int    `json:"status"`
	Err     string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Err, e.Message)
}

// Is matches on status and message, ignoring the path.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Status == t.Status && e.Message == t.Message
}

// WriteError writes e for request r.
func (e *APIError) WriteError(w http.ResponseWriter, r *http.Request) {
	httpx.WriteError(w, r, e.Status, e.Message)
}

func newAPIError(status int, message string) *APIError {
	return &APIError{Status: status, Err: http.StatusText(status), Message: message}
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	ErrInvalidCredentials = newAPIError(http.StatusUnauthorized, "Invalid email or password")
	ErrInvalidTfaCode     = newAPIError(http.StatusUnauthorized, "Invalid 2FA code")
	ErrUnauthenticated    = newAPIError(http.StatusUnauthorized, "You need to login to access this resource")
	ErrInvalidRefresh     = newAPIError(http.StatusUnauthorized, "Invalid refresh token")
	ErrExpiredRefresh     = newAPIError(http.StatusUnauthorized, "Refresh token has expired")

	ErrEmailTaken = newAPIError(http.StatusConflict, "Email is already registered")

	ErrPasswordMismatch     = newAPIError(http.StatusBadRequest, "Passwords do not match")
	ErrWeakPassword         = newAPIError(http.StatusBadRequest, "Password must be at least 8 characters")
	ErrInvalidVerification  = newAPIError(http.StatusBadRequest, "Invalid verification token")
	ErrExpiredVerification  = newAPIError(http.StatusBadRequest, "Verification token has expired")
	ErrInvalidReset         = newAPIError(http.StatusBadRequest, "Invalid reset token")
	ErrExpiredReset         = newAPIError(http.StatusBadRequest, "Reset token has expired")
	ErrUsedReset            = newAPIError(http.StatusBadRequest, "Reset token has already been used")
	ErrTfaNotInitiated      = newAPIError(http.StatusBadRequest, "TFA setup not initiated")
	ErrInvalidTfaVerifyCode = newAPIError(http.StatusBadRequest, "Invalid verification code")

	ErrForbidden    = newAPIError(http.StatusForbidden, "You don't have permission to access this resource")
	ErrUserNotFound = newAPIError(http.StatusNotFound, "User not found")
	ErrServerError  = newAPIError(http.StatusInternalServerError, "Internal server error")
)

// parseErrorResponse turns a non-2xx response into an *APIError, falling
// back to the status line when the body isn't one.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		if apiErr.Status == 0 {
			apiErr.Status = resp.StatusCode
		}
		return &apiErr
	}

	return &APIError{
		Status:  resp.StatusCode,
		Err:     http.StatusText(resp.StatusCode),
		Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		Path:    resp.Request.URL.Path,
	}
}
