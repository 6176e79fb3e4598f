package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/authify/internal/auth/service"
	"github.com/aussiebroadwan/authify/pkg/authsdk"
	"github.com/aussiebroadwan/authify/pkg/httpx"
	"github.com/aussiebroadwan/authify/pkg/slogx"
)

// errorCase maps a service error to its response. Cases are tried in order,
// so more specific errors (ErrTokenUsed) go before the ones they wrap.
type errorCase struct {
	err  error
	resp *authsdk.APIError
}

var (
	registerErrors = []errorCase{
		{service.ErrPasswordMismatch, authsdk.ErrPasswordMismatch},
		{service.ErrWeakPassword, authsdk.ErrWeakPassword},
		{service.ErrUserAlreadyExists, authsdk.ErrEmailTaken},
	}
	loginErrors = []errorCase{
		{service.ErrInvalidCredentials, authsdk.ErrInvalidCredentials},
		{service.ErrInvalidTFACode, authsdk.ErrInvalidTfaCode},
	}
	refreshErrors = []errorCase{
		{service.ErrTokenExpired, authsdk.ErrExpiredRefresh},
		{service.ErrInvalidToken, authsdk.ErrInvalidRefresh},
	}
	verifyEmailErrors = []errorCase{
		{service.ErrTokenExpired, authsdk.ErrExpiredVerification},
		{service.ErrInvalidToken, authsdk.ErrInvalidVerification},
	}
	resetErrors = []errorCase{
		{service.ErrPasswordMismatch, authsdk.ErrPasswordMismatch},
		{service.ErrWeakPassword, authsdk.ErrWeakPassword},
		{service.ErrTokenExpired, authsdk.ErrExpiredReset},
		{service.ErrTokenUsed, authsdk.ErrUsedReset},
		{service.ErrInvalidToken, authsdk.ErrInvalidReset},
	}
	tfaErrors = []errorCase{
		{service.ErrUserNotFound, authsdk.ErrUserNotFound},
		{service.ErrTFANotInitiated, authsdk.ErrTfaNotInitiated},
		{service.ErrInvalidTFACode, authsdk.ErrInvalidTfaVerifyCode},
	}
	meErrors = []errorCase{
		{service.ErrUserNotFound, authsdk.ErrUserNotFound},
	}
)

// writeServiceError answers with the first matching case. Anything else is
// an internal failure: it is logged and the client gets a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, cases []errorCase) {
	for _, c := range cases {
		if errors.Is(err, c.err) {
			c.resp.WriteError(w, r)
			return
		}
	}
	slogx.FromContext(r.Context()).Error("request failed", slog.Any("error", err))
	authsdk.ErrServerError.WriteError(w, r)
}

// writeBadRequest reports a malformed request body.
func writeBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	httpx.WriteError(w, r, http.StatusBadRequest, message)
}

func denyUnauthenticated(w http.ResponseWriter, r *http.Request) {
	authsdk.ErrUnauthenticated.WriteError(w, r)
}

func denyForbidden(w http.ResponseWriter, r *http.Request) {
	authsdk.ErrForbidden.WriteError(w, r)
}
