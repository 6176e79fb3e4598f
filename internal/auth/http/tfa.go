package http

import (
	"net/http"

	"github.com/aussiebroadwan/authify/internal/auth/service"
	"github.com/aussiebroadwan/authify/pkg/authsdk"
	"github.com/aussiebroadwan/authify/pkg/httpx"
)

const (
	msgTFAProvisioned = "Scan the QR code with your authenticator app, then verify with a code"
	msgTFAEnabled     = "Two-factor authentication enabled successfully!"
	msgTFADisabled    = "Two-factor authentication disabled"
)

// TFAHandler manages TOTP enrolment for the authenticated user. The user is
// always the subject of the verified access token.
type TFAHandler struct {
	TFA *service.TFAService
}

// HandleEnable handles POST /api/auth/tfa/enable
//
//	@Summary		Start TOTP enrolment
//	@Description	Generates a new TOTP secret and returns it with a QR code. Two-factor authentication is not active until the secret is confirmed with /api/auth/tfa/verify.
//	@Description	Calling this again replaces any earlier secret.
//	@Tags			TFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TfaSetupResponse
//	@Failure		401	{object}	authsdk.APIError	"Missing or invalid access token"
//	@Failure		404	{object}	authsdk.APIError	"User not found"
//	@Router			/api/auth/tfa/enable [post].
func (h *TFAHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	setup, err := h.TFA.Provision(r.Context(), httpx.SubjectFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, tfaErrors)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TfaSetupResponse{
		Secret:          setup.Secret,
		QRCodeURI:       setup.QRCodeDataURI,
		ProvisioningURI: setup.ProvisioningURI,
		Message:         msgTFAProvisioned,
	})
}

// HandleVerify handles POST /api/auth/tfa/verify
//
//	@Summary		Confirm TOTP enrolment
//	@Description	Activates two-factor authentication once a code from the provisioned secret checks out.
//	@Tags			TFA
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TfaVerifyRequest	true	"Current code"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.APIError	"Setup not initiated or invalid code"
//	@Failure		401		{object}	authsdk.APIError	"Missing or invalid access token"
//	@Failure		429		{object}	authsdk.APIError	"Rate limited"
//	@Router			/api/auth/tfa/verify [post].
func (h *TFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TfaVerifyRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if msg := required(req.Code, "Code is required"); msg != "" {
		writeBadRequest(w, r, msg)
		return
	}

	if err := h.TFA.Activate(r.Context(), httpx.SubjectFromContext(r.Context()), req.Code); err != nil {
		writeServiceError(w, r, err, tfaErrors)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgTFAEnabled})
}

// HandleDisable handles POST /api/auth/tfa/disable
//
//	@Summary		Disable two-factor authentication
//	@Description	Removes the TOTP secret. Sessions already issued are unaffected.
//	@Tags			TFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MessageResponse
//	@Failure		401	{object}	authsdk.APIError	"Missing or invalid access token"
//	@Failure		404	{object}	authsdk.APIError	"User not found"
//	@Router			/api/auth/tfa/disable [post].
func (h *TFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	if err := h.TFA.Disable(r.Context(), httpx.SubjectFromContext(r.Context())); err != nil {
		writeServiceError(w, r, err, tfaErrors)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgTFADisabled})
}
