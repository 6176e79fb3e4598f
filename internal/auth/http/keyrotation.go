package http

import (
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/authify/internal/auth/service"
	"github.com/aussiebroadwan/authify/pkg/authsdk"
	"github.com/aussiebroadwan/authify/pkg/httpx"
	"github.com/aussiebroadwan/authify/pkg/slogx"
)

// KeyRotationHandler exposes signing key rotation to administrators.
type KeyRotationHandler struct {
	KeyRotationService *service.KeyRotationService
}

// HandleRotate handles POST /api/auth/admin/keys/rotate
//
//	@Summary		Rotate signing keys
//	@Description	Replaces the signing keys with fresh ones. Retired keys stay in the JWKS until the tokens they signed have expired.
//	@Description	In ephemeral mode the new keys are lost on restart.
//	@Tags			Keys
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.RotateKeysResponse
//	@Failure		401	{object}	authsdk.APIError	"Missing or invalid access token"
//	@Failure		403	{object}	authsdk.APIError	"Requires the ADMIN role"
//	@Failure		500	{object}	authsdk.APIError
//	@Router			/api/auth/admin/keys/rotate [post].
func (h *KeyRotationHandler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	res, err := h.KeyRotationService.Rotate(r.Context())
	if err != nil {
		slogx.FromContext(r.Context()).Error("key rotation failed", slog.Any("error", err))
		authsdk.ErrServerError.WriteError(w, r)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.RotateKeysResponse{
		Active:  res.Active,
		Retired: res.Retired,
	})
}
