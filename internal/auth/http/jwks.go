package http

import (
	"net/http"

	"github.com/aussiebroadwan/authify/pkg/authsdk"
	"github.com/aussiebroadwan/authify/pkg/httpx"
	"github.com/aussiebroadwan/authify/pkg/jwtx"
)

// JWKSHandler publishes the public half of every key that may have signed a
// live access token, so other services can verify them offline.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify access tokens.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(keys.PublicJWKS()))
	}
}
