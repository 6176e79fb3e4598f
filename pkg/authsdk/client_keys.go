package authsdk

import (
	"context"
	"net/http"
)

// GetJWKS retrieves the JSON Web Key Set for token verification.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	var jwks JWKSResponse
	if err := c.call(ctx, http.MethodGet, "/.well-known/jwks.json", nil, &jwks); err != nil {
		return nil, err
	}
	return &jwks, nil
}

// RotateKeys replaces the signing keys. Requires the ADMIN role.
func (c *SDKClient) RotateKeys(ctx context.Context) (*RotateKeysResponse, error) {
	var out RotateKeysResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/admin/keys/rotate", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
