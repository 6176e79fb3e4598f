package authsdk

import (
	"context"
	"net/http"
)

// EnableTfa provisions a new TOTP secret. It is not enforced until confirmed
// with VerifyTfa.
func (c *SDKClient) EnableTfa(ctx context.Context) (*TfaSetupResponse, error) {
	var out TfaSetupResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/tfa/enable", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyTfa confirms the provisioned secret with a current code.
func (c *SDKClient) VerifyTfa(ctx context.Context, code string) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/tfa/verify", TfaVerifyRequest{Code: code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DisableTfa turns two-factor authentication off.
func (c *SDKClient) DisableTfa(ctx context.Context) (*MessageResponse, error) {
	var out MessageResponse
	if err := c.call(ctx, http.MethodPost, "/api/auth/tfa/disable", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
