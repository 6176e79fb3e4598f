package authsdk

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// SDKClient is a client for the authify API. It keeps the session cookies
// the server sets in its own jar, so a login followed by Me or Refresh works
// the same way it does in a browser.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// BearerToken, when set, is sent as "Authorization: Bearer" on every
	// request. Cookies still win on the server if both are present.
	BearerToken string
}

// NewSDKClient creates a client with an empty cookie jar.
func NewSDKClient(baseURL string) *SDKClient {
	jar, _ := cookiejar.New(nil) // only fails with options
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
	}
}

// AccessToken returns the access token cookie held for this server, if any.
func (c *SDKClient) AccessToken() string {
	return c.cookie(AccessTokenCookiePath, AccessTokenCookie)
}

// RefreshToken returns the refresh token cookie held for this server, if any.
func (c *SDKClient) RefreshToken() string {
	return c.cookie(RefreshTokenCookiePath, RefreshTokenCookie)
}

func (c *SDKClient) cookie(path, name string) string {
	if c.HTTPClient.Jar == nil {
		return ""
	}
	u, err := url.Parse(c.url(path))
	if err != nil {
		return ""
	}
	for _, ck := range c.HTTPClient.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}
