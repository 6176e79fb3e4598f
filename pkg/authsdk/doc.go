/*
Package authsdk provides a client SDK for the authify authentication service.

# Overview

The server keeps sessions in two HttpOnly cookies: a short-lived access
token and, for "remember me" logins, a refresh token scoped to the refresh
endpoint. SDKClient carries a cookie jar so it behaves like a browser:

	client := authsdk.NewSDKClient("https://auth.example.com")

	_, err := client.Register(ctx, authsdk.RegisterRequest{
		Email:           "ada@example.com",
		Password:        "correct horse battery",
		ConfirmPassword: "correct horse battery",
		FirstName:       "Ada",
		LastName:        "Lovelace",
	})

	resp, err := client.Login(ctx, authsdk.LoginRequest{
		Email:      "ada@example.com",
		Password:   "correct horse battery",
		RememberMe: true,
	})

	me, err := client.Me(ctx)

When the access token expires, call Refresh to get a new one from the
refresh cookie. Logout ends every session of the user.

# Two-Factor Authentication

If the account has TOTP enabled, a login without a code succeeds with
TfaRequired set and issues no cookies. Retry with the code:

	resp, err := client.Login(ctx, req)
	if err == nil && resp.TfaRequired {
		req.TfaCode = promptForCode()
		resp, err = client.Login(ctx, req)
	}

Enabling is a two step process: EnableTfa returns the secret and a QR code,
and VerifyTfa confirms it with a code from the authenticator app.

# Non-Browser Clients

Set BearerToken to authenticate with an access token obtained elsewhere.
AccessToken and RefreshToken expose the values held in the jar.

# Error Handling

Every failed request returns an *APIError carrying the server's status and
message. The predefined errors match with errors.Is:

	_, err := client.Login(ctx, req)
	if errors.Is(err, authsdk.ErrInvalidCredentials) {
		// wrong email or password
	}

The same values are used by the server to write its responses, so the two
can't drift apart.

# Thread Safety

SDKClient is safe for concurrent use, but all callers share one cookie jar
and therefore one session. Use one client per user.
*/
package authsdk
