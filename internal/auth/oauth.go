package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// googleTokenInfoURL validates a Google ID token server-side and returns its
// decoded claims. It rejects bad signatures and expired tokens with a 400.
const googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// ErrInvalidIDToken means Google did not vouch for the presented credential
// (bad signature, expired, wrong audience, wrong issuer).
var ErrInvalidIDToken = errors.New("auth: invalid Google ID token")

// GoogleIdentity is what we keep from a verified Google ID token.
type GoogleIdentity struct {
	Subject       string // Google's stable user ID ("sub")
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// tokenInfo mirrors the tokeninfo response. Google returns every value as a
// JSON string, including booleans and timestamps.
type tokenInfo struct {
	Audience      string `json:"aud"`
	Issuer        string `json:"iss"`
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified string `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	Expiry        string `json:"exp"`
}

// GoogleProvider implements both ways of signing in with Google:
//
//   - VerifyIDToken: the SPA obtains an ID token with Google Identity
//     Services and POSTs it to /api/auth/google.
//   - AuthURL + Exchange: the classic Authorization Code redirect flow.
//
// Both end in a verified GoogleIdentity whose audience is our client ID.
type GoogleProvider struct {
	config       *oauth2.Config
	tokenInfoURL string
	client       *http.Client
}

// NewGoogleProvider builds a provider for the given OAuth client.
// clientSecret and redirectURL are only needed for the redirect flow.
func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		tokenInfoURL: googleTokenInfoURL,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

// ClientID returns the OAuth client ID tokens must be issued for.
func (p *GoogleProvider) ClientID() string {
	return p.config.ClientID
}

// AuthURL returns Google's consent URL. state is echoed back on the
// callback and must be checked against the value stored before redirecting.
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for tokens and verifies the ID
// token that comes back with them.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*GoogleIdentity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)

	tok, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging Google OAuth code: %w", err)
	}

	idToken, ok := tok.Extra("id_token").(string)
	if !ok || idToken == "" {
		return nil, fmt.Errorf("auth: Google token response has no id_token: %w", ErrInvalidIDToken)
	}

	return p.VerifyIDToken(ctx, idToken)
}

// VerifyIDToken checks idToken with Google and returns the identity in it.
//
// Returns an error wrapping ErrInvalidIDToken when the token is rejected;
// any other error means Google could not be reached or answered oddly.
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	if idToken == "" {
		return nil, fmt.Errorf("auth: empty credential: %w", ErrInvalidIDToken)
	}

	endpoint := p.tokenInfoURL + "?" + url.Values{"id_token": {idToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: building tokeninfo request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: calling Google tokeninfo: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("auth: tokeninfo rejected token: %w", ErrInvalidIDToken)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("auth: Google tokeninfo returned status %d", resp.StatusCode)
	}

	var info tokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("auth: decoding tokeninfo response: %w", err)
	}

	if err := p.checkClaims(&info, time.Now()); err != nil {
		return nil, err
	}

	return &GoogleIdentity{
		Subject:       info.Subject,
		Email:         info.Email,
		EmailVerified: info.EmailVerified == "true",
		Name:          info.Name,
		Picture:       info.Picture,
	}, nil
}

func (p *GoogleProvider) checkClaims(info *tokenInfo, now time.Time) error {
	if info.Audience != p.config.ClientID {
		return fmt.Errorf("auth: token audience %q does not match client: %w", info.Audience, ErrInvalidIDToken)
	}
	if info.Issuer != "accounts.google.com" && info.Issuer != "https://accounts.google.com" {
		return fmt.Errorf("auth: unexpected token issuer %q: %w", info.Issuer, ErrInvalidIDToken)
	}
	if info.Subject == "" || info.Email == "" {
		return fmt.Errorf("auth: token lacks subject or email: %w", ErrInvalidIDToken)
	}
	exp, err := strconv.ParseInt(info.Expiry, 10, 64)
	if err != nil || time.Unix(exp, 0).Before(now) {
		return fmt.Errorf("auth: token expired or has no expiry: %w", ErrInvalidIDToken)
	}
	return nil
}
