package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

const (
	defaultGoogleAuthURL  = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultGoogleTokenURL = "https://oauth2.googleapis.com"

	gbpOAuthScope = "https://www.googleapis.com/auth/business.manage"
)

// TokenResponse is the relevant subset of an OAuth token endpoint response.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// GoogleOAuth performs the authorization-code and refresh-token exchanges
// for the Business Profile integration.
type GoogleOAuth struct {
	client       *Client
	authURL      string
	clientID     string
	clientSecret string
	redirectURI  string
}

func NewGoogleOAuth(clientID, clientSecret, redirectURI, tokenBaseURL string) *GoogleOAuth {
	if tokenBaseURL == "" {
		tokenBaseURL = defaultGoogleTokenURL
	}
	return &GoogleOAuth{
		client:       NewClient(tokenBaseURL),
		authURL:      defaultGoogleAuthURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
	}
}

// AuthorizeURL builds the consent URL carrying the signed state token.
func (o *GoogleOAuth) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", o.clientID)
	q.Set("redirect_uri", o.redirectURI)
	q.Set("response_type", "code")
	q.Set("scope", gbpOAuthScope)
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("state", state)

	return o.authURL + "?" + q.Encode()
}

// ExchangeCode trades an authorization code for tokens.
func (o *GoogleOAuth) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)
	form.Set("redirect_uri", o.redirectURI)

	return o.exchange(ctx, form)
}

// Refresh trades a refresh token for a new access token. Google does not
// always return a new refresh token; callers keep the old one in that case.
func (o *GoogleOAuth) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", o.clientID)
	form.Set("client_secret", o.clientSecret)

	return o.exchange(ctx, form)
}

func (o *GoogleOAuth) exchange(ctx context.Context, form url.Values) (*TokenResponse, error) {
	resp, err := o.client.PostForm(ctx, "/token", form.Encode())
	if err != nil {
		return nil, fmt.Errorf("oauth token exchange: %w", err)
	}

	token := &TokenResponse{
		AccessToken:  jsonString(resp.Raw, "access_token"),
		RefreshToken: jsonString(resp.Raw, "refresh_token"),
	}
	if obj, ok := resp.Raw.JSON.(map[string]any); ok {
		if expires, ok := obj["expires_in"].(float64); ok {
			token.ExpiresIn = int(expires)
		}
	}

	if token.AccessToken == "" {
		return nil, fmt.Errorf("oauth token exchange: no access token in response")
	}
	return token, nil
}

// Expiry converts an expires_in window into an absolute expiry timestamp.
func (t *TokenResponse) Expiry(now time.Time) time.Time {
	return now.Add(time.Duration(t.ExpiresIn) * time.Second)
}
