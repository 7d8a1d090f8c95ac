package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ljoukov/dust/internal/config"
)

const authCallTimeout = 10 * time.Second

// authProvider handles the code-for-token exchange and user info fetch
// against the external auth provider.
type authProvider interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*authResult, error)
}

// authResult holds the identity established by a completed login.
type authResult struct {
	Username string
}

// oauthHTTPClient is the production implementation against the provider's
// HTTP endpoints configured in the environment.
type oauthHTTPClient struct {
	authorizeURL string
	tokenURL     string
	userInfoURL  string
	clientID     string
	clientSecret string
	redirectURI  string
}

func newOAuthClient(cfg *config.Config) *oauthHTTPClient {
	return &oauthHTTPClient{
		authorizeURL: cfg.AuthAuthorizeURL,
		tokenURL:     cfg.AuthTokenURL,
		userInfoURL:  cfg.AuthUserInfoURL,
		clientID:     cfg.AuthClientID,
		clientSecret: cfg.AuthClientSecret,
		redirectURI:  cfg.AuthRedirectURI,
	}
}

func (c *oauthHTTPClient) AuthorizeURL(state string) string {
	return fmt.Sprintf(
		"%s?client_id=%s&redirect_uri=%s&response_type=code&state=%s",
		c.authorizeURL,
		url.QueryEscape(c.clientID),
		url.QueryEscape(c.redirectURI),
		url.QueryEscape(state),
	)
}

func (c *oauthHTTPClient) ExchangeCode(ctx context.Context, code string) (*authResult, error) {
	accessToken, err := c.exchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	username, err := c.fetchUsername(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("user info fetch failed: %w", err)
	}

	return &authResult{Username: username}, nil
}

func (c *oauthHTTPClient) exchangeCode(ctx context.Context, code string) (string, error) {
	data := url.Values{}
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", c.redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.URL.RawQuery = data.Encode()

	client := &http.Client{Timeout: authCallTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth provider returned status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("auth provider returned no access token")
	}

	return tokenResp.AccessToken, nil
}

func (c *oauthHTTPClient) fetchUsername(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	client := &http.Client{Timeout: authCallTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute user request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth provider user API returned status %d", resp.StatusCode)
	}

	var userResp struct {
		Username string `json:"username"`
		Login    string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&userResp); err != nil {
		return "", fmt.Errorf("failed to decode user response: %w", err)
	}

	username := userResp.Username
	if username == "" {
		username = userResp.Login
	}
	if username == "" {
		return "", fmt.Errorf("no username returned")
	}

	return username, nil
}
