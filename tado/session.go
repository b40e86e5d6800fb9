package tado

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultClientID is the public client id of the vendor web app
	DefaultClientID = "af44f89e-ae86-4ebe-905f-6bf759cf6473"
	defaultScope    = "home.user"

	// refresh this long before the server-side expiry
	tokenRefreshSkew = 30 * time.Second
)

// Credentials identify the account the session signs in as
type Credentials struct {
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
	// RefreshToken seeds the session so the first exchange can skip the password grant
	RefreshToken string
}

// tokenResponse represents the OAuth2 token response
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// session owns the bearer token. Concurrent callers share one exchange.
type session struct {
	mu           sync.Mutex
	creds        Credentials
	tokenURL     string
	httpClient   *http.Client
	accessToken  string
	refreshToken string
	expiry       time.Time
	now          func() time.Time
}

func newSession(creds Credentials, tokenURL string, httpClient *http.Client) *session {
	if creds.ClientID == "" {
		creds.ClientID = DefaultClientID
	}
	return &session{
		creds:        creds,
		tokenURL:     tokenURL,
		httpClient:   httpClient,
		refreshToken: creds.RefreshToken,
		now:          time.Now,
	}
}

// token returns a valid access token, exchanging a new one when the current
// token is missing, about to expire, or force is set
func (s *session) token(ctx context.Context, force bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !force && s.accessToken != "" && s.now().Add(tokenRefreshSkew).Before(s.expiry) {
		return s.accessToken, nil
	}

	if s.refreshToken != "" {
		err := s.exchange(ctx, url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {s.refreshToken},
		})
		if err == nil {
			return s.accessToken, nil
		}
		if s.creds.Username == "" {
			return "", &AuthError{Err: err}
		}
		// refresh token rejected, fall back to the password grant
		s.refreshToken = ""
	}

	if s.creds.Username == "" || s.creds.Password == "" {
		return "", &AuthError{Err: fmt.Errorf("no refresh token and no username/password configured")}
	}
	err := s.exchange(ctx, url.Values{
		"grant_type": {"password"},
		"username":   {s.creds.Username},
		"password":   {s.creds.Password},
	})
	if err != nil {
		return "", &AuthError{Err: err}
	}
	return s.accessToken, nil
}

func (s *session) exchange(ctx context.Context, form url.Values) error {
	form.Set("client_id", s.creds.ClientID)
	if s.creds.ClientSecret != "" {
		form.Set("client_secret", s.creds.ClientSecret)
	}
	form.Set("scope", defaultScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("token %s grant failed with status %d: %s", form.Get("grant_type"), resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return fmt.Errorf("token response carried no access token")
	}

	s.accessToken = tok.AccessToken
	s.expiry = s.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	if tok.RefreshToken != "" {
		s.refreshToken = tok.RefreshToken
	}
	return nil
}
